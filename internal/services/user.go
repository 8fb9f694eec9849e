package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.uber.org/zap"
)

const minPasswordLength = 6

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	CollegeID int64
}

// UserService 注册、登录与资料读取
type UserService struct {
	users   repository.UserRepository
	catalog repository.CatalogRepository
	ids     IDSource
	log     *zap.Logger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, catalog repository.CatalogRepository, ids IDSource, log *zap.Logger) *UserService {
	return &UserService{users: users, catalog: catalog, ids: ids, log: log, now: time.Now}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("register: email: %w", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("register: password too short: %w", ErrInvalidInput)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		// 未填写用户名时取邮箱前缀
		username = email[:strings.Index(email, "@")]
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("register: username too long: %w", ErrInvalidInput)
	}

	if _, err := s.catalog.GetCollege(ctx, in.CollegeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("register: college %d: %w", in.CollegeID, ErrInvalidInput)
		}
		return nil, wrapStoreErr("register", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:        s.ids.Next(),
		Username:  username,
		Email:     email,
		Password:  hash,
		CollegeID: in.CollegeID,
		Role:      models.RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, wrapStoreErr("register", err)
	}
	s.log.Info("user registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Authenticate checks the credentials. Unknown email and wrong password
// fail the same way.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, wrapStoreErr("login", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, fmt.Errorf("login: %w", ErrUnauthorized)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get user", err)
	}
	return user, nil
}
