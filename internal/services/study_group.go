package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.uber.org/zap"
)

const (
	maxGroupNameLength = 100
	maxGroupLimit      = 500
)

type CreateStudyGroupInput struct {
	CreatorID   int64
	CollegeID   int64
	CourseID    *int64
	Name        string
	Description string
	// MemberLimit 为 0 时使用 models.DefaultMemberLimit
	MemberLimit int
}

type StudyGroupService struct {
	groups  repository.StudyGroupRepository
	catalog repository.CatalogRepository
	ids     IDSource
	log     *zap.Logger
	now     func() time.Time
}

func NewStudyGroupService(groups repository.StudyGroupRepository, catalog repository.CatalogRepository, ids IDSource, log *zap.Logger) *StudyGroupService {
	return &StudyGroupService{groups: groups, catalog: catalog, ids: ids, log: log, now: time.Now}
}

// Create stores a new group with the creator as its leader.
func (s *StudyGroupService) Create(ctx context.Context, in CreateStudyGroupInput) (*models.StudyGroup, error) {
	if in.CreatorID == 0 {
		return nil, fmt.Errorf("create study group: %w", ErrUnauthorized)
	}
	name := strings.TrimSpace(utils.StripTags(in.Name))
	if name == "" || utf8.RuneCountInString(name) > maxGroupNameLength {
		return nil, fmt.Errorf("create study group: name length: %w", ErrInvalidInput)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" || utf8.RuneCountInString(description) > maxContentLength {
		return nil, fmt.Errorf("create study group: description length: %w", ErrInvalidInput)
	}
	limit := in.MemberLimit
	if limit == 0 {
		limit = models.DefaultMemberLimit
	}
	if limit < 1 || limit > maxGroupLimit {
		return nil, fmt.Errorf("create study group: member limit %d: %w", in.MemberLimit, ErrInvalidInput)
	}
	if err := checkScope(ctx, s.catalog, "create study group", in.CollegeID, in.CourseID); err != nil {
		return nil, err
	}

	now := s.now()
	id := s.ids.Next()
	group := &models.StudyGroup{
		ID:          id,
		Name:        name,
		Description: description,
		CollegeID:   in.CollegeID,
		CourseID:    in.CourseID,
		CreatorID:   in.CreatorID,
		MemberCount: 1,
		MemberLimit: limit,
		Status:      models.GroupActive,
		Members: []models.GroupMember{
			{GroupID: id, UserID: in.CreatorID, Role: models.GroupLeaderRole, JoinedAt: now},
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.groups.CreateStudyGroup(ctx, group); err != nil {
		return nil, wrapStoreErr("create study group", err)
	}

	utils.LoggerWithTrace(ctx, s.log).Info("study group created",
		zap.Int64("group_id", group.ID),
		zap.Int64("creator_id", group.CreatorID),
	)
	return group, nil
}

func (s *StudyGroupService) Get(ctx context.Context, id int64) (*models.StudyGroup, error) {
	group, err := s.groups.GetStudyGroup(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get study group", err)
	}
	return group, nil
}

// Join adds userID as a member. Joining twice is not an error; added
// reports whether the call changed anything.
func (s *StudyGroupService) Join(ctx context.Context, userID, groupID int64) (added bool, err error) {
	if userID == 0 {
		return false, fmt.Errorf("join study group: %w", ErrUnauthorized)
	}
	group, err := s.groups.GetStudyGroup(ctx, groupID)
	if err != nil {
		return false, wrapStoreErr("join study group", err)
	}
	if group.Status != models.GroupActive {
		return false, fmt.Errorf("join study group: group %d is %s: %w", groupID, group.Status, ErrConflict)
	}

	added, err = s.groups.AddMember(ctx, groupID, userID, models.GroupMemberRole, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrCapacity) {
			membershipChangesTotal.WithLabelValues("group", "full").Inc()
		}
		return false, wrapStoreErr("join study group", err)
	}
	if added {
		membershipChangesTotal.WithLabelValues("group", "joined").Inc()
	}
	return added, nil
}

// RemoveMember lets members leave and lets group leaders, group moderators
// and site moderators remove others. Only the leader or a site moderator
// may remove a leader.
func (s *StudyGroupService) RemoveMember(ctx context.Context, actor *models.User, groupID, userID int64) error {
	if actor == nil || actor.ID == 0 {
		return fmt.Errorf("remove member: %w", ErrUnauthorized)
	}
	group, err := s.groups.GetStudyGroup(ctx, groupID)
	if err != nil {
		return wrapStoreErr("remove member", err)
	}

	target, ok := group.RoleOf(userID)
	if !ok {
		return fmt.Errorf("remove member: user %d not in group %d: %w", userID, groupID, ErrNotFound)
	}
	if actor.ID != userID && !actor.Role.CanModerate() {
		role, _ := group.RoleOf(actor.ID)
		if !role.CanManage() || (target == models.GroupLeaderRole && role != models.GroupLeaderRole) {
			return fmt.Errorf("remove member: %w", ErrForbidden)
		}
	}

	removed, err := s.groups.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return wrapStoreErr("remove member", err)
	}
	if !removed {
		return fmt.Errorf("remove member: user %d not in group %d: %w", userID, groupID, ErrNotFound)
	}
	membershipChangesTotal.WithLabelValues("group", "removed").Inc()

	utils.LoggerWithTrace(ctx, s.log).Info("study group member removed",
		zap.Int64("group_id", groupID),
		zap.Int64("user_id", userID),
		zap.Int64("actor_id", actor.ID),
	)
	return nil
}

// SetRole changes a member's role. Only the group leader and site
// moderators may do it.
func (s *StudyGroupService) SetRole(ctx context.Context, actor *models.User, groupID, userID int64, role models.GroupRole) error {
	if actor == nil || actor.ID == 0 {
		return fmt.Errorf("set member role: %w", ErrUnauthorized)
	}
	group, err := s.groups.GetStudyGroup(ctx, groupID)
	if err != nil {
		return wrapStoreErr("set member role", err)
	}
	if own, _ := group.RoleOf(actor.ID); own != models.GroupLeaderRole && !actor.Role.CanModerate() {
		return fmt.Errorf("set member role: %w", ErrForbidden)
	}

	if err := s.groups.UpdateMemberRole(ctx, groupID, userID, role); err != nil {
		return wrapStoreErr("set member role", err)
	}
	return nil
}
