package services

import (
	"context"
	"testing"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/repository/mocks"
	"campuslink/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	store := new(mocks.Store)
	svc := NewUserService(store, store, &seqIDs{}, nopLogger())
	svc.now = fixedNow

	store.On("GetCollege", mock.Anything, int64(1)).Return(&models.College{ID: 1}, nil)
	store.On("CreateUser", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)

	user, err := svc.Register(context.Background(), RegisterInput{Email: " Ada@Uni.EDU ", Password: "secret1", CollegeID: 1})
	require.NoError(t, err)
	assert.Equal(t, "ada@uni.edu", user.Email)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, utils.CheckPasswordHash("secret1", user.Password))
}

func TestRegisterRejects(t *testing.T) {
	store := new(mocks.Store)
	svc := NewUserService(store, store, &seqIDs{}, nopLogger())
	store.On("GetCollege", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "secret1", CollegeID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@b.edu", Password: "123", CollegeID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@b.edu", Password: "secret1", CollegeID: 404})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := new(mocks.Store)
	svc := NewUserService(store, store, &seqIDs{}, nopLogger())
	store.On("GetCollege", mock.Anything, int64(1)).Return(&models.College{ID: 1}, nil)
	store.On("CreateUser", mock.Anything, mock.Anything).Return(repository.ErrDuplicate)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@b.edu", Password: "secret1", CollegeID: 1})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	hash, err := utils.HashPassword("secret1")
	require.NoError(t, err)

	store := new(mocks.Store)
	svc := NewUserService(store, store, &seqIDs{}, nopLogger())
	store.On("GetUserByEmail", mock.Anything, "a@b.edu").Return(&models.User{ID: 9, Password: hash}, nil)
	store.On("GetUserByEmail", mock.Anything, "x@b.edu").Return(nil, repository.ErrNotFound)

	user, err := svc.Authenticate(context.Background(), "A@b.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)

	_, err = svc.Authenticate(context.Background(), "a@b.edu", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), "x@b.edu", "secret1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
