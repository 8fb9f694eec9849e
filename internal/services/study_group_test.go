package services

import (
	"context"
	"testing"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newStudyGroupService(store *mocks.Store) *StudyGroupService {
	svc := NewStudyGroupService(store, store, &seqIDs{next: 70}, nopLogger())
	svc.now = fixedNow
	return svc
}

// 组长 1，版主 2，成员 3
func sampleGroup() *models.StudyGroup {
	return &models.StudyGroup{
		ID: 6, Status: models.GroupActive, MemberLimit: 20, MemberCount: 3,
		Members: []models.GroupMember{
			{GroupID: 6, UserID: 1, Role: models.GroupLeaderRole},
			{GroupID: 6, UserID: 2, Role: models.GroupModeratorRole},
			{GroupID: 6, UserID: 3, Role: models.GroupMemberRole},
		},
	}
}

func TestCreateStudyGroupMakesCreatorLeader(t *testing.T) {
	store := new(mocks.Store)
	svc := newStudyGroupService(store)

	store.On("GetCollege", mock.Anything, int64(1)).Return(&models.College{ID: 1}, nil)
	store.On("CreateStudyGroup", mock.Anything, mock.AnythingOfType("*models.StudyGroup")).Return(nil)

	group, err := svc.Create(context.Background(), CreateStudyGroupInput{CreatorID: 9, CollegeID: 1, Name: "CS101 crew", Description: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMemberLimit, group.MemberLimit)
	assert.Equal(t, 1, group.MemberCount)
	role, ok := group.RoleOf(9)
	assert.True(t, ok)
	assert.Equal(t, models.GroupLeaderRole, role)
}

func TestCreateStudyGroupRejectsLimit(t *testing.T) {
	svc := newStudyGroupService(new(mocks.Store))
	_, err := svc.Create(context.Background(), CreateStudyGroupInput{CreatorID: 9, CollegeID: 1, Name: "n", Description: "d", MemberLimit: -2})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinStudyGroup(t *testing.T) {
	store := new(mocks.Store)
	svc := newStudyGroupService(store)
	store.On("GetStudyGroup", mock.Anything, int64(6)).Return(sampleGroup(), nil)
	store.On("AddMember", mock.Anything, int64(6), int64(4), models.GroupMemberRole, testNow).Return(true, nil).Once()
	store.On("AddMember", mock.Anything, int64(6), int64(4), models.GroupMemberRole, testNow).Return(false, nil).Once()
	store.On("AddMember", mock.Anything, int64(6), int64(5), models.GroupMemberRole, testNow).Return(false, repository.ErrCapacity)

	added, err := svc.Join(context.Background(), 4, 6)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.Join(context.Background(), 4, 6)
	require.NoError(t, err)
	assert.False(t, added, "joining twice is a no-op")

	_, err = svc.Join(context.Background(), 5, 6)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestJoinInactiveGroup(t *testing.T) {
	store := new(mocks.Store)
	svc := newStudyGroupService(store)
	group := sampleGroup()
	group.Status = models.GroupCompleted
	store.On("GetStudyGroup", mock.Anything, int64(6)).Return(group, nil)

	_, err := svc.Join(context.Background(), 4, 6)
	assert.ErrorIs(t, err, ErrConflict)
	store.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberPermissions(t *testing.T) {
	cases := []struct {
		name   string
		actor  models.User
		target int64
		want   error
	}{
		{"member leaves", models.User{ID: 3}, 3, nil},
		{"moderator removes member", models.User{ID: 2}, 3, nil},
		{"member removes member", models.User{ID: 3}, 2, ErrForbidden},
		{"outsider removes member", models.User{ID: 8}, 3, ErrForbidden},
		{"group moderator removes leader", models.User{ID: 2}, 1, ErrForbidden},
		{"site moderator removes leader", models.User{ID: 8, Role: models.RoleModerator}, 1, nil},
		{"not a member", models.User{ID: 1}, 9, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mocks.Store)
			svc := newStudyGroupService(store)
			store.On("GetStudyGroup", mock.Anything, int64(6)).Return(sampleGroup(), nil)
			store.On("RemoveMember", mock.Anything, int64(6), tc.target).Return(true, nil)

			actor := tc.actor
			err := svc.RemoveMember(context.Background(), &actor, 6, tc.target)
			if tc.want == nil {
				require.NoError(t, err)
				store.AssertCalled(t, "RemoveMember", mock.Anything, int64(6), tc.target)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			store.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSetRole(t *testing.T) {
	store := new(mocks.Store)
	svc := newStudyGroupService(store)
	store.On("GetStudyGroup", mock.Anything, int64(6)).Return(sampleGroup(), nil)
	store.On("UpdateMemberRole", mock.Anything, int64(6), int64(3), models.GroupModeratorRole).Return(nil)
	store.On("UpdateMemberRole", mock.Anything, int64(6), int64(9), models.GroupModeratorRole).Return(repository.ErrNotFound)

	require.NoError(t, svc.SetRole(context.Background(), &models.User{ID: 1}, 6, 3, models.GroupModeratorRole))
	assert.ErrorIs(t, svc.SetRole(context.Background(), &models.User{ID: 2}, 6, 3, models.GroupModeratorRole), ErrForbidden)
	assert.ErrorIs(t, svc.SetRole(context.Background(), &models.User{ID: 1}, 6, 9, models.GroupModeratorRole), ErrNotFound)
}
