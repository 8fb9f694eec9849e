package services

import (
	"context"
	"errors"
	"testing"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/repository/mocks"
	"campuslink/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCommentService(store *mocks.Store, sched CounterScheduler) *CommentService {
	svc := NewCommentService(store, store, sched, utils.NewKeyedMutex(), &seqIDs{next: 100}, newSpyCache(), nopLogger())
	svc.now = fixedNow
	return svc
}

func activePost(id int64) *models.Post {
	return &models.Post{ID: id, Status: models.PostActive}
}

func TestCreateCommentUpdatesCounter(t *testing.T) {
	store := new(mocks.Store)
	sched := &spyScheduler{}
	svc := newCommentService(store, sched)

	store.On("GetPost", mock.Anything, int64(1)).Return(activePost(1), nil)
	store.On("CreateComment", mock.Anything, mock.AnythingOfType("*models.Comment")).Return(nil)
	store.On("AdjustCommentCount", mock.Anything, int64(1), 1, testNow).Return(nil)

	comment, change, err := svc.Create(context.Background(), CreateCommentInput{PostID: 1, AuthorID: 9, Content: "  see ch. 4  "})
	require.NoError(t, err)
	assert.Equal(t, int64(101), comment.ID)
	assert.Equal(t, "see ch. 4", comment.Content)
	assert.Equal(t, models.CommentActive, comment.Status)
	assert.True(t, change.Applied)
	assert.Equal(t, 1, change.Delta)
	assert.Empty(t, sched.scheduled)
	store.AssertExpectations(t)
}

func TestCreateCommentCounterFailureSchedulesRepair(t *testing.T) {
	store := new(mocks.Store)
	sched := &spyScheduler{}
	svc := newCommentService(store, sched)

	store.On("GetPost", mock.Anything, int64(1)).Return(activePost(1), nil)
	store.On("CreateComment", mock.Anything, mock.Anything).Return(nil)
	store.On("AdjustCommentCount", mock.Anything, int64(1), 1, testNow).Return(errors.New("connection reset"))

	comment, change, err := svc.Create(context.Background(), CreateCommentInput{PostID: 1, AuthorID: 9, Content: "hi"})
	require.NoError(t, err, "the comment write itself succeeded")
	assert.NotNil(t, comment)
	assert.False(t, change.Applied)
	assert.Error(t, change.Err)
	assert.Equal(t, []int64{1}, sched.scheduled)
}

func TestCreateCommentValidation(t *testing.T) {
	parentOther := int64(50)
	parentRemoved := int64(51)
	parentMissing := int64(52)

	cases := []struct {
		name  string
		setup func(*mocks.Store)
		in    CreateCommentInput
		want  error
	}{
		{
			name: "anonymous",
			in:   CreateCommentInput{PostID: 1, Content: "x"},
			want: ErrUnauthorized,
		},
		{
			name: "blank content",
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "   "},
			want: ErrInvalidInput,
		},
		{
			name: "missing post",
			setup: func(s *mocks.Store) {
				s.On("GetPost", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
			},
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "x"},
			want: ErrNotFound,
		},
		{
			name: "removed post",
			setup: func(s *mocks.Store) {
				s.On("GetPost", mock.Anything, int64(1)).Return(&models.Post{ID: 1, Status: models.PostRemoved}, nil)
			},
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "x"},
			want: ErrNotFound,
		},
		{
			name: "parent in another thread",
			setup: func(s *mocks.Store) {
				s.On("GetPost", mock.Anything, int64(1)).Return(activePost(1), nil)
				s.On("GetComment", mock.Anything, parentOther).Return(&models.Comment{ID: parentOther, PostID: 2, Status: models.CommentActive}, nil)
			},
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "x", ParentID: &parentOther},
			want: ErrInvalidInput,
		},
		{
			name: "removed parent",
			setup: func(s *mocks.Store) {
				s.On("GetPost", mock.Anything, int64(1)).Return(activePost(1), nil)
				s.On("GetComment", mock.Anything, parentRemoved).Return(&models.Comment{ID: parentRemoved, PostID: 1, Status: models.CommentRemoved}, nil)
			},
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "x", ParentID: &parentRemoved},
			want: ErrInvalidInput,
		},
		{
			name: "missing parent",
			setup: func(s *mocks.Store) {
				s.On("GetPost", mock.Anything, int64(1)).Return(activePost(1), nil)
				s.On("GetComment", mock.Anything, parentMissing).Return(nil, repository.ErrNotFound)
			},
			in:   CreateCommentInput{PostID: 1, AuthorID: 9, Content: "x", ParentID: &parentMissing},
			want: ErrInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mocks.Store)
			if tc.setup != nil {
				tc.setup(store)
			}
			svc := newCommentService(store, &spyScheduler{})

			_, _, err := svc.Create(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			store.AssertNotCalled(t, "CreateComment", mock.Anything, mock.Anything)
		})
	}
}

func TestStatusDelta(t *testing.T) {
	assert.Equal(t, -1, statusDelta(models.CommentActive, models.CommentDeleted))
	assert.Equal(t, -1, statusDelta(models.CommentActive, models.CommentRemoved))
	assert.Equal(t, 1, statusDelta(models.CommentRemoved, models.CommentActive))
	assert.Equal(t, 0, statusDelta(models.CommentRemoved, models.CommentDeleted))
	assert.Equal(t, 0, statusDelta(models.CommentActive, models.CommentActive))
}

func TestDeleteOwnComment(t *testing.T) {
	store := new(mocks.Store)
	svc := newCommentService(store, &spyScheduler{})
	author := &models.User{ID: 9, Role: models.RoleStudent}

	store.On("GetComment", mock.Anything, int64(5)).Return(&models.Comment{ID: 5, PostID: 1, AuthorID: 9, Status: models.CommentActive}, nil)
	store.On("UpdateCommentStatus", mock.Anything, int64(5), models.CommentDeleted, testNow).Return(models.CommentActive, nil)
	store.On("AdjustCommentCount", mock.Anything, int64(1), -1, testNow).Return(nil)

	comment, change, err := svc.Delete(context.Background(), author, 5)
	require.NoError(t, err)
	assert.Equal(t, models.CommentDeleted, comment.Status)
	assert.Equal(t, -1, change.Delta)
	assert.True(t, change.Applied)
	store.AssertExpectations(t)
}

func TestDeleteAlreadyDeletedCommentLeavesCounter(t *testing.T) {
	store := new(mocks.Store)
	svc := newCommentService(store, &spyScheduler{})
	mod := &models.User{ID: 2, Role: models.RoleModerator}

	store.On("GetComment", mock.Anything, int64(5)).Return(&models.Comment{ID: 5, PostID: 1, AuthorID: 9, Status: models.CommentRemoved}, nil)
	store.On("UpdateCommentStatus", mock.Anything, int64(5), models.CommentDeleted, testNow).Return(models.CommentRemoved, nil)

	_, change, err := svc.Delete(context.Background(), mod, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, change.Delta)
	assert.True(t, change.Applied)
	store.AssertNotCalled(t, "AdjustCommentCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatusPermissions(t *testing.T) {
	store := new(mocks.Store)
	svc := newCommentService(store, &spyScheduler{})
	store.On("GetComment", mock.Anything, int64(5)).Return(&models.Comment{ID: 5, PostID: 1, AuthorID: 9, Status: models.CommentActive}, nil)

	_, _, err := svc.SetStatus(context.Background(), nil, 5, models.CommentDeleted)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stranger := &models.User{ID: 10, Role: models.RoleStudent}
	_, _, err = svc.Delete(context.Background(), stranger, 5)
	assert.ErrorIs(t, err, ErrForbidden)

	// 作者不能自行恢复或移除，只能删除
	author := &models.User{ID: 9, Role: models.RoleStudent}
	_, _, err = svc.SetStatus(context.Background(), author, 5, models.CommentRemoved)
	assert.ErrorIs(t, err, ErrForbidden)

	store.AssertNotCalled(t, "UpdateCommentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestModeratorRestoresComment(t *testing.T) {
	store := new(mocks.Store)
	svc := newCommentService(store, &spyScheduler{})
	mod := &models.User{ID: 2, Role: models.RoleAdmin}

	store.On("GetComment", mock.Anything, int64(5)).Return(&models.Comment{ID: 5, PostID: 1, AuthorID: 9, Status: models.CommentRemoved}, nil)
	store.On("UpdateCommentStatus", mock.Anything, int64(5), models.CommentActive, testNow).Return(models.CommentRemoved, nil)
	store.On("AdjustCommentCount", mock.Anything, int64(1), 1, testNow).Return(nil)

	_, change, err := svc.SetStatus(context.Background(), mod, 5, models.CommentActive)
	require.NoError(t, err)
	assert.Equal(t, 1, change.Delta)
	store.AssertExpectations(t)
}

func TestCommentTreeDropsOrphans(t *testing.T) {
	store := new(mocks.Store)
	svc := newCommentService(store, nil)

	removedParent := int64(99)
	store.On("ListActiveComments", mock.Anything, int64(1)).Return([]models.Comment{
		{ID: 1, PostID: 1, Status: models.CommentActive, CreatedAt: testNow},
		{ID: 2, PostID: 1, ParentID: &removedParent, Status: models.CommentActive, CreatedAt: testNow},
	}, nil)

	tree, err := svc.Tree(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, int64(1), tree[0].ID)
}
