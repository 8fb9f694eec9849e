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

type timeoutLocker struct{}

func (timeoutLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, utils.ErrLockTimeout
}

func TestVoteRequiresUser(t *testing.T) {
	store := new(mocks.Store)
	svc := NewVoteService(store, utils.NewKeyedMutex(), nil, nopLogger())

	_, err := svc.Upvote(context.Background(), 0, models.TargetPost, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	store.AssertNotCalled(t, "ApplyVote", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVoteAppliesAndPurges(t *testing.T) {
	store := new(mocks.Store)
	cache := newSpyCache()
	cache.Set("trending:0:0:30", []models.Post{})
	svc := NewVoteService(store, utils.NewKeyedMutex(), cache, nopLogger())

	want := &models.VoteResult{Target: models.TargetPost, TargetID: 7, Score: 1, Upvotes: 1, State: models.VoteUpvoted, Previous: models.VoteNone}
	store.On("ApplyVote", mock.Anything, models.TargetPost, int64(7), int64(42), models.Up).Return(want, nil).Once()

	got, err := svc.Upvote(context.Background(), 42, models.TargetPost, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, cache.purges)
	assert.Nil(t, cache.Get("trending:0:0:30"))
	store.AssertExpectations(t)
}

func TestVoteMapsStoreErrors(t *testing.T) {
	cases := []struct {
		name     string
		storeErr error
		want     error
	}{
		{"missing entity", repository.ErrNotFound, ErrNotFound},
		{"contention", repository.ErrVoteContention, ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mocks.Store)
			cache := newSpyCache()
			svc := NewVoteService(store, utils.NewKeyedMutex(), cache, nopLogger())
			store.On("ApplyVote", mock.Anything, models.TargetComment, int64(3), int64(1), models.Down).Return(nil, tc.storeErr)

			_, err := svc.Downvote(context.Background(), 1, models.TargetComment, 3)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, cache.purges)
		})
	}
}

func TestVoteLockTimeoutIsConflict(t *testing.T) {
	store := new(mocks.Store)
	svc := NewVoteService(store, timeoutLocker{}, nil, nopLogger())

	_, err := svc.Upvote(context.Background(), 1, models.TargetPost, 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, errors.Is(err, ErrNotFound))
}
