// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"campuslink/internal/models"
	"campuslink/internal/repository"

	"github.com/stretchr/testify/mock"
)

// Store 是 repository.Store 接口的模拟实现
type Store struct {
	mock.Mock
}

var _ repository.Store = (*Store)(nil)

func (m *Store) ApplyVote(ctx context.Context, target models.TargetType, targetID, userID int64, dir models.Direction) (*models.VoteResult, error) {
	args := m.Called(ctx, target, targetID, userID, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VoteResult), args.Error(1)
}

func (m *Store) CreatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *Store) ListPosts(ctx context.Context, q models.RankQuery, order repository.PostOrder) ([]models.Post, error) {
	args := m.Called(ctx, q, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *Store) PostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	args := m.Called(ctx, authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

func (m *Store) RecordView(ctx context.Context, id int64, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *Store) AdjustCommentCount(ctx context.Context, postID int64, delta int, at time.Time) error {
	args := m.Called(ctx, postID, delta, at)
	return args.Error(0)
}

func (m *Store) RecountComments(ctx context.Context, postID int64) (int, int, error) {
	args := m.Called(ctx, postID)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *Store) RecentlyActivePostIDs(ctx context.Context, since time.Time) ([]int64, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *Store) CountPostsByCourse(ctx context.Context, collegeID int64, since time.Time, limit int) ([]models.ActivityCount, error) {
	args := m.Called(ctx, collegeID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityCount), args.Error(1)
}

func (m *Store) CountPostsByCollege(ctx context.Context, since time.Time, limit int) ([]models.ActivityCount, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityCount), args.Error(1)
}

func (m *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *Store) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *Store) ListActiveComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *Store) CommentsByAuthor(ctx context.Context, authorID int64) ([]models.Comment, error) {
	args := m.Called(ctx, authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *Store) UpdateCommentStatus(ctx context.Context, id int64, status models.CommentStatus, at time.Time) (models.CommentStatus, error) {
	args := m.Called(ctx, id, status, at)
	return args.Get(0).(models.CommentStatus), args.Error(1)
}

func (m *Store) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *Store) SaveKarma(ctx context.Context, userID int64, karma int) (int, error) {
	args := m.Called(ctx, userID, karma)
	return args.Int(0), args.Error(1)
}

func (m *Store) GetCollege(ctx context.Context, id int64) (*models.College, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.College), args.Error(1)
}

func (m *Store) CollegesByIDs(ctx context.Context, ids []int64) ([]models.College, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.College), args.Error(1)
}

func (m *Store) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}

func (m *Store) CoursesByIDs(ctx context.Context, ids []int64) ([]models.Course, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Course), args.Error(1)
}

func (m *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *Store) UpcomingEvents(ctx context.Context, collegeID int64, now time.Time, limit int) ([]models.Event, error) {
	args := m.Called(ctx, collegeID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *Store) RegisterAttendee(ctx context.Context, eventID, userID int64, capacity int, at time.Time) (*models.Event, error) {
	args := m.Called(ctx, eventID, userID, capacity, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *Store) CancelRegistration(ctx context.Context, eventID, userID int64) (*models.Event, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *Store) ToggleInterested(ctx context.Context, eventID, userID int64, at time.Time) (*models.InterestResult, error) {
	args := m.Called(ctx, eventID, userID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InterestResult), args.Error(1)
}

func (m *Store) CreateStudyGroup(ctx context.Context, group *models.StudyGroup) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *Store) GetStudyGroup(ctx context.Context, id int64) (*models.StudyGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudyGroup), args.Error(1)
}

func (m *Store) AddMember(ctx context.Context, groupID, userID int64, role models.GroupRole, at time.Time) (bool, error) {
	args := m.Called(ctx, groupID, userID, role, at)
	return args.Bool(0), args.Error(1)
}

func (m *Store) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) UpdateMemberRole(ctx context.Context, groupID, userID int64, role models.GroupRole) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

func (m *Store) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Store) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
