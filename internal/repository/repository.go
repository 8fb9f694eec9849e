// Package repository defines the persistence contract of the core services
// and its Postgres (gorm) and MongoDB implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"campuslink/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrVoteContention is returned when an optimistic vote write keeps
	// losing against concurrent writers.
	ErrVoteContention = errors.New("vote contention")
	// ErrCapacity is returned when an event or study group is full.
	ErrCapacity = errors.New("capacity reached")
)

type PostOrder int

const (
	OrderTrending PostOrder = iota
	OrderNewest
)

// VoteRepository applies one toggle-vote atomically: the entity's vote sets
// are read, transitioned with models.Votable.ApplyVote and written back
// without another vote on the same entity interleaving.
type VoteRepository interface {
	ApplyVote(ctx context.Context, target models.TargetType, targetID, userID int64, dir models.Direction) (*models.VoteResult, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	// ListPosts returns active posts matching q in the given order.
	ListPosts(ctx context.Context, q models.RankQuery, order PostOrder) ([]models.Post, error)
	PostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error)
	RecordView(ctx context.Context, id int64, at time.Time) error
	// AdjustCommentCount adds delta to the post's comment counter, never
	// going below zero. A positive delta also bumps last_active_at.
	AdjustCommentCount(ctx context.Context, postID int64, delta int, at time.Time) error
	// RecountComments rewrites the counter from the active comments under a
	// row lock and returns the value it replaced.
	RecountComments(ctx context.Context, postID int64) (previous, count int, err error)
	RecentlyActivePostIDs(ctx context.Context, since time.Time) ([]int64, error)
	CountPostsByCourse(ctx context.Context, collegeID int64, since time.Time, limit int) ([]models.ActivityCount, error)
	CountPostsByCollege(ctx context.Context, since time.Time, limit int) ([]models.ActivityCount, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id int64) (*models.Comment, error)
	ListActiveComments(ctx context.Context, postID int64) ([]models.Comment, error)
	CommentsByAuthor(ctx context.Context, authorID int64) ([]models.Comment, error)
	// UpdateCommentStatus sets the status and returns the one it replaced.
	UpdateCommentStatus(ctx context.Context, id int64, status models.CommentStatus, at time.Time) (models.CommentStatus, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// SaveKarma stores the recomputed karma, logs it and returns the
	// previous value.
	SaveKarma(ctx context.Context, userID int64, karma int) (int, error)
}

type CatalogRepository interface {
	GetCollege(ctx context.Context, id int64) (*models.College, error)
	CollegesByIDs(ctx context.Context, ids []int64) ([]models.College, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	CoursesByIDs(ctx context.Context, ids []int64) ([]models.Course, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	// UpcomingEvents lists scheduled or rescheduled events of the college
	// starting at or after now that are not private, soonest first.
	UpcomingEvents(ctx context.Context, collegeID int64, now time.Time, limit int) ([]models.Event, error)
	// RegisterAttendee adds userID to the event. capacity > 0 caps the
	// registered attendees; the check and the insert are one atomic step.
	// Returns ErrDuplicate when already registered and ErrCapacity when full.
	RegisterAttendee(ctx context.Context, eventID, userID int64, capacity int, at time.Time) (*models.Event, error)
	// CancelRegistration returns ErrNotFound when userID holds no active
	// registration.
	CancelRegistration(ctx context.Context, eventID, userID int64) (*models.Event, error)
	ToggleInterested(ctx context.Context, eventID, userID int64, at time.Time) (*models.InterestResult, error)
}

type StudyGroupRepository interface {
	// CreateStudyGroup stores the group with its creator as leader.
	CreateStudyGroup(ctx context.Context, group *models.StudyGroup) error
	// GetStudyGroup returns the group with its members.
	GetStudyGroup(ctx context.Context, id int64) (*models.StudyGroup, error)
	// AddMember is a no-op returning false for an existing member and
	// ErrCapacity when the group is at its member limit.
	AddMember(ctx context.Context, groupID, userID int64, role models.GroupRole, at time.Time) (bool, error)
	// RemoveMember reports whether userID was a member.
	RemoveMember(ctx context.Context, groupID, userID int64) (bool, error)
	// UpdateMemberRole returns ErrNotFound when userID is not a member.
	UpdateMemberRole(ctx context.Context, groupID, userID int64, role models.GroupRole) error
}

// Store is everything one backend provides.
type Store interface {
	VoteRepository
	PostRepository
	CommentRepository
	UserRepository
	CatalogRepository
	EventRepository
	StudyGroupRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
