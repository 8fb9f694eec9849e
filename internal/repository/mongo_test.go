package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campuslink/internal/db"
	"campuslink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.uber.org/zap"
)

func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcmongo.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("mongo container unavailable: %v", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := db.ConnectMongo(ctx, uri, zap.NewNop())
	require.NoError(t, err)
	s := NewMongoStore(client, "campuslink_test")
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func seedMongoPost(t *testing.T, s *MongoStore, id, collegeID int64, courseID *int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.CreatePost(context.Background(), &models.Post{
		ID:        id,
		AuthorID:  100,
		CollegeID: collegeID,
		CourseID:  courseID,
		Title:     "post",
		Content:   "body",
		Status:    models.PostActive,
		Votable: models.Votable{
			Upvoters:   models.NewVoteSet(),
			Downvoters: models.NewVoteSet(),
		},
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		LastActiveAt: createdAt,
	}))
}

func TestMongoStore(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()
	// Mongo 只保存到毫秒
	now := time.Now().UTC().Truncate(time.Millisecond)

	seedMongoPost(t, s, 1, 1, nil, now)

	t.Run("toggle vote", func(t *testing.T) {
		res, err := s.ApplyVote(ctx, models.TargetPost, 1, 7, models.Up)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Score)
		assert.Equal(t, models.VoteUpvoted, res.State)

		res, err = s.ApplyVote(ctx, models.TargetPost, 1, 7, models.Down)
		require.NoError(t, err)
		assert.Equal(t, -1, res.Score)
		assert.Equal(t, models.VoteUpvoted, res.Previous)

		res, err = s.ApplyVote(ctx, models.TargetPost, 1, 7, models.Down)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, models.VoteNone, res.State)

		_, err = s.ApplyVote(ctx, models.TargetComment, 404, 7, models.Up)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent voters", func(t *testing.T) {
		seedMongoPost(t, s, 2, 1, nil, now)

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			ups, downs int
		)
		for user := int64(1); user <= 20; user++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				dir := models.Up
				if user%4 == 0 {
					dir = models.Down
				}
				_, err := s.ApplyVote(ctx, models.TargetPost, 2, user, dir)
				if errors.Is(err, ErrVoteContention) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if dir == models.Up {
					ups++
				} else {
					downs++
				}
			}(user)
		}
		wg.Wait()

		post, err := s.GetPost(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, ups, post.Upvoters.Len())
		assert.Equal(t, downs, post.Downvoters.Len())
		assert.Equal(t, post.Upvoters.Len()-post.Downvoters.Len(), post.Score)
		assert.Positive(t, ups+downs)
	})

	t.Run("comment counter", func(t *testing.T) {
		seedMongoPost(t, s, 3, 1, nil, now)
		for i := int64(0); i < 3; i++ {
			require.NoError(t, s.CreateComment(ctx, &models.Comment{
				ID: 300 + i, PostID: 3, AuthorID: 100, Content: "c", Status: models.CommentActive, CreatedAt: now,
			}))
		}

		require.NoError(t, s.AdjustCommentCount(ctx, 3, -1, now))
		post, err := s.GetPost(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, post.CommentCount, "counter never goes below zero")

		require.NoError(t, s.AdjustCommentCount(ctx, 3, 5, now.Add(time.Minute)))
		post, err = s.GetPost(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, post.CommentCount)
		assert.True(t, post.LastActiveAt.Equal(now.Add(time.Minute)))

		previous, err := s.UpdateCommentStatus(ctx, 300, models.CommentRemoved, now)
		require.NoError(t, err)
		assert.Equal(t, models.CommentActive, previous)
		previous, err = s.UpdateCommentStatus(ctx, 300, models.CommentActive, now)
		require.NoError(t, err)
		assert.Equal(t, models.CommentRemoved, previous)
		_, err = s.UpdateCommentStatus(ctx, 404, models.CommentRemoved, now)
		assert.ErrorIs(t, err, ErrNotFound)

		was, n, err := s.RecountComments(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, was)
		assert.Equal(t, 3, n)

		assert.ErrorIs(t, s.AdjustCommentCount(ctx, 404, 1, now), ErrNotFound)
	})

	t.Run("activity aggregations", func(t *testing.T) {
		courseA, courseB := int64(51), int64(52)
		seedMongoPost(t, s, 10, 2, &courseA, now)
		seedMongoPost(t, s, 11, 2, &courseA, now)
		seedMongoPost(t, s, 12, 2, &courseB, now)
		seedMongoPost(t, s, 13, 3, &courseB, now.Add(-40*24*time.Hour))

		since := now.Add(-30 * 24 * time.Hour)
		courses, err := s.CountPostsByCourse(ctx, 2, since, 10)
		require.NoError(t, err)
		assert.Equal(t, []models.ActivityCount{{ID: courseA, PostCount: 2}, {ID: courseB, PostCount: 1}}, courses)

		colleges, err := s.CountPostsByCollege(ctx, since, 1)
		require.NoError(t, err)
		require.Len(t, colleges, 1)
		assert.Equal(t, int64(1), colleges[0].ID)
	})

	t.Run("karma", func(t *testing.T) {
		require.NoError(t, s.CreateUser(ctx, &models.User{
			ID: 100, Username: "ada", Email: "ada@uni.edu", Password: "x", CollegeID: 1, Role: models.RoleStudent,
		}))
		assert.ErrorIs(t, s.CreateUser(ctx, &models.User{
			ID: 101, Username: "ada2", Email: "ada@uni.edu", Password: "x", CollegeID: 1, Role: models.RoleStudent,
		}), ErrDuplicate)

		previous, err := s.SaveKarma(ctx, 100, 20)
		require.NoError(t, err)
		assert.Equal(t, 0, previous)
		previous, err = s.SaveKarma(ctx, 100, 15)
		require.NoError(t, err)
		assert.Equal(t, 20, previous)
	})

	t.Run("seed college once", func(t *testing.T) {
		first := &models.College{ID: 1, Name: "State University", Slug: "state", CreatedAt: now}
		require.NoError(t, s.SeedCollege(ctx, first))
		require.NoError(t, s.SeedCollege(ctx, &models.College{ID: 2, Name: "Renamed", Slug: "state", CreatedAt: now}))

		college, err := s.GetCollege(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "State University", college.Name)
		_, err = s.GetCollege(ctx, 2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("event capacity", func(t *testing.T) {
		require.NoError(t, s.CreateEvent(ctx, &models.Event{
			ID: 20, Title: "Hackathon", Description: "d", CollegeID: 1, OrganizerID: 100,
			StartTime: now.Add(time.Hour), EndTime: now.Add(3 * time.Hour), Location: "Hall",
			RegistrationRequired: true, MaxAttendees: 3,
			EventType: models.EventAcademic, Visibility: models.VisibilityPublic, Status: models.EventScheduled,
			CreatedAt: now, UpdatedAt: now,
		}))

		var (
			wg               sync.WaitGroup
			mu               sync.Mutex
			registered, full int
		)
		for user := int64(1); user <= 10; user++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				_, err := s.RegisterAttendee(ctx, 20, user, 3, now)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					registered++
				case errors.Is(err, ErrCapacity):
					full++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(user)
		}
		wg.Wait()
		assert.Equal(t, 3, registered)
		assert.Equal(t, 7, full)

		event, err := s.GetEvent(ctx, 20)
		require.NoError(t, err)
		assert.Equal(t, 3, event.AttendeeCount)

		upcoming, err := s.UpcomingEvents(ctx, 1, now, 5)
		require.NoError(t, err)
		require.Len(t, upcoming, 1)
		assert.Equal(t, int64(20), upcoming[0].ID)
	})

	t.Run("event registration lifecycle", func(t *testing.T) {
		require.NoError(t, s.CreateEvent(ctx, &models.Event{
			ID: 21, Title: "Mixer", Description: "d", CollegeID: 1, OrganizerID: 100,
			StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour), Location: "Quad",
			EventType: models.EventSocial, Visibility: models.VisibilityPrivate, Status: models.EventScheduled,
			CreatedAt: now, UpdatedAt: now,
		}))

		_, err := s.RegisterAttendee(ctx, 21, 5, 0, now)
		require.NoError(t, err)
		_, err = s.RegisterAttendee(ctx, 21, 5, 0, now)
		assert.ErrorIs(t, err, ErrDuplicate)

		event, err := s.CancelRegistration(ctx, 21, 5)
		require.NoError(t, err)
		assert.Equal(t, 0, event.AttendeeCount)
		_, err = s.CancelRegistration(ctx, 21, 5)
		assert.ErrorIs(t, err, ErrNotFound)

		event, err = s.RegisterAttendee(ctx, 21, 5, 0, now)
		require.NoError(t, err)
		assert.Equal(t, 1, event.AttendeeCount)

		_, err = s.RegisterAttendee(ctx, 404, 5, 0, now)
		assert.ErrorIs(t, err, ErrNotFound)

		interest, err := s.ToggleInterested(ctx, 21, 5, now)
		require.NoError(t, err)
		assert.True(t, interest.Interested)
		assert.Equal(t, 1, interest.InterestedCount)
		interest, err = s.ToggleInterested(ctx, 21, 5, now)
		require.NoError(t, err)
		assert.False(t, interest.Interested)
		assert.Equal(t, 0, interest.InterestedCount)

		upcoming, err := s.UpcomingEvents(ctx, 1, now, 5)
		require.NoError(t, err)
		for _, e := range upcoming {
			assert.NotEqual(t, int64(21), e.ID, "private events are not listed")
		}
	})

	t.Run("study group members", func(t *testing.T) {
		require.NoError(t, s.CreateStudyGroup(ctx, &models.StudyGroup{
			ID: 30, Name: "CS101", Description: "d", CollegeID: 1, CreatorID: 100,
			MemberLimit: 2, Status: models.GroupActive,
			Members:   []models.GroupMember{{GroupID: 30, UserID: 100, Role: models.GroupLeaderRole, JoinedAt: now}},
			CreatedAt: now, UpdatedAt: now, LastActiveAt: now,
		}))

		added, err := s.AddMember(ctx, 30, 5, models.GroupMemberRole, now)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = s.AddMember(ctx, 30, 5, models.GroupMemberRole, now)
		require.NoError(t, err)
		assert.False(t, added)
		_, err = s.AddMember(ctx, 30, 6, models.GroupMemberRole, now)
		assert.ErrorIs(t, err, ErrCapacity)

		require.NoError(t, s.UpdateMemberRole(ctx, 30, 5, models.GroupModeratorRole))
		assert.ErrorIs(t, s.UpdateMemberRole(ctx, 30, 6, models.GroupModeratorRole), ErrNotFound)

		group, err := s.GetStudyGroup(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, 2, group.MemberCount)
		role, ok := group.RoleOf(5)
		assert.True(t, ok)
		assert.Equal(t, models.GroupModeratorRole, role)

		removed, err := s.RemoveMember(ctx, 30, 5)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.RemoveMember(ctx, 30, 5)
		require.NoError(t, err)
		assert.False(t, removed)
		_, err = s.RemoveMember(ctx, 404, 5)
		assert.ErrorIs(t, err, ErrNotFound)

		added, err = s.AddMember(ctx, 30, 6, models.GroupMemberRole, now)
		require.NoError(t, err)
		assert.True(t, added, "a freed seat can be taken")
	})
}
