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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxCommentLength = 10000

// IDSource hands out new entity ids. *utils.IDGenerator satisfies it.
type IDSource interface {
	Next() int64
}

type CreateCommentInput struct {
	PostID   int64
	AuthorID int64
	ParentID *int64
	Content  string
}

// CommentService writes comments and keeps the post comment counter in step.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	repair   CounterScheduler
	locker   utils.Locker
	ids      IDSource
	cache    ListCache
	log      *zap.Logger
	now      func() time.Time
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, repair CounterScheduler, locker utils.Locker, ids IDSource, cache ListCache, log *zap.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		repair:   repair,
		locker:   locker,
		ids:      ids,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// Create stores a new active comment and then increments the post counter.
// The returned CounterChange reports the second write; its failure does not
// fail the call. Both writes hold the post's counter lock so a recount never
// lands between them.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, models.CounterChange, error) {
	var none models.CounterChange
	if in.AuthorID == 0 {
		return nil, none, fmt.Errorf("create comment: %w", ErrUnauthorized)
	}
	content := strings.TrimSpace(in.Content)
	if content == "" || utf8.RuneCountInString(content) > maxCommentLength {
		return nil, none, fmt.Errorf("create comment: content length: %w", ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "CommentService.Create", trace.WithAttributes(attribute.Int64("post_id", in.PostID)))
	defer span.End()

	post, err := s.posts.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, none, wrapStoreErr("create comment", err)
	}
	if post.Status != models.PostActive {
		return nil, none, fmt.Errorf("create comment: post %d: %w", in.PostID, ErrNotFound)
	}

	if in.ParentID != nil {
		if err := s.checkParent(ctx, in.PostID, *in.ParentID); err != nil {
			return nil, none, err
		}
	}

	now := s.now()
	comment := &models.Comment{
		ID:       s.ids.Next(),
		PostID:   in.PostID,
		AuthorID: in.AuthorID,
		ParentID: in.ParentID,
		Content:  content,
		Status:   models.CommentActive,
		Votable: models.Votable{
			Upvoters:   models.NewVoteSet(),
			Downvoters: models.NewVoteSet(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock, err := acquire(ctx, s.locker, "create comment", commentCountLockKey(in.PostID))
	if err != nil {
		span.RecordError(err)
		return nil, none, err
	}
	defer unlock()

	if err := s.comments.CreateComment(ctx, comment); err != nil {
		span.RecordError(err)
		return nil, none, wrapStoreErr("create comment", err)
	}

	change := s.propagate(ctx, in.PostID, 1)
	purge(s.cache)
	return comment, change, nil
}

// checkParent 父评论必须存在、属于同一帖子且为 active
func (s *CommentService) checkParent(ctx context.Context, postID, parentID int64) error {
	parent, err := s.comments.GetComment(ctx, parentID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("create comment: parent %d: %w", parentID, ErrInvalidInput)
	}
	if err != nil {
		return wrapStoreErr("create comment", err)
	}
	if parent.PostID != postID || parent.Status != models.CommentActive {
		return fmt.Errorf("create comment: parent %d not in thread %d: %w", parentID, postID, ErrInvalidInput)
	}
	return nil
}

// propagate applies delta to the post counter. On failure the post is queued
// for a recount.
func (s *CommentService) propagate(ctx context.Context, postID int64, delta int) models.CounterChange {
	change := models.CounterChange{PostID: postID, Delta: delta}
	if delta == 0 {
		change.Applied = true
		return change
	}

	if err := s.posts.AdjustCommentCount(ctx, postID, delta, s.now()); err != nil {
		change.Err = err
		counterSyncFailuresTotal.Inc()
		utils.LoggerWithTrace(ctx, s.log).Warn("comment counter update failed",
			zap.Int64("post_id", postID),
			zap.Int("delta", delta),
			zap.Error(err),
		)
		if s.repair != nil {
			s.repair.Schedule(postID)
		}
		return change
	}
	change.Applied = true
	return change
}

// statusDelta is the counter change of moving a comment between statuses.
func statusDelta(from, to models.CommentStatus) int {
	wasActive := from == models.CommentActive
	isActive := to == models.CommentActive
	switch {
	case wasActive && !isActive:
		return -1
	case !wasActive && isActive:
		return 1
	}
	return 0
}

// SetStatus changes a comment's status. Authors may only delete their own
// comments; moderators and admins may set any status.
func (s *CommentService) SetStatus(ctx context.Context, actor *models.User, commentID int64, status models.CommentStatus) (*models.Comment, models.CounterChange, error) {
	var none models.CounterChange
	if actor == nil || actor.ID == 0 {
		return nil, none, fmt.Errorf("set comment status: %w", ErrUnauthorized)
	}

	comment, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, none, wrapStoreErr("set comment status", err)
	}
	if !actor.Role.CanModerate() && (actor.ID != comment.AuthorID || status != models.CommentDeleted) {
		return nil, none, fmt.Errorf("set comment status: %w", ErrForbidden)
	}

	unlock, err := acquire(ctx, s.locker, "set comment status", commentCountLockKey(comment.PostID))
	if err != nil {
		return nil, none, err
	}
	defer unlock()

	previous, err := s.comments.UpdateCommentStatus(ctx, commentID, status, s.now())
	if err != nil {
		return nil, none, wrapStoreErr("set comment status", err)
	}
	comment.Status = status

	change := s.propagate(ctx, comment.PostID, statusDelta(previous, status))
	purge(s.cache)

	utils.LoggerWithTrace(ctx, s.log).Info("comment status changed",
		zap.Int64("comment_id", commentID),
		zap.Int64("actor_id", actor.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	return comment, change, nil
}

// Delete soft-deletes a comment.
func (s *CommentService) Delete(ctx context.Context, actor *models.User, commentID int64) (*models.Comment, models.CounterChange, error) {
	return s.SetStatus(ctx, actor, commentID, models.CommentDeleted)
}

// Tree returns the ordered comment forest of a thread.
func (s *CommentService) Tree(ctx context.Context, postID int64) ([]*models.CommentNode, error) {
	ctx, span := tracer.Start(ctx, "CommentService.Tree", trace.WithAttributes(attribute.Int64("post_id", postID)))
	defer span.End()

	comments, err := s.comments.ListActiveComments(ctx, postID)
	if err != nil {
		span.RecordError(err)
		return nil, wrapStoreErr("comment tree", err)
	}
	return utils.BuildCommentTree(comments), nil
}
