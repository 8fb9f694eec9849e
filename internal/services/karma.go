package services

import (
	"context"

	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// KarmaService 按需重算用户 karma：所有帖子与评论的 score 之和
type KarmaService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	log      *zap.Logger
}

func NewKarmaService(users repository.UserRepository, posts repository.PostRepository, comments repository.CommentRepository, log *zap.Logger) *KarmaService {
	return &KarmaService{users: users, posts: posts, comments: comments, log: log}
}

// Recompute sums the score of every post and comment the user authored,
// whatever their status, and stores the result on the user.
func (s *KarmaService) Recompute(ctx context.Context, userID int64) (int, error) {
	ctx, span := tracer.Start(ctx, "KarmaService.Recompute", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return 0, wrapStoreErr("recompute karma", err)
	}

	posts, err := s.posts.PostsByAuthor(ctx, userID)
	if err != nil {
		return 0, wrapStoreErr("recompute karma", err)
	}
	comments, err := s.comments.CommentsByAuthor(ctx, userID)
	if err != nil {
		return 0, wrapStoreErr("recompute karma", err)
	}

	karma := 0
	for _, p := range posts {
		karma += p.Score
	}
	for _, c := range comments {
		karma += c.Score
	}

	previous, err := s.users.SaveKarma(ctx, userID, karma)
	if err != nil {
		span.RecordError(err)
		return 0, wrapStoreErr("recompute karma", err)
	}

	utils.LoggerWithTrace(ctx, s.log).Info("karma recomputed",
		zap.Int64("user_id", userID),
		zap.Int("karma", karma),
		zap.Int("delta", karma-previous),
		zap.String("level", utils.GetKarmaLevel(karma)),
	)
	return karma, nil
}
