package services

import (
	"context"
	"fmt"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// VoteService runs the toggle-vote ledger for posts and comments.
type VoteService struct {
	repo   repository.VoteRepository
	locker utils.Locker
	cache  ListCache
	log    *zap.Logger
}

func NewVoteService(repo repository.VoteRepository, locker utils.Locker, cache ListCache, log *zap.Logger) *VoteService {
	return &VoteService{repo: repo, locker: locker, cache: cache, log: log}
}

// Vote applies dir for userID on the entity and returns the new score with
// the user's resulting vote state. Votes on one entity are serialised.
func (s *VoteService) Vote(ctx context.Context, userID int64, target models.TargetType, targetID int64, dir models.Direction) (*models.VoteResult, error) {
	if userID == 0 {
		return nil, fmt.Errorf("vote: %w", ErrUnauthorized)
	}
	if targetID <= 0 {
		return nil, fmt.Errorf("vote: %s %d: %w", target, targetID, ErrNotFound)
	}

	ctx, span := tracer.Start(ctx, "VoteService.Vote", trace.WithAttributes(
		attribute.String("target", string(target)),
		attribute.Int64("target_id", targetID),
		attribute.String("direction", dir.String()),
	))
	defer span.End()

	timer := prometheus.NewTimer(voteDuration.WithLabelValues(string(target)))
	defer timer.ObserveDuration()

	unlock, err := acquire(ctx, s.locker, "vote", voteLockKey(target, targetID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer unlock()

	result, err := s.repo.ApplyVote(ctx, target, targetID, userID, dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, wrapStoreErr("vote", err)
	}

	votesAppliedTotal.WithLabelValues(string(target), dir.String(), string(result.State)).Inc()
	purge(s.cache)

	utils.LoggerWithTrace(ctx, s.log).Debug("vote applied",
		zap.String("target", string(target)),
		zap.Int64("target_id", targetID),
		zap.Int64("user_id", userID),
		zap.String("state", string(result.State)),
		zap.Int("score", result.Score),
	)
	return result, nil
}

func (s *VoteService) Upvote(ctx context.Context, userID int64, target models.TargetType, targetID int64) (*models.VoteResult, error) {
	return s.Vote(ctx, userID, target, targetID, models.Up)
}

func (s *VoteService) Downvote(ctx context.Context, userID int64, target models.TargetType, targetID int64) (*models.VoteResult, error) {
	return s.Vote(ctx, userID, target, targetID, models.Down)
}
