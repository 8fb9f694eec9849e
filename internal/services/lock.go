package services

import (
	"context"
	"errors"
	"fmt"

	"campuslink/internal/models"
	"campuslink/internal/utils"
)

func voteLockKey(target models.TargetType, id int64) string {
	return fmt.Sprintf("vote/%s/%d", target, id)
}

// commentCountLockKey 评论写入、计数传播和重算共用同一把锁
func commentCountLockKey(postID int64) string {
	return fmt.Sprintf("comments/post/%d", postID)
}

// acquire takes key on locker; a lock timeout is reported as ErrConflict.
func acquire(ctx context.Context, locker utils.Locker, op, key string) (func(), error) {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, utils.ErrLockTimeout) {
			return nil, fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return nil, fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	return unlock, nil
}
