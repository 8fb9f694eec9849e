package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campuslink/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements Store on top of gorm. Vote sets live in the votes
// table, one row per (target, user).
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func tableFor(target models.TargetType) (string, error) {
	switch target {
	case models.TargetPost:
		return "posts", nil
	case models.TargetComment:
		return "comments", nil
	}
	return "", fmt.Errorf("unknown vote target %q", target)
}

func (s *PostgresStore) ApplyVote(ctx context.Context, target models.TargetType, targetID, userID int64, dir models.Direction) (*models.VoteResult, error) {
	table, err := tableFor(target)
	if err != nil {
		return nil, err
	}

	var result *models.VoteResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 锁住实体行，同一实体上的投票在此排队
		var row struct{ ID int64 }
		if err := tx.Table(table).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", targetID).
			Take(&row).Error; err != nil {
			return translate(err)
		}

		// 2. 读出投票集合并在内存中完成状态迁移
		var votes []models.Vote
		if err := tx.Where("target_type = ? AND target_id = ?", target, targetID).
			Find(&votes).Error; err != nil {
			return err
		}
		v := models.VotableFromVotes(votes)
		previous := v.StateOf(userID)
		state := v.ApplyVote(userID, dir)

		// 3. 写回该用户的那一行
		switch state {
		case models.VoteNone:
			if err := tx.Where("target_type = ? AND target_id = ? AND user_id = ?", target, targetID, userID).
				Delete(&models.Vote{}).Error; err != nil {
				return err
			}
		default:
			value := 1
			if state == models.VoteDownvoted {
				value = -1
			}
			vote := models.Vote{TargetType: target, TargetID: targetID, UserID: userID, Value: value}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&vote).Error; err != nil {
				return err
			}
		}

		// 4. 分数与集合一起落库
		if err := tx.Table(table).Where("id = ?", targetID).
			UpdateColumn("score", v.Score).Error; err != nil {
			return err
		}

		result = &models.VoteResult{
			Target:    target,
			TargetID:  targetID,
			Score:     v.Score,
			Upvotes:   v.Upvoters.Len(),
			Downvotes: v.Downvoters.Len(),
			State:     state,
			Previous:  previous,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) CreatePost(ctx context.Context, post *models.Post) error {
	return translate(s.db.WithContext(ctx).Create(post).Error)
}

func (s *PostgresStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *PostgresStore) ListPosts(ctx context.Context, q models.RankQuery, order PostOrder) ([]models.Post, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{}).Where("status = ?", models.PostActive)
	if q.Scope.CollegeID != 0 {
		query = query.Where("college_id = ?", q.Scope.CollegeID)
	}
	if q.Scope.CourseID != 0 {
		query = query.Where("course_id = ?", q.Scope.CourseID)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since)
	}

	switch order {
	case OrderNewest:
		query = query.Order("created_at DESC, id DESC")
	default:
		query = query.Order("score DESC, comment_count DESC, view_count DESC, id DESC")
	}

	var posts []models.Post
	if err := query.Limit(q.Limit).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostgresStore) PostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).Where("author_id = ?", authorID).Find(&posts).Error
	return posts, err
}

func (s *PostgresStore) RecordView(ctx context.Context, id int64, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"view_count":     gorm.Expr("view_count + 1"),
			"last_active_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AdjustCommentCount(ctx context.Context, postID int64, delta int, at time.Time) error {
	updates := map[string]interface{}{
		"comment_count": gorm.Expr("GREATEST(comment_count + ?, 0)", delta),
	}
	if delta > 0 {
		updates["last_active_at"] = at
	}
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecountComments(ctx context.Context, postID int64) (int, int, error) {
	var previous, count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "comment_count").
			First(&post, postID).Error; err != nil {
			return translate(err)
		}
		previous = post.CommentCount

		// 计数与写回在同一条语句里完成
		active := tx.Model(&models.Comment{}).Select("COUNT(*)").
			Where("post_id = ? AND status = ?", postID, models.CommentActive)
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("(?)", active)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			Select("comment_count").Row().Scan(&count)
	})
	return previous, count, err
}

func (s *PostgresStore) RecentlyActivePostIDs(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("last_active_at >= ?", since).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *PostgresStore) CountPostsByCourse(ctx context.Context, collegeID int64, since time.Time, limit int) ([]models.ActivityCount, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("course_id AS id, COUNT(*) AS post_count").
		Where("course_id IS NOT NULL AND status = ? AND created_at >= ?", models.PostActive, since)
	if collegeID != 0 {
		query = query.Where("college_id = ?", collegeID)
	}

	var rows []models.ActivityCount
	err := query.Group("course_id").
		Order("post_count DESC, course_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *PostgresStore) CountPostsByCollege(ctx context.Context, since time.Time, limit int) ([]models.ActivityCount, error) {
	var rows []models.ActivityCount
	err := s.db.WithContext(ctx).Model(&models.Post{}).
		Select("college_id AS id, COUNT(*) AS post_count").
		Where("status = ? AND created_at >= ?", models.PostActive, since).
		Group("college_id").
		Order("post_count DESC, college_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	return translate(s.db.WithContext(ctx).Create(comment).Error)
}

func (s *PostgresStore) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	var comment models.Comment
	if err := s.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

func (s *PostgresStore) ListActiveComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, models.CommentActive).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

func (s *PostgresStore) CommentsByAuthor(ctx context.Context, authorID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).Where("author_id = ?", authorID).Find(&comments).Error
	return comments, err
}

func (s *PostgresStore) UpdateCommentStatus(ctx context.Context, id int64, status models.CommentStatus, at time.Time) (models.CommentStatus, error) {
	var previous models.CommentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			First(&comment, id).Error; err != nil {
			return translate(err)
		}
		previous = comment.Status

		return tx.Model(&models.Comment{}).Where("id = ?", id).
			UpdateColumns(map[string]interface{}{"status": status, "updated_at": at}).Error
	})
	return previous, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// SaveKarma 使用事务更新 karma 并记录明细
func (s *PostgresStore) SaveKarma(ctx context.Context, userID int64, karma int) (int, error) {
	var previous int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "karma").
			First(&user, userID).Error; err != nil {
			return translate(err)
		}
		previous = user.Karma

		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			UpdateColumn("karma", karma).Error; err != nil {
			return err
		}

		log := models.KarmaLog{UserID: userID, Karma: karma, Delta: karma - previous}
		return tx.Create(&log).Error
	})
	return previous, err
}

func (s *PostgresStore) GetCollege(ctx context.Context, id int64) (*models.College, error) {
	var college models.College
	if err := s.db.WithContext(ctx).First(&college, id).Error; err != nil {
		return nil, translate(err)
	}
	return &college, nil
}

func (s *PostgresStore) CollegesByIDs(ctx context.Context, ids []int64) ([]models.College, error) {
	var colleges []models.College
	if len(ids) == 0 {
		return colleges, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&colleges).Error
	return colleges, err
}

func (s *PostgresStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	var course models.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (s *PostgresStore) CoursesByIDs(ctx context.Context, ids []int64) ([]models.Course, error) {
	var courses []models.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error
	return courses, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
