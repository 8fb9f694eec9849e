package utils

import (
	"sort"
	"time"

	"campuslink/internal/models"
)

const (
	// TrendingPostWindow 热门帖子只看最近 7 天
	TrendingPostWindow = 7 * 24 * time.Hour
	// TrendingCourseWindow 课程热度按最近 30 天的发帖量
	TrendingCourseWindow = 30 * 24 * time.Hour
	// TrendingCollegeWindow 学校热度按最近 7 天的发帖量
	TrendingCollegeWindow = 7 * 24 * time.Hour

	DefaultTrendingLimit = 10
	DefaultNewLimit      = 20
	DefaultActivityLimit = 5
	MaxListLimit         = 100
)

// TrendingLess orders posts by score, then comment count, then view count,
// all descending. The id breaks remaining ties so repeated reads agree.
func TrendingLess(a, b *models.Post) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CommentCount != b.CommentCount {
		return a.CommentCount > b.CommentCount
	}
	if a.ViewCount != b.ViewCount {
		return a.ViewCount > b.ViewCount
	}
	return a.ID > b.ID
}

// NewestLess orders posts by creation time, newest first.
func NewestLess(a, b *models.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func SortTrending(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool { return TrendingLess(&posts[i], &posts[j]) })
}

func SortNewest(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool { return NewestLess(&posts[i], &posts[j]) })
}

// ClampLimit applies the default when limit is unset and caps it.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
