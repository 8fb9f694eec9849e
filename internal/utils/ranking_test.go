package utils

import (
	"testing"
	"time"

	"campuslink/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSortTrendingBreaksTiesByComments(t *testing.T) {
	posts := []models.Post{
		{ID: 1, Votable: models.Votable{Score: 10}, CommentCount: 3},
		{ID: 2, Votable: models.Votable{Score: 10}, CommentCount: 7},
	}
	SortTrending(posts)
	assert.Equal(t, int64(2), posts[0].ID)
}

func TestSortTrendingKeyOrder(t *testing.T) {
	posts := []models.Post{
		{ID: 1, Votable: models.Votable{Score: 3}, CommentCount: 9, ViewCount: 100},
		{ID: 2, Votable: models.Votable{Score: 5}, CommentCount: 1, ViewCount: 10},
		{ID: 3, Votable: models.Votable{Score: 5}, CommentCount: 1, ViewCount: 20},
		{ID: 4, Votable: models.Votable{Score: 5}, CommentCount: 2, ViewCount: 0},
	}
	SortTrending(posts)

	got := []int64{posts[0].ID, posts[1].ID, posts[2].ID, posts[3].ID}
	assert.Equal(t, []int64{4, 3, 2, 1}, got)
}

func TestSortIsIdempotent(t *testing.T) {
	now := time.Now()
	posts := []models.Post{
		{ID: 1, CreatedAt: now},
		{ID: 2, CreatedAt: now},
		{ID: 3, CreatedAt: now.Add(-time.Hour)},
	}

	SortNewest(posts)
	first := append([]models.Post(nil), posts...)
	SortNewest(posts)
	assert.Equal(t, first, posts)
	assert.Equal(t, int64(2), posts[0].ID)
	assert.Equal(t, int64(3), posts[2].ID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultNewLimit, ClampLimit(0, DefaultNewLimit))
	assert.Equal(t, DefaultTrendingLimit, ClampLimit(-3, DefaultTrendingLimit))
	assert.Equal(t, 7, ClampLimit(7, DefaultTrendingLimit))
	assert.Equal(t, MaxListLimit, ClampLimit(MaxListLimit+1, DefaultTrendingLimit))
}
