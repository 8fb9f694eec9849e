package services

import (
	"context"
	"fmt"
	"time"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RankingService 提供热门/最新帖子以及热门课程、学校列表，结果带缓存
type RankingService struct {
	posts   repository.PostRepository
	catalog repository.CatalogRepository
	cache   ListCache
	log     *zap.Logger
	now     func() time.Time
}

func NewRankingService(posts repository.PostRepository, catalog repository.CatalogRepository, cache ListCache, log *zap.Logger) *RankingService {
	return &RankingService{posts: posts, catalog: catalog, cache: cache, log: log, now: time.Now}
}

// cached returns the cached value of key, or the generation to fill it with.
func (s *RankingService) cached(key string) (interface{}, uint64, bool) {
	if s.cache == nil {
		return nil, 0, false
	}
	gen := s.cache.Generation()
	v := s.cache.Get(key)
	return v, gen, v != nil
}

// store 只在查询期间没有发生 Purge 时回填缓存
func (s *RankingService) store(key string, v interface{}, gen uint64) {
	if s.cache != nil {
		s.cache.SetIfGeneration(key, v, gen)
	}
}

// Trending returns active posts created in the last 7 days ordered by score,
// then comment count, then view count.
func (s *RankingService) Trending(ctx context.Context, scope models.RankScope, limit int) ([]models.Post, error) {
	limit = utils.ClampLimit(limit, utils.DefaultTrendingLimit)
	key := fmt.Sprintf("trending:%d:%d:%d", scope.CollegeID, scope.CourseID, limit)
	v, gen, ok := s.cached(key)
	if ok {
		return v.([]models.Post), nil
	}

	ctx, span := tracer.Start(ctx, "RankingService.Trending", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	q := models.RankQuery{Scope: scope, Since: s.now().Add(-utils.TrendingPostWindow), Limit: limit}
	posts, err := s.posts.ListPosts(ctx, q, repository.OrderTrending)
	if err != nil {
		span.RecordError(err)
		return nil, wrapStoreErr("trending posts", err)
	}
	utils.SortTrending(posts)

	s.store(key, posts, gen)
	return posts, nil
}

// New returns active posts newest first, without a time window.
func (s *RankingService) New(ctx context.Context, scope models.RankScope, limit int) ([]models.Post, error) {
	limit = utils.ClampLimit(limit, utils.DefaultNewLimit)
	key := fmt.Sprintf("new:%d:%d:%d", scope.CollegeID, scope.CourseID, limit)
	v, gen, ok := s.cached(key)
	if ok {
		return v.([]models.Post), nil
	}

	ctx, span := tracer.Start(ctx, "RankingService.New", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	posts, err := s.posts.ListPosts(ctx, models.RankQuery{Scope: scope, Limit: limit}, repository.OrderNewest)
	if err != nil {
		span.RecordError(err)
		return nil, wrapStoreErr("new posts", err)
	}
	utils.SortNewest(posts)

	s.store(key, posts, gen)
	return posts, nil
}

// TrendingCourses ranks courses by the number of posts in the last 30 days,
// optionally within one college.
func (s *RankingService) TrendingCourses(ctx context.Context, collegeID int64, limit int) ([]models.CourseActivity, error) {
	limit = utils.ClampLimit(limit, utils.DefaultActivityLimit)
	key := fmt.Sprintf("courses:%d:%d", collegeID, limit)
	v, gen, ok := s.cached(key)
	if ok {
		return v.([]models.CourseActivity), nil
	}

	counts, err := s.posts.CountPostsByCourse(ctx, collegeID, s.now().Add(-utils.TrendingCourseWindow), limit)
	if err != nil {
		return nil, wrapStoreErr("trending courses", err)
	}
	courses, err := s.catalog.CoursesByIDs(ctx, activityIDs(counts))
	if err != nil {
		return nil, wrapStoreErr("trending courses", err)
	}

	byID := make(map[int64]models.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	out := make([]models.CourseActivity, 0, len(counts))
	for _, row := range counts {
		// 课程已被删除时跳过
		if c, ok := byID[row.ID]; ok {
			out = append(out, models.CourseActivity{Course: c, PostCount: row.PostCount})
		}
	}

	s.store(key, out, gen)
	return out, nil
}

// TrendingColleges ranks colleges by the number of posts in the last 7 days.
func (s *RankingService) TrendingColleges(ctx context.Context, limit int) ([]models.CollegeActivity, error) {
	limit = utils.ClampLimit(limit, utils.DefaultActivityLimit)
	key := fmt.Sprintf("colleges:%d", limit)
	v, gen, ok := s.cached(key)
	if ok {
		return v.([]models.CollegeActivity), nil
	}

	counts, err := s.posts.CountPostsByCollege(ctx, s.now().Add(-utils.TrendingCollegeWindow), limit)
	if err != nil {
		return nil, wrapStoreErr("trending colleges", err)
	}
	colleges, err := s.catalog.CollegesByIDs(ctx, activityIDs(counts))
	if err != nil {
		return nil, wrapStoreErr("trending colleges", err)
	}

	byID := make(map[int64]models.College, len(colleges))
	for _, c := range colleges {
		byID[c.ID] = c
	}
	out := make([]models.CollegeActivity, 0, len(counts))
	for _, row := range counts {
		if c, ok := byID[row.ID]; ok {
			out = append(out, models.CollegeActivity{College: c, PostCount: row.PostCount})
		}
	}

	s.store(key, out, gen)
	return out, nil
}

func activityIDs(rows []models.ActivityCount) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}
