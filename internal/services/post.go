package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.uber.org/zap"
)

const (
	maxTitleLength   = 300
	maxContentLength = 40000
)

type CreatePostInput struct {
	AuthorID  int64
	CollegeID int64
	CourseID  *int64
	Title     string
	URL       string
	Content   string
}

type PostService struct {
	posts   repository.PostRepository
	catalog repository.CatalogRepository
	ids     IDSource
	cache   ListCache
	log     *zap.Logger
	now     func() time.Time
}

func NewPostService(posts repository.PostRepository, catalog repository.CatalogRepository, ids IDSource, cache ListCache, log *zap.Logger) *PostService {
	return &PostService{posts: posts, catalog: catalog, ids: ids, cache: cache, log: log, now: time.Now}
}

// Create 校验输入并发布帖子
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, fmt.Errorf("create post: %w", ErrUnauthorized)
	}

	title := strings.TrimSpace(utils.StripTags(in.Title))
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("create post: title length: %w", ErrInvalidInput)
	}
	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, fmt.Errorf("create post: content length: %w", ErrInvalidInput)
	}
	link := strings.TrimSpace(in.URL)
	if link != "" {
		u, err := url.ParseRequestURI(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("create post: url: %w", ErrInvalidInput)
		}
	}
	if content == "" && link == "" {
		return nil, fmt.Errorf("create post: empty body: %w", ErrInvalidInput)
	}

	if err := checkScope(ctx, s.catalog, "create post", in.CollegeID, in.CourseID); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		ID:        s.ids.Next(),
		AuthorID:  in.AuthorID,
		CollegeID: in.CollegeID,
		CourseID:  in.CourseID,
		Title:     title,
		URL:       link,
		Content:   content,
		Status:    models.PostActive,
		Votable: models.Votable{
			Upvoters:   models.NewVoteSet(),
			Downvoters: models.NewVoteSet(),
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, wrapStoreErr("create post", err)
	}
	purge(s.cache)

	utils.LoggerWithTrace(ctx, s.log).Info("post created",
		zap.Int64("post_id", post.ID),
		zap.Int64("author_id", post.AuthorID),
		zap.Int64("college_id", post.CollegeID),
	)
	return post, nil
}

// checkScope 学校必须存在，课程（如有）必须属于该学校
func checkScope(ctx context.Context, catalog repository.CatalogRepository, op string, collegeID int64, courseID *int64) error {
	if _, err := catalog.GetCollege(ctx, collegeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: college %d: %w", op, collegeID, ErrInvalidInput)
		}
		return wrapStoreErr(op, err)
	}
	if courseID == nil {
		return nil
	}
	course, err := catalog.GetCourse(ctx, *courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: course %d: %w", op, *courseID, ErrInvalidInput)
		}
		return wrapStoreErr(op, err)
	}
	if course.CollegeID != collegeID {
		return fmt.Errorf("%s: course %d not in college %d: %w", op, *courseID, collegeID, ErrInvalidInput)
	}
	return nil
}

// Get returns an active post. Posts in any other status are not visible.
func (s *PostService) Get(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get post", err)
	}
	if post.Status != models.PostActive {
		return nil, fmt.Errorf("get post %d: %w", id, ErrNotFound)
	}
	return post, nil
}

// View returns the post and counts the read. A failed counter update is
// logged and does not fail the read.
func (s *PostService) View(ctx context.Context, id int64) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.posts.RecordView(ctx, id, now); err != nil {
		utils.LoggerWithTrace(ctx, s.log).Warn("record view failed", zap.Int64("post_id", id), zap.Error(err))
		return post, nil
	}
	post.ViewCount++
	post.LastActiveAt = now
	return post, nil
}
