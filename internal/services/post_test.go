package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPostService(store *mocks.Store) *PostService {
	svc := NewPostService(store, store, &seqIDs{}, newSpyCache(), nopLogger())
	svc.now = fixedNow
	return svc
}

func TestCreatePost(t *testing.T) {
	store := new(mocks.Store)
	svc := newPostService(store)
	course := int64(20)

	store.On("GetCollege", mock.Anything, int64(1)).Return(&models.College{ID: 1}, nil)
	store.On("GetCourse", mock.Anything, course).Return(&models.Course{ID: course, CollegeID: 1}, nil)
	store.On("CreatePost", mock.Anything, mock.AnythingOfType("*models.Post")).Return(nil)

	post, err := svc.Create(context.Background(), CreatePostInput{
		AuthorID:  9,
		CollegeID: 1,
		CourseID:  &course,
		Title:     "<b>Past papers</b> for CS101",
		URL:       "https://example.edu/papers",
	})
	require.NoError(t, err)
	assert.Equal(t, "Past papers for CS101", post.Title)
	assert.Equal(t, models.PostActive, post.Status)
	assert.Equal(t, 0, post.Score)
	assert.Equal(t, testNow, post.LastActiveAt)
}

func TestCreatePostValidation(t *testing.T) {
	otherCourse := int64(21)
	cases := []struct {
		name string
		in   CreatePostInput
	}{
		{"empty title", CreatePostInput{AuthorID: 9, CollegeID: 1, Title: "<i></i>", Content: "x"}},
		{"long title", CreatePostInput{AuthorID: 9, CollegeID: 1, Title: strings.Repeat("a", 301), Content: "x"}},
		{"no body", CreatePostInput{AuthorID: 9, CollegeID: 1, Title: "t"}},
		{"bad scheme", CreatePostInput{AuthorID: 9, CollegeID: 1, Title: "t", URL: "javascript:alert(1)"}},
		{"unknown college", CreatePostInput{AuthorID: 9, CollegeID: 404, Title: "t", Content: "x"}},
		{"course of another college", CreatePostInput{AuthorID: 9, CollegeID: 1, CourseID: &otherCourse, Title: "t", Content: "x"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mocks.Store)
			store.On("GetCollege", mock.Anything, int64(1)).Return(&models.College{ID: 1}, nil).Maybe()
			store.On("GetCollege", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound).Maybe()
			store.On("GetCourse", mock.Anything, otherCourse).Return(&models.Course{ID: otherCourse, CollegeID: 2}, nil).Maybe()
			svc := newPostService(store)

			_, err := svc.Create(context.Background(), tc.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			store.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
		})
	}
}

func TestGetHidesInactivePosts(t *testing.T) {
	store := new(mocks.Store)
	svc := newPostService(store)
	store.On("GetPost", mock.Anything, int64(1)).Return(&models.Post{ID: 1, Status: models.PostPending}, nil)

	_, err := svc.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestViewCountsRead(t *testing.T) {
	store := new(mocks.Store)
	svc := newPostService(store)
	store.On("GetPost", mock.Anything, int64(1)).Return(&models.Post{ID: 1, Status: models.PostActive, ViewCount: 4}, nil)
	store.On("RecordView", mock.Anything, int64(1), testNow).Return(nil)

	post, err := svc.View(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, post.ViewCount)
	assert.Equal(t, testNow, post.LastActiveAt)
}

func TestViewSurvivesCounterFailure(t *testing.T) {
	store := new(mocks.Store)
	svc := newPostService(store)
	store.On("GetPost", mock.Anything, int64(1)).Return(&models.Post{ID: 1, Status: models.PostActive, ViewCount: 4}, nil)
	store.On("RecordView", mock.Anything, int64(1), testNow).Return(errors.New("timeout"))

	post, err := svc.View(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, post.ViewCount)
}
