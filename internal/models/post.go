package models

import (
	"time"
)

type PostStatus string

const (
	PostActive  PostStatus = "active"
	PostRemoved PostStatus = "removed"
	PostDeleted PostStatus = "deleted"
	PostPending PostStatus = "pending"
)

type Post struct {
	ID        int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	AuthorID  int64      `gorm:"not null;index" json:"author_id,string"`
	CollegeID int64      `gorm:"not null;index" json:"college_id,string"`
	CourseID  *int64     `gorm:"index" json:"course_id,omitempty,string"`
	Title     string     `gorm:"size:300;not null" json:"title"`
	URL       string     `json:"url,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Status    PostStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	Votable
	// CommentCount 只统计 active 评论，由 CommentService 增量维护
	CommentCount int       `gorm:"not null;default:0" json:"comment_count"`
	ViewCount    int       `gorm:"not null;default:0" json:"view_count"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActiveAt time.Time `gorm:"index" json:"last_active_at"`
}

// RankScope narrows a ranking query to a college and/or a course.
// Zero values mean "not scoped".
type RankScope struct {
	CollegeID int64
	CourseID  int64
}

// RankQuery is the input of the trending and new post queries.
type RankQuery struct {
	Scope RankScope
	// Since is the start of the trailing window; zero means no window.
	Since time.Time
	Limit int
}

// ActivityCount is one row of a "posts grouped by key" aggregation.
type ActivityCount struct {
	ID        int64 `json:"id,string"`
	PostCount int   `json:"post_count"`
}
