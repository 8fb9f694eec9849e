package models

import (
	"time"
)

type CommentStatus string

const (
	CommentActive  CommentStatus = "active"
	CommentRemoved CommentStatus = "removed"
	CommentDeleted CommentStatus = "deleted"
)

func ParseCommentStatus(s string) (CommentStatus, bool) {
	switch CommentStatus(s) {
	case CommentActive, CommentRemoved, CommentDeleted:
		return CommentStatus(s), true
	}
	return "", false
}

type Comment struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	PostID   int64  `gorm:"not null;index" json:"post_id,string"`
	AuthorID int64  `gorm:"not null;index" json:"author_id,string"`
	ParentID *int64 `gorm:"index" json:"parent_id,omitempty,string"` // nil 表示顶层评论
	Content  string `gorm:"type:text;not null" json:"content"`
	// Status 从不物理删除，只做软删除
	Status CommentStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	Votable
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CommentNode is one comment of a thread with its replies attached.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}

// CounterChange reports the comment-count propagation that followed a
// comment write. Err is set when the post counter could not be updated; the
// comment write itself still succeeded.
type CounterChange struct {
	PostID  int64 `json:"post_id,string"`
	Delta   int   `json:"delta"`
	Applied bool  `json:"applied"`
	Err     error `json:"-"`
}
