package models

import (
	"time"
)

// DefaultMemberLimit 学习小组默认人数上限
const DefaultMemberLimit = 20

type GroupRole string

const (
	GroupMemberRole    GroupRole = "member"
	GroupModeratorRole GroupRole = "moderator"
	GroupLeaderRole    GroupRole = "leader"
)

func ParseGroupRole(s string) (GroupRole, bool) {
	switch r := GroupRole(s); r {
	case GroupMemberRole, GroupModeratorRole, GroupLeaderRole:
		return r, true
	}
	return "", false
}

// CanManage reports whether the role may remove other members.
func (r GroupRole) CanManage() bool {
	return r == GroupLeaderRole || r == GroupModeratorRole
}

type GroupStatus string

const (
	GroupActive    GroupStatus = "active"
	GroupCompleted GroupStatus = "completed"
	GroupCancelled GroupStatus = "cancelled"
)

type StudyGroup struct {
	ID           int64         `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Name         string        `gorm:"size:100;not null" json:"name"`
	Description  string        `gorm:"type:text;not null" json:"description"`
	CollegeID    int64         `gorm:"not null;index" json:"college_id,string"`
	CourseID     *int64        `gorm:"index" json:"course_id,omitempty,string"`
	CreatorID    int64         `gorm:"not null;index" json:"creator_id,string"`
	MemberCount  int           `gorm:"not null;default:0" json:"member_count"`
	MemberLimit  int           `gorm:"not null;default:20" json:"member_limit"`
	Status       GroupStatus   `gorm:"size:20;not null;default:'active'" json:"status"`
	Members      []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	LastActiveAt time.Time     `json:"last_active_at"`
}

// RoleOf returns the member's role, or false when userID is not a member.
func (g *StudyGroup) RoleOf(userID int64) (GroupRole, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

type GroupMember struct {
	GroupID  int64     `gorm:"primaryKey;autoIncrement:false" json:"group_id,string"`
	UserID   int64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id,string"`
	Role     GroupRole `gorm:"size:20;not null;default:'member'" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
