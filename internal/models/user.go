package models

import (
	"time"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanModerate reports whether the role may change other users' content status.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string" bson:"_id"`
	Username  string    `gorm:"size:50;uniqueIndex;not null" json:"username" bson:"username"`
	Email     string    `gorm:"size:100;uniqueIndex;not null" json:"-" bson:"email"`
	Password  string    `gorm:"not null" json:"-" bson:"password"` // bcrypt hash
	CollegeID int64     `gorm:"not null;index" json:"college_id,string" bson:"college_id"`
	Role      Role      `gorm:"size:20;not null;default:'student'" json:"role" bson:"role"`
	Karma     int       `gorm:"not null;default:0" json:"karma" bson:"karma"` // 按需重算，可能滞后
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
