package models

import (
	"time"
)

type College struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string" bson:"_id"`
	Name        string    `gorm:"not null;unique" json:"name" bson:"name"`
	Slug        string    `gorm:"not null;uniqueIndex" json:"slug" bson:"slug"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

type Course struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string" bson:"_id"`
	CollegeID int64     `gorm:"not null;index" json:"college_id,string" bson:"college_id"`
	Code      string    `gorm:"size:20;not null" json:"code" bson:"code"`
	Title     string    `gorm:"not null" json:"title" bson:"title"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// CourseActivity is a course together with its recent post count.
type CourseActivity struct {
	Course
	PostCount int `json:"post_count"`
}

// CollegeActivity is a college together with its recent post count.
type CollegeActivity struct {
	College
	PostCount int `json:"post_count"`
}
