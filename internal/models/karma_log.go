package models

import (
	"time"
)

// KarmaLog records every karma recomputation of a user.
type KarmaLog struct {
	ID        uint      `gorm:"primaryKey" json:"id" bson:"-"`
	UserID    int64     `gorm:"not null;index" json:"user_id,string" bson:"user_id"`
	Karma     int       `gorm:"not null" json:"karma" bson:"karma"`
	Delta     int       `gorm:"not null" json:"delta" bson:"delta"` // 与上次结果的差值
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
