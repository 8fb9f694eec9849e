package db

import (
	"fmt"

	"campuslink/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultCollegeID is the id of the seeded college. Snowflake ids never
// collide with it.
const DefaultCollegeID int64 = 1

// Init 连接 Postgres、自动迁移并写入初始数据
func Init(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connection established")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migration completed")

	if err := seedColleges(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.College{},
		&models.Course{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
		&models.KarmaLog{},
		&models.Event{},
		&models.EventAttendee{},
		&models.EventInterest{},
		&models.StudyGroup{},
		&models.GroupMember{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// DefaultCollege is created on first start so posts always have a scope.
func DefaultCollege() models.College {
	return models.College{
		ID:          DefaultCollegeID,
		Name:        "General",
		Slug:        "general",
		Description: "Campus-wide discussion",
	}
}

func seedColleges(db *gorm.DB, log *zap.Logger) error {
	// 检查是否已有学院数据
	var count int64
	if err := db.Model(&models.College{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Debug("colleges already seeded, skipping")
		return nil
	}

	college := DefaultCollege()
	if err := db.Create(&college).Error; err != nil {
		return fmt.Errorf("seed college %s: %w", college.Slug, err)
	}
	log.Info("initial college created", zap.String("slug", college.Slug))
	return nil
}
