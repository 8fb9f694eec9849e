package repository

import (
	"context"
	"errors"
	"time"

	"campuslink/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ================================
// Events
// ================================

func (s *PostgresStore) CreateEvent(ctx context.Context, event *models.Event) error {
	return translate(s.db.WithContext(ctx).Create(event).Error)
}

func (s *PostgresStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (s *PostgresStore) UpcomingEvents(ctx context.Context, collegeID int64, now time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("college_id = ? AND start_time >= ?", collegeID, now).
		Where("status NOT IN ?", []models.EventStatus{models.EventCanceled, models.EventCompleted}).
		Where("visibility IN ?", []models.EventVisibility{models.VisibilityPublic, models.VisibilityCollege}).
		Order("start_time ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// lockEvent 锁住活动行，同一活动上的报名在此排队
func lockEvent(tx *gorm.DB, id int64) (*models.Event, error) {
	var event models.Event
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&event, id).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (s *PostgresStore) RegisterAttendee(ctx context.Context, eventID, userID int64, capacity int, at time.Time) (*models.Event, error) {
	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if event, err = lockEvent(tx, eventID); err != nil {
			return err
		}

		var attendee models.EventAttendee
		err = tx.Where("event_id = ? AND user_id = ?", eventID, userID).Take(&attendee).Error
		switch {
		case err == nil && attendee.Status != models.AttendeeCanceled:
			return ErrDuplicate
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if capacity > 0 && event.AttendeeCount >= capacity {
			return ErrCapacity
		}

		// 取消过的报名直接复用原记录
		row := models.EventAttendee{EventID: eventID, UserID: userID, Status: models.AttendeeRegistered, RegisteredAt: at}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "registered_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}

		event.AttendeeCount++
		event.UpdatedAt = at
		return tx.Model(&models.Event{}).Where("id = ?", eventID).
			UpdateColumns(map[string]interface{}{"attendee_count": event.AttendeeCount, "updated_at": at}).Error
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *PostgresStore) CancelRegistration(ctx context.Context, eventID, userID int64) (*models.Event, error) {
	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if event, err = lockEvent(tx, eventID); err != nil {
			return err
		}

		res := tx.Model(&models.EventAttendee{}).
			Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, models.AttendeeRegistered).
			UpdateColumn("status", models.AttendeeCanceled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if event.AttendeeCount > 0 {
			event.AttendeeCount--
		}
		return tx.Model(&models.Event{}).Where("id = ?", eventID).
			UpdateColumn("attendee_count", event.AttendeeCount).Error
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *PostgresStore) ToggleInterested(ctx context.Context, eventID, userID int64, at time.Time) (*models.InterestResult, error) {
	result := &models.InterestResult{EventID: eventID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}

		res := tx.Where("event_id = ? AND user_id = ?", eventID, userID).Delete(&models.EventInterest{})
		if res.Error != nil {
			return res.Error
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.EventInterest{EventID: eventID, UserID: userID, CreatedAt: at}).Error; err != nil {
				return err
			}
			delta = 1
			result.Interested = true
		}

		result.InterestedCount = event.InterestedCount + delta
		return tx.Model(&models.Event{}).Where("id = ?", eventID).
			UpdateColumn("interested_count", result.InterestedCount).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ================================
// Study groups
// ================================

func (s *PostgresStore) CreateStudyGroup(ctx context.Context, group *models.StudyGroup) error {
	// Members 随小组一起写入
	return translate(s.db.WithContext(ctx).Create(group).Error)
}

func (s *PostgresStore) GetStudyGroup(ctx context.Context, id int64) (*models.StudyGroup, error) {
	var group models.StudyGroup
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC, user_id ASC") }).
		First(&group, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

func lockGroup(tx *gorm.DB, id int64) (*models.StudyGroup, error) {
	var group models.StudyGroup
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, id).Error; err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

func (s *PostgresStore) AddMember(ctx context.Context, groupID, userID int64, role models.GroupRole, at time.Time) (bool, error) {
	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if group.MemberCount >= group.MemberLimit {
			return ErrCapacity
		}

		if err := tx.Create(&models.GroupMember{GroupID: groupID, UserID: userID, Role: role, JoinedAt: at}).Error; err != nil {
			return err
		}
		added = true
		return tx.Model(&models.StudyGroup{}).Where("id = ?", groupID).
			UpdateColumns(map[string]interface{}{
				"member_count":   gorm.Expr("member_count + 1"),
				"last_active_at": at,
			}).Error
	})
	return added, err
}

func (s *PostgresStore) RemoveMember(ctx context.Context, groupID, userID int64) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			return err
		}

		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.StudyGroup{}).Where("id = ?", groupID).
			UpdateColumn("member_count", gorm.Expr("GREATEST(member_count - 1, 0)")).Error
	})
	return removed, err
}

func (s *PostgresStore) UpdateMemberRole(ctx context.Context, groupID, userID int64, role models.GroupRole) error {
	res := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		UpdateColumn("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
