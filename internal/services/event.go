package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"campuslink/internal/models"
	"campuslink/internal/repository"
	"campuslink/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxEventTitleLength  = 200
	maxEventAttendees    = 10000
	defaultUpcomingLimit = 10
	maxUpcomingLimit     = 50
)

type CreateEventInput struct {
	OrganizerID          int64
	CollegeID            int64
	CourseID             *int64
	StudyGroupID         *int64
	Title                string
	Description          string
	Location             string
	IsVirtual            bool
	EventType            string
	Visibility           string
	StartTime            time.Time
	EndTime              time.Time
	RegistrationRequired bool
	RegistrationDeadline *time.Time
	MaxAttendees         int
}

// EventService 校园活动：创建、报名、取消报名、感兴趣
type EventService struct {
	events  repository.EventRepository
	groups  repository.StudyGroupRepository
	catalog repository.CatalogRepository
	ids     IDSource
	log     *zap.Logger
	now     func() time.Time
}

func NewEventService(events repository.EventRepository, groups repository.StudyGroupRepository, catalog repository.CatalogRepository, ids IDSource, log *zap.Logger) *EventService {
	return &EventService{events: events, groups: groups, catalog: catalog, ids: ids, log: log, now: time.Now}
}

func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	if in.OrganizerID == 0 {
		return nil, fmt.Errorf("create event: %w", ErrUnauthorized)
	}

	title := strings.TrimSpace(utils.StripTags(in.Title))
	if title == "" || utf8.RuneCountInString(title) > maxEventTitleLength {
		return nil, fmt.Errorf("create event: title length: %w", ErrInvalidInput)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" || utf8.RuneCountInString(description) > maxContentLength {
		return nil, fmt.Errorf("create event: description length: %w", ErrInvalidInput)
	}
	location := strings.TrimSpace(utils.StripTags(in.Location))
	if location == "" {
		return nil, fmt.Errorf("create event: location required: %w", ErrInvalidInput)
	}
	if in.StartTime.IsZero() || !in.EndTime.After(in.StartTime) {
		return nil, fmt.Errorf("create event: end must be after start: %w", ErrInvalidInput)
	}
	if in.RegistrationDeadline != nil && in.RegistrationDeadline.After(in.EndTime) {
		return nil, fmt.Errorf("create event: deadline after end: %w", ErrInvalidInput)
	}
	if in.MaxAttendees < 0 || in.MaxAttendees > maxEventAttendees {
		return nil, fmt.Errorf("create event: max attendees: %w", ErrInvalidInput)
	}

	eventType := models.EventOther
	if in.EventType != "" {
		t, ok := models.ParseEventType(in.EventType)
		if !ok {
			return nil, fmt.Errorf("create event: event type %q: %w", in.EventType, ErrInvalidInput)
		}
		eventType = t
	}
	visibility := models.VisibilityCollege
	if in.Visibility != "" {
		v, ok := models.ParseEventVisibility(in.Visibility)
		if !ok {
			return nil, fmt.Errorf("create event: visibility %q: %w", in.Visibility, ErrInvalidInput)
		}
		visibility = v
	}

	if err := checkScope(ctx, s.catalog, "create event", in.CollegeID, in.CourseID); err != nil {
		return nil, err
	}
	if in.StudyGroupID != nil {
		if err := s.checkGroup(ctx, *in.StudyGroupID, in.CollegeID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	event := &models.Event{
		ID:                   s.ids.Next(),
		Title:                title,
		Description:          description,
		CollegeID:            in.CollegeID,
		CourseID:             in.CourseID,
		StudyGroupID:         in.StudyGroupID,
		OrganizerID:          in.OrganizerID,
		StartTime:            in.StartTime,
		EndTime:              in.EndTime,
		Location:             location,
		IsVirtual:            in.IsVirtual,
		EventType:            eventType,
		RegistrationRequired: in.RegistrationRequired,
		RegistrationDeadline: in.RegistrationDeadline,
		MaxAttendees:         in.MaxAttendees,
		Visibility:           visibility,
		Status:               models.EventScheduled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, wrapStoreErr("create event", err)
	}

	utils.LoggerWithTrace(ctx, s.log).Info("event created",
		zap.Int64("event_id", event.ID),
		zap.Int64("organizer_id", event.OrganizerID),
		zap.Int64("college_id", event.CollegeID),
	)
	return event, nil
}

// checkGroup 关联的学习小组必须存在且属于同一学校
func (s *EventService) checkGroup(ctx context.Context, groupID, collegeID int64) error {
	group, err := s.groups.GetStudyGroup(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("create event: study group %d: %w", groupID, ErrInvalidInput)
	}
	if err != nil {
		return wrapStoreErr("create event", err)
	}
	if group.CollegeID != collegeID {
		return fmt.Errorf("create event: study group %d not in college %d: %w", groupID, collegeID, ErrInvalidInput)
	}
	return nil
}

func (s *EventService) Get(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("get event", err)
	}
	return event, nil
}

// Upcoming 学校即将开始的活动，按开始时间升序
func (s *EventService) Upcoming(ctx context.Context, collegeID int64, limit int) ([]models.Event, error) {
	if collegeID == 0 {
		return nil, fmt.Errorf("upcoming events: college required: %w", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	if limit > maxUpcomingLimit {
		limit = maxUpcomingLimit
	}

	events, err := s.events.UpcomingEvents(ctx, collegeID, s.now(), limit)
	if err != nil {
		return nil, wrapStoreErr("upcoming events", err)
	}
	return events, nil
}

// Register signs userID up for the event. Closed registration and a full
// event are conflicts.
func (s *EventService) Register(ctx context.Context, userID, eventID int64) (*models.Event, error) {
	if userID == 0 {
		return nil, fmt.Errorf("register: %w", ErrUnauthorized)
	}

	ctx, span := tracer.Start(ctx, "EventService.Register", trace.WithAttributes(attribute.Int64("event_id", eventID)))
	defer span.End()

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, wrapStoreErr("register", err)
	}
	now := s.now()
	if !event.RegistrationOpen(now) {
		membershipChangesTotal.WithLabelValues("event", "closed").Inc()
		return nil, fmt.Errorf("register: event %d registration closed: %w", eventID, ErrConflict)
	}

	// 容量检查在存储层与写入一起完成
	event, err = s.events.RegisterAttendee(ctx, eventID, userID, event.Capacity(), now)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrCapacity) {
			membershipChangesTotal.WithLabelValues("event", "full").Inc()
		}
		return nil, wrapStoreErr("register", err)
	}
	membershipChangesTotal.WithLabelValues("event", "registered").Inc()

	utils.LoggerWithTrace(ctx, s.log).Info("event registration",
		zap.Int64("event_id", eventID),
		zap.Int64("user_id", userID),
		zap.Int("attendees", event.AttendeeCount),
	)
	return event, nil
}

// CancelRegistration withdraws userID's active registration.
func (s *EventService) CancelRegistration(ctx context.Context, userID, eventID int64) (*models.Event, error) {
	if userID == 0 {
		return nil, fmt.Errorf("cancel registration: %w", ErrUnauthorized)
	}
	event, err := s.events.CancelRegistration(ctx, eventID, userID)
	if err != nil {
		return nil, wrapStoreErr("cancel registration", err)
	}
	membershipChangesTotal.WithLabelValues("event", "canceled").Inc()
	return event, nil
}

// ToggleInterested 标记/取消“感兴趣”
func (s *EventService) ToggleInterested(ctx context.Context, userID, eventID int64) (*models.InterestResult, error) {
	if userID == 0 {
		return nil, fmt.Errorf("toggle interested: %w", ErrUnauthorized)
	}
	result, err := s.events.ToggleInterested(ctx, eventID, userID, s.now())
	if err != nil {
		return nil, wrapStoreErr("toggle interested", err)
	}
	return result, nil
}
