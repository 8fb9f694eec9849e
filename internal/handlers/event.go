package handlers

import (
	"net/http"
	"strconv"
	"time"

	"campuslink/internal/middleware"
	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type EventHandler struct {
	events *services.EventService
	log    *zap.Logger
}

func NewEventHandler(events *services.EventService, log *zap.Logger) *EventHandler {
	return &EventHandler{events: events, log: log}
}

// Upcoming 学校即将开始的活动 ?college=&limit=
func (h *EventHandler) Upcoming(c *gin.Context) {
	collegeID, ok := queryID(c, "college")
	if !ok || collegeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid college"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	events, err := h.events.Upcoming(c.Request.Context(), collegeID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EventHandler) Detail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

type createEventRequest struct {
	Title                string     `form:"title" json:"title" binding:"required"`
	Description          string     `form:"description" json:"description" binding:"required"`
	CollegeID            int64      `form:"college_id" json:"college_id,string" binding:"required"`
	CourseID             *int64     `form:"course_id" json:"course_id,omitempty,string"`
	StudyGroupID         *int64     `form:"study_group_id" json:"study_group_id,omitempty,string"`
	Location             string     `form:"location" json:"location" binding:"required"`
	IsVirtual            bool       `form:"is_virtual" json:"is_virtual"`
	EventType            string     `form:"event_type" json:"event_type"`
	Visibility           string     `form:"visibility" json:"visibility"`
	StartTime            time.Time  `form:"start_time" json:"start_time" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	EndTime              time.Time  `form:"end_time" json:"end_time" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	RegistrationRequired bool       `form:"registration_required" json:"registration_required"`
	RegistrationDeadline *time.Time `form:"registration_deadline" json:"registration_deadline,omitempty" time_format:"2006-01-02T15:04:05Z07:00"`
	MaxAttendees         int        `form:"max_attendees" json:"max_attendees"`
}

func (h *EventHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req createEventRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.events.Create(c.Request.Context(), services.CreateEventInput{
		OrganizerID:          user.ID,
		CollegeID:            req.CollegeID,
		CourseID:             req.CourseID,
		StudyGroupID:         req.StudyGroupID,
		Title:                req.Title,
		Description:          req.Description,
		Location:             req.Location,
		IsVirtual:            req.IsVirtual,
		EventType:            req.EventType,
		Visibility:           req.Visibility,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		RegistrationRequired: req.RegistrationRequired,
		RegistrationDeadline: req.RegistrationDeadline,
		MaxAttendees:         req.MaxAttendees,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

// Register 报名（已报名或名额已满返回 409）
func (h *EventHandler) Register(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.events.Register(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// CancelRegistration 取消报名
func (h *EventHandler) CancelRegistration(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.events.CancelRegistration(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *EventHandler) ToggleInterested(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.events.ToggleInterested(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
