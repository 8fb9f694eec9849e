package handlers

import (
	"net/http"

	"campuslink/internal/middleware"
	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GroupHandler serves study groups and their membership.
type GroupHandler struct {
	groups *services.StudyGroupService
	log    *zap.Logger
}

func NewGroupHandler(groups *services.StudyGroupService, log *zap.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, log: log}
}

func (h *GroupHandler) Detail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	group, err := h.groups.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

type createGroupRequest struct {
	Name        string `form:"name" json:"name" binding:"required"`
	Description string `form:"description" json:"description" binding:"required"`
	CollegeID   int64  `form:"college_id" json:"college_id,string" binding:"required"`
	CourseID    *int64 `form:"course_id" json:"course_id,omitempty,string"`
	MemberLimit int    `form:"member_limit" json:"member_limit"`
}

func (h *GroupHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req createGroupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), services.CreateStudyGroupInput{
		CreatorID:   user.ID,
		CollegeID:   req.CollegeID,
		CourseID:    req.CourseID,
		Name:        req.Name,
		Description: req.Description,
		MemberLimit: req.MemberLimit,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// Join 加入小组（人数已满返回 409）
func (h *GroupHandler) Join(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	added, err := h.groups.Join(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": id, "joined": added})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	groupID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "user")
	if !ok {
		return
	}
	if err := h.groups.RemoveMember(c.Request.Context(), user, groupID, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type memberRoleRequest struct {
	Role string `form:"role" json:"role" binding:"required"`
}

// SetRole 组长或版主修改成员角色
func (h *GroupHandler) SetRole(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	groupID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "user")
	if !ok {
		return
	}

	var req memberRoleRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := models.ParseGroupRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role " + req.Role})
		return
	}

	if err := h.groups.SetRole(c.Request.Context(), user, groupID, userID, role); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group_id": groupID, "user_id": userID, "role": role})
}
