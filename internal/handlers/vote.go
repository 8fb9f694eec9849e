package handlers

import (
	"net/http"

	"campuslink/internal/middleware"
	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VoteHandler struct {
	votes *services.VoteService
	log   *zap.Logger
}

func NewVoteHandler(votes *services.VoteService, log *zap.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, log: log}
}

// Vote handles upvote logic
func (h *VoteHandler) Vote(c *gin.Context) {
	h.apply(c, models.Up)
}

// Downvote 处理点踩逻辑
func (h *VoteHandler) Downvote(c *gin.Context) {
	h.apply(c, models.Down)
}

// apply 再次投同方向票会取消，投反方向票会改票
func (h *VoteHandler) apply(c *gin.Context, dir models.Direction) {
	var userID int64
	if user, ok := middleware.CurrentUser(c); ok {
		userID = user.ID
	}

	target, err := models.ParseTargetType(c.Param("type")) // "post" or "comment"
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.votes.Vote(c.Request.Context(), userID, target, id, dir)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
