package handlers

import (
	"net/http"

	"campuslink/internal/middleware"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users *services.UserService
	karma *services.KarmaService
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, karma *services.KarmaService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, karma: karma, log: log}
}

// Profile - 用户主页 /u/:id
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"level":      utils.GetKarmaLevel(user.Karma),
		"days_since": utils.GetDaysSinceJoined(user.CreatedAt),
	})
}

// RecomputeKarma 重算 karma，只能本人或版主触发
func (h *UserHandler) RecomputeKarma(c *gin.Context) {
	current, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if current.ID != id && !current.Role.CanModerate() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	karma, err := h.karma.Recompute(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": id,
		"karma":   karma,
		"level":   utils.GetKarmaLevel(karma),
	})
}
