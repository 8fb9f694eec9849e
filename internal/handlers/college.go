package handlers

import (
	"net/http"
	"strconv"

	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CollegeHandler struct {
	ranking *services.RankingService
	log     *zap.Logger
}

func NewCollegeHandler(ranking *services.RankingService, log *zap.Logger) *CollegeHandler {
	return &CollegeHandler{ranking: ranking, log: log}
}

// TrendingCourses 最近 30 天发帖最多的课程，可按学校过滤
func (h *CollegeHandler) TrendingCourses(c *gin.Context) {
	collegeID, ok := queryID(c, "college")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid college"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	courses, err := h.ranking.TrendingCourses(c.Request.Context(), collegeID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// TrendingColleges 最近 7 天发帖最多的学校
func (h *CollegeHandler) TrendingColleges(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	colleges, err := h.ranking.TrendingColleges(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"colleges": colleges})
}
