package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"campuslink/internal/models"
	"campuslink/internal/services"
	"campuslink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to a status code and a JSON body.
// Unexpected errors are logged and reported without detail.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		utils.LoggerWithTrace(c.Request.Context(), log).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// idParam parses a positive id path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
	}
	return id, ok
}

func queryID(c *gin.Context, name string) (int64, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, true
	}
	return utils.ParseID(s)
}

// rankScope reads ?college=&course=&limit= of the listing routes.
func rankScope(c *gin.Context) (models.RankScope, int, bool) {
	collegeID, ok := queryID(c, "college")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid college"})
		return models.RankScope{}, 0, false
	}
	courseID, ok := queryID(c, "course")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course"})
		return models.RankScope{}, 0, false
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	return models.RankScope{CollegeID: collegeID, CourseID: courseID}, limit, true
}

type postView struct {
	models.Post
	ContentHTML template.HTML `json:"content_html"`
}

type commentView struct {
	models.Comment
	ContentHTML template.HTML  `json:"content_html"`
	Replies     []*commentView `json:"replies"`
}

func renderPost(p *models.Post) postView {
	return postView{Post: *p, ContentHTML: utils.RenderMarkdown(p.Content)}
}

func renderTree(nodes []*models.CommentNode) []*commentView {
	views := make([]*commentView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, &commentView{
			Comment:     n.Comment,
			ContentHTML: utils.RenderMarkdown(n.Content),
			Replies:     renderTree(n.Replies),
		})
	}
	return views
}
