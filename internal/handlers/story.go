package handlers

import (
	"net/http"

	"campuslink/internal/middleware"
	"campuslink/internal/models"
	"campuslink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StoryHandler serves posts, their comment threads and the ranking lists.
type StoryHandler struct {
	posts    *services.PostService
	ranking  *services.RankingService
	comments *services.CommentService
	repair   *services.CounterRepairService
	log      *zap.Logger
}

func NewStoryHandler(posts *services.PostService, ranking *services.RankingService, comments *services.CommentService, repair *services.CounterRepairService, log *zap.Logger) *StoryHandler {
	return &StoryHandler{posts: posts, ranking: ranking, comments: comments, repair: repair, log: log}
}

func (h *StoryHandler) ListTop(c *gin.Context) {
	scope, limit, ok := rankScope(c)
	if !ok {
		return
	}
	posts, err := h.ranking.Trending(c.Request.Context(), scope, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *StoryHandler) ListNew(c *gin.Context) {
	scope, limit, ok := rankScope(c)
	if !ok {
		return
	}
	posts, err := h.ranking.New(c.Request.Context(), scope, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Detail returns the post with its comment tree and counts the view.
func (h *StoryHandler) Detail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	post, err := h.posts.View(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	tree, err := h.comments.Tree(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":     renderPost(post),
		"comments": renderTree(tree),
	})
}

func (h *StoryHandler) Comments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tree, err := h.comments.Tree(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": renderTree(tree)})
}

type createPostRequest struct {
	Title     string `form:"title" json:"title" binding:"required"`
	URL       string `form:"url" json:"url"`
	Content   string `form:"content" json:"content"`
	CollegeID int64  `form:"college_id" json:"college_id,string" binding:"required"`
	CourseID  *int64 `form:"course_id" json:"course_id,omitempty,string"`
}

func (h *StoryHandler) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req createPostRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), services.CreatePostInput{
		AuthorID:  user.ID,
		CollegeID: req.CollegeID,
		CourseID:  req.CourseID,
		Title:     req.Title,
		URL:       req.URL,
		Content:   req.Content,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": renderPost(post)})
}

type createCommentRequest struct {
	Content  string `form:"content" json:"content" binding:"required"`
	ParentID *int64 `form:"parent_id" json:"parent_id,omitempty,string"`
}

func (h *StoryHandler) CreateComment(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	postID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req createCommentRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, change, err := h.comments.Create(c.Request.Context(), services.CreateCommentInput{
		PostID:   postID,
		AuthorID: user.ID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment, "counter": change})
}

// DeleteComment 软删除评论（作者本人或版主）
func (h *StoryHandler) DeleteComment(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	comment, change, err := h.comments.Delete(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment, "counter": change})
}

type commentStatusRequest struct {
	Status string `form:"status" json:"status" binding:"required"`
}

// SetCommentStatus 版主修改评论状态
func (h *StoryHandler) SetCommentStatus(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req commentStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, ok := models.ParseCommentStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	comment, change, err := h.comments.SetStatus(c.Request.Context(), user, id, status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment, "counter": change})
}

// Recount 同步修正帖子评论数
func (h *StoryHandler) Recount(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	count, err := h.repair.RecountNow(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post_id": id, "comment_count": count})
}
