package router

import (
	"campuslink/internal/handlers"
	"campuslink/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Story   *handlers.StoryHandler
	Vote    *handlers.VoteHandler
	User    *handlers.UserHandler
	College *handlers.CollegeHandler
	Event   *handlers.EventHandler
	Group   *handlers.GroupHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", h.Health.Health)                // 存储连通性
	r.GET("/metrics", gin.WrapH(promhttp.Handler())) // Prometheus 指标

	// 公共路由 (Public Routes)
	r.GET("/", h.Story.ListTop)                             // 首页 - 热门帖子
	r.GET("/trending", h.Story.ListTop)                     // 热门帖子
	r.GET("/new", h.Story.ListNew)                          // 最新帖子
	r.GET("/p/:id", h.Story.Detail)                         // 帖子详情 + 评论树
	r.GET("/p/:id/comments", h.Story.Comments)              // 评论树
	r.GET("/courses/trending", h.College.TrendingCourses)   // 热门课程
	r.GET("/colleges/trending", h.College.TrendingColleges) // 热门学校
	r.GET("/u/:id", h.User.Profile)                         // 用户主页
	r.GET("/events/upcoming", h.Event.Upcoming)             // 学校近期活动
	r.GET("/events/:id", h.Event.Detail)                    // 活动详情
	r.GET("/groups/:id", h.Group.Detail)                    // 学习小组详情

	r.POST("/signup", h.Auth.Register) // 提交注册
	r.POST("/login", h.Auth.Login)     // 提交登录
	r.GET("/logout", h.Auth.Logout)    // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/submit", h.Story.Create)               // 发布帖子
		authorized.POST("/p/:id/comment", h.Story.CreateComment) // 发表评论
		authorized.POST("/vote/:type/:id", h.Vote.Vote)          // 点赞（再点取消）
		authorized.POST("/vote/:type/:id/down", h.Vote.Downvote) // 踩（再点取消）
		authorized.DELETE("/comment/:id", h.Story.DeleteComment) // 删除评论
		authorized.POST("/u/:id/karma", h.User.RecomputeKarma)   // 重算 karma

		authorized.POST("/events", h.Event.Create)                            // 发布活动
		authorized.POST("/events/:id/register", h.Event.Register)             // 报名
		authorized.DELETE("/events/:id/register", h.Event.CancelRegistration) // 取消报名
		authorized.POST("/events/:id/interested", h.Event.ToggleInterested)   // 感兴趣（再点取消）

		authorized.POST("/groups", h.Group.Create)                           // 创建学习小组
		authorized.POST("/groups/:id/join", h.Group.Join)                    // 加入小组
		authorized.DELETE("/groups/:id/members/:user", h.Group.RemoveMember) // 退出/移除成员
		authorized.POST("/groups/:id/members/:user/role", h.Group.SetRole)   // 修改成员角色
	}

	// 版主路由 (Moderator Routes)
	moderation := r.Group("/")
	moderation.Use(middleware.AuthRequired(), middleware.ModeratorRequired())
	{
		moderation.POST("/comment/:id/status", h.Story.SetCommentStatus) // 修改评论状态
		moderation.POST("/p/:id/recount", h.Story.Recount)               // 修正评论数
	}
}
