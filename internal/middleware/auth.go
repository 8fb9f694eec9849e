package middleware

import (
	"context"
	"net/http"
	"strings"

	"campuslink/internal/models"
	"campuslink/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// SessionUserKey is the session field holding the logged-in user id.
const SessionUserKey = "user_id"

// UserLoader resolves the acting user. *services.UserService satisfies it.
type UserLoader interface {
	Get(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser retrieves the user from the session, or from a Bearer token when
// there is no session, and sets it on the context.
func LoadUser(users UserLoader, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID int64
		session := sessions.Default(c)
		if id, ok := session.Get(SessionUserKey).(int64); ok {
			userID = id
		}

		if userID == 0 {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				if id, err := utils.ParseToken(jwtSecret, strings.TrimPrefix(header, "Bearer ")); err == nil {
					userID = id
				}
			}
		}

		if userID != 0 {
			if user, err := users.Get(c.Request.Context(), userID); err == nil {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user LoadUser put on the context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(CheckUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

// ModeratorRequired lets only moderators and admins through. It must run
// after AuthRequired.
func ModeratorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.Role.CanModerate() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "moderator role required"})
			return
		}
		c.Next()
	}
}
