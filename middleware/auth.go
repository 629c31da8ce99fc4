package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"socialbox/models"
	"socialbox/utils"
)

const userIDKey = "user_id"

// UserFinder resolves the user a token was issued for.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TokenFromRequest reads the session token from the cookie, a Bearer
// Authorization header or the token query parameter, in that order. The query
// parameter exists for browsers opening a WebSocket, which cannot set headers.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return c.Query("token")
}

func AuthMiddleware(tokens *utils.TokenManager, users UserFinder, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		if token == "" {
			utils.Unauthorized(c, "Not authorized, No token provided")
			c.Abort()
			return
		}

		claims, err := tokens.ParseToken(token)
		if errors.Is(err, utils.ErrTokenExpired) {
			utils.Unauthorized(c, "Unauthorized: Token has expired.")
			c.Abort()
			return
		}
		if err != nil {
			utils.Unauthorized(c, "Unauthorized: Invalid token.")
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			utils.Error(c, err)
			c.Abort()
			return
		}
		if user == nil {
			utils.Unauthorized(c, "Not authorized, User not found")
			c.Abort()
			return
		}

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
