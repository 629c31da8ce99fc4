// Package handlers exposes the account, relationship, presence and messaging
// services over HTTP.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"socialbox/account"
	"socialbox/messaging"
	"socialbox/relationship"
	"socialbox/utils"
)

// OnlineLister reports which users hold a live connection.
type OnlineLister interface {
	Online(ctx context.Context) ([]string, error)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	accounts      *account.Service
	relationships *relationship.Service
	messages      *messaging.Service
	online        OnlineLister
	tokens        *utils.TokenManager
	cookie        CookieConfig
}

func NewHandler(
	accounts *account.Service,
	relationships *relationship.Service,
	messages *messaging.Service,
	online OnlineLister,
	tokens *utils.TokenManager,
	cookie CookieConfig,
) *Handler {
	return &Handler{
		accounts:      accounts,
		relationships: relationships,
		messages:      messages,
		online:        online,
		tokens:        tokens,
		cookie:        cookie,
	}
}

// Middlewares are applied to route groups by RegisterRoutes.
type Middlewares struct {
	Auth        gin.HandlerFunc
	FollowLimit gin.HandlerFunc
}

// RegisterBindingRules makes the application validation tags available to
// gin's request binding.
func RegisterBindingRules() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return utils.RegisterRules(v)
	}
	return nil
}

func (h *Handler) RegisterRoutes(r gin.IRouter, mw Middlewares) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.POST("/onboard", mw.Auth, h.Onboard)
		auth.GET("/user", mw.Auth, h.GetUser)
	}

	follows := r.Group("/api/follows")
	follows.Use(mw.Auth)
	if mw.FollowLimit != nil {
		follows.Use(mw.FollowLimit)
	}
	{
		follows.POST("/follow-request/:userId", h.RequestFollow)
		follows.PUT("/follow-request/:requestId/accept", h.AcceptFollow)
		follows.DELETE("/follow-request/:userId/removeOrCancelFollow", h.RemoveOrCancelFollow)
		follows.POST("/remove-follower/:userId", h.RemoveFollower)
	}

	users := r.Group("/api/users")
	users.Use(mw.Auth)
	{
		users.GET("/notifications", h.GetNotifications)
		users.GET("/recommended-users", h.GetRecommendedUsers)
		users.GET("/online", h.GetOnlineUsers)
		users.GET("/fetch-users/:name", h.FetchUsers)
		users.PATCH("/update-profile/:userId", h.UpdateProfile)
		users.GET("/:userName", h.GetProfileByUserName)
	}

	messages := r.Group("/api/messages")
	messages.Use(mw.Auth)
	{
		messages.GET("/get-messages/:userId", h.GetMessages)
	}
}
