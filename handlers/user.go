package handlers

import (
	"github.com/gin-gonic/gin"

	"socialbox/middleware"
	"socialbox/models"
	"socialbox/utils"
)

type profileURI struct {
	UserName string `uri:"userName" binding:"required,username"`
}

func (h *Handler) GetNotifications(c *gin.Context) {
	n, err := h.relationships.GetNotifications(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Notifications fetched successfully", gin.H{
		"receivedRequests": orEmpty(n.Received),
		"sendedRequests":   orEmpty(n.Sent),
	})
}

func (h *Handler) GetRecommendedUsers(c *gin.Context) {
	users, err := h.relationships.GetRecommendedUsers(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Recommended users fetched successfully", gin.H{"users": orEmpty(users)})
}

func (h *Handler) GetOnlineUsers(c *gin.Context) {
	ids, err := h.online.Online(c.Request.Context())
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Online users fetched successfully", gin.H{"onlineUsers": orEmpty(ids)})
}

func (h *Handler) FetchUsers(c *gin.Context) {
	users, err := h.accounts.Search(c.Request.Context(), c.Param("name"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", gin.H{"users": orEmpty(users)})
}

func (h *Handler) GetProfileByUserName(c *gin.Context) {
	var uri profileURI
	if err := c.ShouldBindUri(&uri); err != nil {
		utils.Error(c, models.NewUserNotFoundError(""))
		return
	}

	user, err := h.accounts.ProfileByUserName(c.Request.Context(), uri.UserName)
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", gin.H{"user": user})
}

// UpdateProfile edits the caller's own profile text.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), c.Param("userId"), req.input())
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", gin.H{"user": user})
}

// orEmpty keeps empty lists serialised as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
