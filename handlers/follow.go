package handlers

import (
	"github.com/gin-gonic/gin"

	"socialbox/middleware"
	"socialbox/relationship"
	"socialbox/utils"
)

func (h *Handler) RequestFollow(c *gin.Context) {
	req, reactivated, err := h.relationships.RequestFollow(c.Request.Context(), middleware.GetUserID(c), c.Param("userId"))
	if err != nil {
		utils.Error(c, err)
		return
	}

	message := "Follow request sent"
	if reactivated {
		message = "Follow request re-sent"
	}
	utils.Success(c, message, gin.H{"followRequest": req})
}

func (h *Handler) AcceptFollow(c *gin.Context) {
	req, err := h.relationships.AcceptFollow(c.Request.Context(), c.Param("requestId"), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Follow request accepted", gin.H{"followRequest": req})
}

func (h *Handler) RemoveFollower(c *gin.Context) {
	if err := h.relationships.RemoveFollower(c.Request.Context(), c.Param("userId"), middleware.GetUserID(c)); err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "User removed from your followers successfully", nil)
}

func (h *Handler) RemoveOrCancelFollow(c *gin.Context) {
	outcome, err := h.relationships.RemoveOrCancelFollow(c.Request.Context(), c.Param("userId"), middleware.GetUserID(c))
	if err != nil {
		utils.Error(c, err)
		return
	}

	message := "Follow request canceled"
	if outcome == relationship.OutcomeUnfollowed {
		message = "User unfollowed successfully"
	}
	utils.Success(c, message, gin.H{"outcome": outcome})
}
