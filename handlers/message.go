package handlers

import (
	"github.com/gin-gonic/gin"

	"socialbox/middleware"
	"socialbox/utils"
)

func (h *Handler) GetMessages(c *gin.Context) {
	conv, err := h.messages.History(c.Request.Context(), middleware.GetUserID(c), c.Param("userId"))
	if err != nil {
		utils.Error(c, err)
		return
	}
	utils.Success(c, "Messages fetched successfully", gin.H{
		"user":     conv.User,
		"messages": orEmpty(conv.Messages),
	})
}
