package handlers

import (
	"net/http"

	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	conversations services.ConversationService
}

func NewConversationHandler(conversations services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) Show(c *gin.Context) {
	history, err := h.conversations.HistoryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// MessagesBySession returns the transcript for a widget session. An unknown
// session is not an error, the widget simply has nothing to render yet.
func (h *ConversationHandler) MessagesBySession(c *gin.Context) {
	history, err := h.conversations.HistoryBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
