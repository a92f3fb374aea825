package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/prompts"
	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/andgrowhq/chatwidget/internal/workers"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type ChatHandler struct {
	chat  services.ChatService
	redis *redis.Client
	log   *logrus.Logger
}

func NewChatHandler(chat services.ChatService, rdb *redis.Client, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, redis: rdb, log: log}
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

type ChatAck struct {
	ConversationID string          `json:"conversation_id"`
	SessionID      string          `json:"session_id"`
	Message        *models.Message `json:"message"`
}

// Store accepts a visitor message and streams the agent reply back as
// server-sent events. The reply is also persisted and broadcast, so a widget
// that loses the stream can still catch up over the realtime channel.
func (h *ChatHandler) Store(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Store", "message is required", err))
		return
	}

	conv, visitorMsg, err := h.chat.SubmitVisitorMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := c.Writer.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	writeEvent := func(event, data string) {
		if event != "" {
			io.WriteString(c.Writer, "event: "+event+"\n")
		}
		io.WriteString(c.Writer, "data: "+data+"\n\n")
		flush()
	}

	// Greetings resolve near-instantly; the progress event would only
	// flicker.
	if !prompts.IsSimpleQuery(req.Message) {
		writeEvent("start-processing", "Starting complex query process")
	}

	onDelta := func(chunk string) {
		payload, _ := json.Marshal(gin.H{"text": chunk})
		writeEvent("", string(payload))
	}

	if _, err := h.chat.RespondStream(c.Request.Context(), conv, visitorMsg, onDelta); err != nil {
		h.log.WithError(err).WithField("conversation_id", conv.ID).Error("streaming resolution failed")
		payload, _ := json.Marshal(gin.H{"error": "An error occurred."})
		writeEvent("error", string(payload))
		return
	}

	writeEvent("end", "Stream finished")
}

// StoreAsync accepts a visitor message, acks immediately, and leaves
// resolution to the worker pool; the reply arrives over the session's
// realtime channel.
func (h *ChatHandler) StoreAsync(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.StoreAsync", "message is required", err))
		return
	}

	conv, visitorMsg, err := h.chat.SubmitVisitorMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := workers.EnqueueJob(c.Request.Context(), h.redis, "", conv.ID, visitorMsg.ID); err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "ChatHandler.StoreAsync", "failed to enqueue chat job", err))
		return
	}

	c.JSON(http.StatusAccepted, ChatAck{
		ConversationID: conv.ID,
		SessionID:      conv.SessionID,
		Message:        visitorMsg,
	})
}
