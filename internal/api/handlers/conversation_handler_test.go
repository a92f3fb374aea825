package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/andgrowhq/chatwidget/internal/utils"
)

type fakeConversationService struct {
	byID      map[string]*services.History
	bySession map[string]*services.History
}

func (f *fakeConversationService) HistoryByID(ctx context.Context, conversationID string) (*services.History, error) {
	if h, ok := f.byID[conversationID]; ok {
		return h, nil
	}
	return nil, utils.E(utils.CodeNotFound, "ConversationService.HistoryByID", "conversation not found", nil)
}

func (f *fakeConversationService) HistoryBySession(ctx context.Context, sessionID string) (*services.History, error) {
	if h, ok := f.bySession[sessionID]; ok {
		return h, nil
	}
	return &services.History{SessionID: sessionID, Messages: []models.Message{}}, nil
}

func conversationRouter(svc services.ConversationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewConversationHandler(svc)
	r.GET("/api/conversation/:id", h.Show)
	r.GET("/api/session/:session_id/messages", h.MessagesBySession)
	return r
}

func TestConversationShow(t *testing.T) {
	svc := &fakeConversationService{
		byID: map[string]*services.History{
			"conv-1": {
				ConversationID: "conv-1",
				SessionID:      "sess-1",
				Messages: []models.Message{
					{ID: "m1", Sender: models.SenderVisitor, Body: "hi"},
					{ID: "m2", Sender: models.SenderAgent, Body: "<p>أهلاً</p>"},
				},
			},
		},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversation/conv-1", nil)
	conversationRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var h services.History
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "conv-1", h.ConversationID)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, models.SenderAgent, h.Messages[1].Sender)
}

func TestConversationShowNotFound(t *testing.T) {
	svc := &fakeConversationService{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/conversation/missing", nil)
	conversationRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, utils.CodeNotFound, apiErr.Code)
}

func TestMessagesBySessionUnknownIsEmpty(t *testing.T) {
	svc := &fakeConversationService{}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/session/fresh-session/messages", nil)
	conversationRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var h services.History
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "fresh-session", h.SessionID)
	assert.Empty(t, h.Messages)
}
