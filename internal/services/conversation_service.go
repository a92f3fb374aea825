package services

import (
	"context"
	"errors"
	"time"

	"github.com/andgrowhq/chatwidget/internal/cache"
	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/utils"
)

const historyTTL = 5 * time.Minute

// History is a conversation's full ordered transcript.
type History struct {
	ConversationID string           `json:"conversation_id"`
	SessionID      string           `json:"session_id"`
	Messages       []models.Message `json:"messages"`
}

type ConversationService interface {
	HistoryByID(ctx context.Context, conversationID string) (*History, error)
	// HistoryBySession returns an empty history, not an error, for a
	// session that has never spoken; the widget polls before first contact.
	HistoryBySession(ctx context.Context, sessionID string) (*History, error)
}

type conversationService struct {
	convos   pgrepo.ConversationRepo
	messages pgrepo.MessageRepo
	cache    cache.Cache
}

func NewConversationService(convos pgrepo.ConversationRepo, messages pgrepo.MessageRepo, c cache.Cache) ConversationService {
	return &conversationService{convos: convos, messages: messages, cache: c}
}

func (s *conversationService) HistoryByID(ctx context.Context, conversationID string) (*History, error) {
	const op = "ConversationService.HistoryByID"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}

	conv, err := s.convos.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	return s.historyFor(ctx, conv, op)
}

func (s *conversationService) HistoryBySession(ctx context.Context, sessionID string) (*History, error) {
	const op = "ConversationService.HistoryBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session id is required", nil)
	}

	conv, err := s.convos.GetBySessionID(ctx, sessionID)
	if errors.Is(err, utils.ErrNotFound) {
		return &History{SessionID: sessionID, Messages: []models.Message{}}, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	return s.historyFor(ctx, conv, op)
}

func (s *conversationService) historyFor(ctx context.Context, conv *models.Conversation, op string) (*History, error) {
	key := cache.HistoryKey(conv.ID)

	var cached History
	if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
		return &cached, nil
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}

	h := &History{ConversationID: conv.ID, SessionID: conv.SessionID, Messages: msgs}
	_ = s.cache.SetJSON(ctx, key, h, historyTTL)
	return h, nil
}
