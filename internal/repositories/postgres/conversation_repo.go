package postgres

import (
	"context"
	"errors"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepo interface {
	FindOrCreateBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error)
	// AssignThreadID persists threadID on the conversation only if no thread
	// id is set yet, and returns the id that won. Two racing requests both
	// get the same thread id back and only one remote thread is ever kept.
	AssignThreadID(ctx context.Context, conversationID, threadID string) (string, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindOrCreateBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
	}
	// Insert-or-ignore on the unique session_id, then read back whichever
	// row won; avoids the read-then-write race on first contact.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(conv).Error
	if err != nil {
		return nil, err
	}
	return r.GetBySessionID(ctx, sessionID)
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &conv, err
}

func (r *conversationRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &conv, err
}

func (r *conversationRepo) AssignThreadID(ctx context.Context, conversationID, threadID string) (string, error) {
	err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ? AND openai_thread_id IS NULL", conversationID).
		Update("openai_thread_id", threadID).Error
	if err != nil {
		return "", err
	}

	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if conv.OpenAIThreadID == nil || *conv.OpenAIThreadID == "" {
		return "", errors.New("thread id assignment did not persist")
	}
	return *conv.OpenAIThreadID, nil
}
