package postgres

import (
	"context"

	"github.com/andgrowhq/chatwidget/internal/models"
	"gorm.io/gorm"
)

type MessageRepo interface {
	Insert(ctx context.Context, msg *models.Message) error
	// ListByConversation returns the turns in created_at order, the
	// canonical conversation order.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var row models.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
