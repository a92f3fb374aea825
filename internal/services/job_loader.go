package services

import (
	"context"

	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/utils"
)

// ChatJob is one queued visitor turn awaiting async resolution.
type ChatJob struct {
	Conversation   *models.Conversation
	VisitorMessage *models.Message
}

type JobLoader struct {
	convos   pgrepo.ConversationRepo
	messages pgrepo.MessageRepo
}

func NewJobLoader(convos pgrepo.ConversationRepo, messages pgrepo.MessageRepo) *JobLoader {
	return &JobLoader{convos: convos, messages: messages}
}

func (l *JobLoader) LoadJob(ctx context.Context, conversationID, messageID string) (*ChatJob, error) {
	const op = "JobLoader.LoadJob"

	conv, err := l.convos.GetByID(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "conversation not found", err)
	}
	msg, err := l.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "visitor message not found", err)
	}
	return &ChatJob{Conversation: conv, VisitorMessage: msg}, nil
}
