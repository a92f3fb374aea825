package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SenderVisitor = "visitor"
	SenderAgent   = "agent"
)

// Resolution sources recorded in message metadata.
const (
	SourceFileSearch = "file_search"
	SourceLocalRAG   = "local_rag"
	SourceFallback   = "fallback"
)

// Message is one turn in a conversation. Visitor bodies are plain text;
// agent bodies are sanitized HTML. Rows are immutable once created and
// created_at order is the canonical conversation order.
type Message struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string         `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Sender         string         `gorm:"column:sender;type:text" json:"sender"` // "visitor" | "agent"
	Body           string         `gorm:"column:body;type:text" json:"body"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
