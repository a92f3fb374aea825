package models

import "time"

// Conversation binds one widget session to one remote assistant thread.
// OpenAIThreadID is assigned exactly once on the first remote interaction and
// reused for every later turn; it is the only correlation key between local
// history and the provider's server-side conversational memory.
type Conversation struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID      string    `gorm:"column:session_id;type:text;uniqueIndex" json:"session_id"`
	OpenAIThreadID *string   `gorm:"column:openai_thread_id;type:text" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }
