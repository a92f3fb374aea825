package services

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/andgrowhq/chatwidget/internal/broadcast"
	"github.com/andgrowhq/chatwidget/internal/cache"
	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"gorm.io/datatypes"
)

// citationPattern matches the provider's bracketed citation markers, e.g.
// 【4:0†source】, which mean nothing to a widget visitor.
var citationPattern = regexp.MustCompile(`【.*?】`)

// markdown renders with goldmark defaults: raw HTML in the input is escaped
// and unsafe link schemes are not rendered, so provider output cannot smuggle
// markup into the widget.
var markdown = goldmark.New()

// CleanReply strips citation markers and trims the raw assistant markdown.
func CleanReply(raw string) string {
	return strings.TrimSpace(citationPattern.ReplaceAllString(raw, ""))
}

// RenderHTML converts assistant markdown to sanitized HTML.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReplyMeta records how a reply was produced; it lands in the message's
// metadata column for later inspection.
type ReplyMeta struct {
	Source string  `json:"source"`
	Score  float64 `json:"score,omitempty"`
}

// Postprocessor turns a raw assistant reply into the persisted, broadcast
// agent message every visitor turn must end with.
type Postprocessor struct {
	messages pgrepo.MessageRepo
	bcast    broadcast.Broadcaster
	cache    cache.Cache
	log      *logrus.Logger
}

func NewPostprocessor(messages pgrepo.MessageRepo, bcast broadcast.Broadcaster, c cache.Cache, log *logrus.Logger) *Postprocessor {
	return &Postprocessor{messages: messages, bcast: bcast, cache: c, log: log}
}

// Finalize cleans and renders the reply, saves it as the agent turn, and
// announces it on the session channel.
func (p *Postprocessor) Finalize(ctx context.Context, conv *models.Conversation, rawMarkdown string, meta ReplyMeta) (*models.Message, error) {
	const op = "Postprocessor.Finalize"

	html, err := RenderHTML(CleanReply(rawMarkdown))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to render reply", err)
	}

	metaJSON, _ := json.Marshal(meta)
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         models.SenderAgent,
		Body:           html,
		Metadata:       datatypes.JSON(metaJSON),
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.messages.Insert(ctx, msg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save agent message", err)
	}

	_ = p.cache.Del(ctx, cache.HistoryKey(conv.ID))

	if err := p.bcast.AgentMessageSent(ctx, conv.SessionID, msg); err != nil {
		// The message is saved; a lost event only degrades realtime
		// delivery, the history endpoint still has the turn.
		p.log.WithError(err).WithField("conversation_id", conv.ID).Warn("agent message broadcast failed")
	}
	return msg, nil
}
