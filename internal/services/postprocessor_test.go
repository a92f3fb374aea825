package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andgrowhq/chatwidget/internal/models"
)

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "الإجابة هنا.", CleanReply("الإجابة هنا.【4:0†source】"))
	assert.Equal(t, "جزء أول وجزء ثانٍ", CleanReply("جزء أول【1:2†faq.pdf】 وجزء ثانٍ【3:1†pricing.md】"))
	assert.Equal(t, "بدون اقتباسات", CleanReply("  بدون اقتباسات  "))
	assert.Equal(t, "", CleanReply("【only a citation】"))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("**مرحبا** بك")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>مرحبا</strong>")
}

func TestRenderHTMLEscapesRawMarkup(t *testing.T) {
	html, err := RenderHTML(`<script>alert("x")</script> hello`)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")

	// javascript: links are not rendered as hrefs
	html, err = RenderHTML(`[click](javascript:alert(1))`)
	require.NoError(t, err)
	assert.NotContains(t, html, "javascript:alert")
}

func TestFinalizePersistsAndBroadcasts(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	messages := &fakeMessageRepo{}
	bcast := &fakeBroadcaster{}
	post := NewPostprocessor(messages, bcast, fakeCache{}, log)

	conv := &models.Conversation{ID: "conv-1", SessionID: "sess-1"}
	msg, err := post.Finalize(context.Background(), conv, "الرد **النهائي**【2:0†source】", ReplyMeta{
		Source: models.SourceLocalRAG,
		Score:  0.82,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SenderAgent, msg.Sender)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Contains(t, msg.Body, "<strong>النهائي</strong>")
	assert.NotContains(t, msg.Body, "【")
	assert.Contains(t, string(msg.Metadata), `"source":"local_rag"`)
	assert.Contains(t, string(msg.Metadata), `"score":0.82`)

	require.Len(t, messages.inserted, 1)
	assert.Equal(t, 1, bcast.agentEvents)
}
