package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/prompts"
	"github.com/andgrowhq/chatwidget/internal/utils"
)

// --- fakes ---

type fakeConvoRepo struct {
	convos map[string]*models.Conversation // by session id
}

func newFakeConvoRepo() *fakeConvoRepo {
	return &fakeConvoRepo{convos: map[string]*models.Conversation{}}
}

func (r *fakeConvoRepo) FindOrCreateBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error) {
	if c, ok := r.convos[sessionID]; ok {
		return c, nil
	}
	c := &models.Conversation{ID: uuid.NewString(), SessionID: sessionID, CreatedAt: time.Now().UTC()}
	r.convos[sessionID] = c
	return c, nil
}

func (r *fakeConvoRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	for _, c := range r.convos {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeConvoRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Conversation, error) {
	if c, ok := r.convos[sessionID]; ok {
		return c, nil
	}
	return nil, utils.ErrNotFound
}

func (r *fakeConvoRepo) AssignThreadID(ctx context.Context, conversationID, threadID string) (string, error) {
	for _, c := range r.convos {
		if c.ID != conversationID {
			continue
		}
		if c.OpenAIThreadID != nil && *c.OpenAIThreadID != "" {
			return *c.OpenAIThreadID, nil
		}
		c.OpenAIThreadID = &threadID
		return threadID, nil
	}
	return "", errors.New("not found")
}

type fakeMessageRepo struct {
	inserted []*models.Message
}

func (r *fakeMessageRepo) Insert(ctx context.Context, msg *models.Message) error {
	r.inserted = append(r.inserted, msg)
	return nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	for _, m := range r.inserted {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	for _, m := range r.inserted {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, errors.New("not found")
}

type fakePageRepo struct {
	embedded []models.IndexedPage
}

func (r *fakePageRepo) Upsert(ctx context.Context, page *models.IndexedPage) error { return nil }

func (r *fakePageRepo) ListEmbedded(ctx context.Context) ([]models.IndexedPage, error) {
	return r.embedded, nil
}

func (r *fakePageRepo) ListUnembedded(ctx context.Context, all bool) ([]models.IndexedPage, error) {
	return nil, nil
}

func (r *fakePageRepo) SetEmbedding(ctx context.Context, pageID string, vec pgvector.Vector) error {
	return nil
}

// fakeAssistant scripts one reply per attempt, in call order.
type fakeAssistant struct {
	replies       []string
	errs          []error
	calls         int
	threadsMade   int
	threadIDs     []string
	gotFileSearch []bool

	// partialBeforeErr, when set, is streamed and returned alongside a
	// scripted error, like a run dying mid-stream.
	partialBeforeErr string
}

func (a *fakeAssistant) CreateThread(ctx context.Context, attachVectorStore bool) (string, error) {
	a.threadsMade++
	return "thread_test", nil
}

func (a *fakeAssistant) next(threadID string, fileSearch bool) (string, error) {
	i := a.calls
	a.calls++
	a.threadIDs = append(a.threadIDs, threadID)
	a.gotFileSearch = append(a.gotFileSearch, fileSearch)
	var err error
	if i < len(a.errs) {
		err = a.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(a.replies) {
		return a.replies[i], nil
	}
	return "", errors.New("unscripted call")
}

func (a *fakeAssistant) RunAndWait(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool) (string, error) {
	return a.next(threadID, fileSearch)
}

func (a *fakeAssistant) RunStream(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool, onDelta func(string)) (string, error) {
	reply, err := a.next(threadID, fileSearch)
	if err != nil {
		if a.partialBeforeErr != "" {
			onDelta(a.partialBeforeErr)
			return a.partialBeforeErr, err
		}
		return "", err
	}
	// deliver in two fragments like a real stream
	half := len(reply) / 2
	onDelta(reply[:half])
	onDelta(reply[half:])
	return reply, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

type fakeBroadcaster struct {
	agentEvents   int
	visitorEvents int
}

func (b *fakeBroadcaster) AgentMessageSent(ctx context.Context, sessionID string, msg *models.Message) error {
	b.agentEvents++
	return nil
}

func (b *fakeBroadcaster) VisitorMessageSent(ctx context.Context, sessionID string, msg *models.Message) error {
	b.visitorEvents++
	return nil
}

type fakeCache struct{}

func (fakeCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) { return false, nil }
func (fakeCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	return nil
}
func (fakeCache) Del(ctx context.Context, keys ...string) error { return nil }

// --- fixtures ---

type chatFixture struct {
	svc       ChatService
	assistant *fakeAssistant
	messages  *fakeMessageRepo
	bcast     *fakeBroadcaster
	convos    *fakeConvoRepo
	conv      *models.Conversation
	visitor   *models.Message
}

func newChatFixture(t *testing.T, assistant *fakeAssistant, embedder *fakeEmbedder, pages *fakePageRepo) *chatFixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	convos := newFakeConvoRepo()
	messages := &fakeMessageRepo{}
	bcast := &fakeBroadcaster{}
	c := fakeCache{}
	post := NewPostprocessor(messages, bcast, c, log)

	cfg := DefaultResolverConfig()
	svc := NewChatService(convos, messages, pages, assistant, embedder, post, bcast, c, cfg, log)

	conv, visitor, err := svc.SubmitVisitorMessage(context.Background(), "sess-1", "ما هي خدماتكم؟")
	require.NoError(t, err)

	return &chatFixture{
		svc:       svc,
		assistant: assistant,
		messages:  messages,
		bcast:     bcast,
		convos:    convos,
		conv:      conv,
		visitor:   visitor,
	}
}

func embeddedPage(title string, v []float32) models.IndexedPage {
	pv := pgvector.NewVector(v)
	return models.IndexedPage{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   "We offer consulting and growth services.",
		Embedding: &pv,
	}
}

// --- tests ---

func TestSubmitVisitorMessage(t *testing.T) {
	f := newChatFixture(t, &fakeAssistant{}, &fakeEmbedder{}, &fakePageRepo{})

	assert.Equal(t, "sess-1", f.conv.SessionID)
	assert.Equal(t, models.SenderVisitor, f.visitor.Sender)
	assert.Equal(t, f.conv.ID, f.visitor.ConversationID)
	assert.Equal(t, 1, f.bcast.visitorEvents)

	// same session reuses the conversation
	conv2, _, err := f.svc.SubmitVisitorMessage(context.Background(), "sess-1", "وسؤال آخر")
	require.NoError(t, err)
	assert.Equal(t, f.conv.ID, conv2.ID)
}

func TestSubmitVisitorMessageValidation(t *testing.T) {
	f := newChatFixture(t, &fakeAssistant{}, &fakeEmbedder{}, &fakePageRepo{})

	_, _, err := f.svc.SubmitVisitorMessage(context.Background(), "sess-1", "")
	require.Error(t, err)

	// missing session id gets one generated
	conv, _, err := f.svc.SubmitVisitorMessage(context.Background(), "", "سؤال")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.SessionID)
}

func TestRespondFileSearchAnswers(t *testing.T) {
	assistant := &fakeAssistant{replies: []string{"نحن نقدم خدمات استشارية متكاملة."}}
	f := newChatFixture(t, assistant, &fakeEmbedder{}, &fakePageRepo{})

	msg, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Equal(t, models.SenderAgent, msg.Sender)
	assert.Contains(t, msg.Body, "نحن نقدم خدمات استشارية متكاملة.")
	assert.Contains(t, string(msg.Metadata), models.SourceFileSearch)

	// one attempt only, with file_search enabled
	assert.Equal(t, 1, assistant.calls)
	assert.Equal(t, []bool{true}, assistant.gotFileSearch)
	assert.Equal(t, 1, f.bcast.agentEvents)
}

func TestRespondFallsBackToLocalRAG(t *testing.T) {
	assistant := &fakeAssistant{replies: []string{
		prompts.RefusalSentence,
		"وفقًا لموقعنا، نقدم خدمات النمو الرقمي.",
	}}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	pages := &fakePageRepo{embedded: []models.IndexedPage{embeddedPage("services", []float32{1, 0.05})}}
	f := newChatFixture(t, assistant, embedder, pages)

	msg, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Contains(t, msg.Body, "خدمات النمو الرقمي")
	assert.Contains(t, string(msg.Metadata), models.SourceLocalRAG)

	// second attempt reuses the thread and disables file_search
	require.Equal(t, 2, assistant.calls)
	assert.Equal(t, []bool{true, false}, assistant.gotFileSearch)
	assert.Equal(t, assistant.threadIDs[0], assistant.threadIDs[1])
}

func TestRespondApologizesWhenExhausted(t *testing.T) {
	// file_search refuses; no embedded pages so RAG is skipped entirely
	assistant := &fakeAssistant{replies: []string{prompts.RefusalSentence}}
	f := newChatFixture(t, assistant, &fakeEmbedder{vec: []float32{1, 0}}, &fakePageRepo{})

	msg, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Contains(t, msg.Body, "support@andgrow.io")
	assert.Contains(t, string(msg.Metadata), models.SourceFallback)
	assert.Equal(t, 1, assistant.calls)
}

func TestRespondApologizesOnProviderError(t *testing.T) {
	assistant := &fakeAssistant{errs: []error{errors.New("boom"), errors.New("boom")}}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	pages := &fakePageRepo{embedded: []models.IndexedPage{embeddedPage("services", []float32{1, 0.05})}}
	f := newChatFixture(t, assistant, embedder, pages)

	msg, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Contains(t, string(msg.Metadata), models.SourceFallback)
	// both phases were attempted before apologizing
	assert.Equal(t, 2, assistant.calls)
	assert.Equal(t, 1, f.bcast.agentEvents)
}

func TestRespondBelowThresholdSkipsRAG(t *testing.T) {
	assistant := &fakeAssistant{replies: []string{prompts.RefusalSentence}}
	embedder := &fakeEmbedder{vec: []float32{0, 1}}
	// near-orthogonal to the query embedding
	pages := &fakePageRepo{embedded: []models.IndexedPage{embeddedPage("services", []float32{1, 0.05})}}
	f := newChatFixture(t, assistant, embedder, pages)

	msg, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Contains(t, string(msg.Metadata), models.SourceFallback)
	assert.Equal(t, 1, assistant.calls)
}

func TestRespondStreamDeliversFragments(t *testing.T) {
	long := "نحن شركة متخصصة في خدمات النمو الرقمي والاستشارات التسويقية، ونساعد عملاءنا على بناء حضور رقمي فعال وتحقيق أهدافهم التجارية بخطط مدروسة وقابلة للقياس."
	assistant := &fakeAssistant{replies: []string{long}}
	f := newChatFixture(t, assistant, &fakeEmbedder{}, &fakePageRepo{})

	var streamed string
	msg, err := f.svc.RespondStream(context.Background(), f.conv, f.visitor, func(chunk string) {
		streamed += chunk
	})
	require.NoError(t, err)

	assert.Equal(t, long, streamed)
	assert.Contains(t, string(msg.Metadata), models.SourceFileSearch)
}

func TestRespondStreamSuppressesRefusal(t *testing.T) {
	assistant := &fakeAssistant{replies: []string{
		prompts.RefusalSentence,
		"وفقًا لموقعنا، نقدم خدمات النمو الرقمي.",
	}}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	pages := &fakePageRepo{embedded: []models.IndexedPage{embeddedPage("services", []float32{1, 0.05})}}
	f := newChatFixture(t, assistant, embedder, pages)

	var streamed string
	msg, err := f.svc.RespondStream(context.Background(), f.conv, f.visitor, func(chunk string) {
		streamed += chunk
	})
	require.NoError(t, err)

	// the refusal never reached the sink; only the RAG answer did
	assert.NotContains(t, streamed, "خارج نطاق خبرتي")
	assert.Equal(t, "وفقًا لموقعنا، نقدم خدمات النمو الرقمي.", streamed)
	assert.Contains(t, string(msg.Metadata), models.SourceLocalRAG)
}

func TestRespondStreamKeepsPartialAfterStreamError(t *testing.T) {
	// long enough to cross the holdback limit, so the gate is live when the
	// stream dies
	partial := strings.Repeat("نقدم خدمات النمو الرقمي والاستشارات التسويقية. ", 4)
	assistant := &fakeAssistant{
		errs:             []error{errors.New("connection reset")},
		partialBeforeErr: partial,
	}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	pages := &fakePageRepo{embedded: []models.IndexedPage{embeddedPage("services", []float32{1, 0.05})}}
	f := newChatFixture(t, assistant, embedder, pages)

	var streamed string
	msg, err := f.svc.RespondStream(context.Background(), f.conv, f.visitor, func(chunk string) {
		streamed += chunk
	})
	require.NoError(t, err)

	// the phase that reached the visitor is final: no RAG answer or apology
	// is layered on top, and the saved body matches what was shown
	assert.Equal(t, partial, streamed)
	assert.NotContains(t, streamed, "support@andgrow.io")
	assert.Contains(t, msg.Body, strings.TrimSpace(partial))
	assert.Contains(t, string(msg.Metadata), models.SourceFileSearch)
	assert.Equal(t, 1, assistant.calls)
}

func TestApologize(t *testing.T) {
	f := newChatFixture(t, &fakeAssistant{}, &fakeEmbedder{}, &fakePageRepo{})

	msg, err := f.svc.Apologize(context.Background(), f.conv.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SenderAgent, msg.Sender)
	assert.Contains(t, msg.Body, "support@andgrow.io")
	assert.Contains(t, string(msg.Metadata), models.SourceFallback)
	assert.Equal(t, 1, f.bcast.agentEvents)

	_, err = f.svc.Apologize(context.Background(), "no-such-conversation")
	require.Error(t, err)
}

func TestEnsureThreadIsIdempotent(t *testing.T) {
	assistant := &fakeAssistant{replies: []string{"الرد الأول.", "الرد الثاني."}}
	f := newChatFixture(t, assistant, &fakeEmbedder{}, &fakePageRepo{})

	_, err := f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)
	_, err = f.svc.Respond(context.Background(), f.conv, f.visitor)
	require.NoError(t, err)

	assert.Equal(t, 1, assistant.threadsMade)
	require.NotNil(t, f.conv.OpenAIThreadID)
	assert.Equal(t, "thread_test", *f.conv.OpenAIThreadID)
}
