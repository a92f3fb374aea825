package services

import (
	"context"
	"time"

	"github.com/andgrowhq/chatwidget/internal/broadcast"
	"github.com/andgrowhq/chatwidget/internal/cache"
	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/prompts"
	"github.com/andgrowhq/chatwidget/internal/providers/openai"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/search"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChatService owns a visitor turn end to end: persist the question, bind the
// conversation to its remote thread, walk the resolution policy, and hand the
// winning reply to the post-processor. Every path through Respond and
// RespondStream ends in exactly one saved agent message and one event, even
// when every upstream source fails.
type ChatService interface {
	// SubmitVisitorMessage finds or creates the conversation for sessionID
	// and records the visitor turn.
	SubmitVisitorMessage(ctx context.Context, sessionID, text string) (*models.Conversation, *models.Message, error)
	// Respond resolves a reply for the visitor turn and returns the
	// persisted agent message.
	Respond(ctx context.Context, conv *models.Conversation, visitorMsg *models.Message) (*models.Message, error)
	// RespondStream behaves like Respond but delivers text fragments to
	// onDelta as the winning phase produces them.
	RespondStream(ctx context.Context, conv *models.Conversation, visitorMsg *models.Message, onDelta func(string)) (*models.Message, error)
	// Apologize persists and broadcasts the fallback reply without
	// consulting any source. The async worker uses it when a job cannot be
	// resolved, so the visitor is never left waiting on the channel.
	Apologize(ctx context.Context, conversationID string) (*models.Message, error)
}

type chatService struct {
	convos    pgrepo.ConversationRepo
	messages  pgrepo.MessageRepo
	pages     pgrepo.PageRepo
	assistant openai.Assistant
	embedder  openai.Embedder
	post      *Postprocessor
	bcast     broadcast.Broadcaster
	cache     cache.Cache
	cfg       ResolverConfig
	log       *logrus.Logger
}

func NewChatService(
	convos pgrepo.ConversationRepo,
	messages pgrepo.MessageRepo,
	pages pgrepo.PageRepo,
	assistant openai.Assistant,
	embedder openai.Embedder,
	post *Postprocessor,
	bcast broadcast.Broadcaster,
	c cache.Cache,
	cfg ResolverConfig,
	log *logrus.Logger,
) ChatService {
	return &chatService{
		convos:    convos,
		messages:  messages,
		pages:     pages,
		assistant: assistant,
		embedder:  embedder,
		post:      post,
		bcast:     bcast,
		cache:     c,
		cfg:       cfg,
		log:       log,
	}
}

func (s *chatService) SubmitVisitorMessage(ctx context.Context, sessionID, text string) (*models.Conversation, *models.Message, error) {
	const op = "ChatService.SubmitVisitorMessage"

	if text == "" {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "message is required", nil)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conv, err := s.convos.FindOrCreateBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to open conversation", err)
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         models.SenderVisitor,
		Body:           text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to save visitor message", err)
	}

	_ = s.cache.Del(ctx, cache.HistoryKey(conv.ID))
	if err := s.bcast.VisitorMessageSent(ctx, conv.SessionID, msg); err != nil {
		s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("visitor message broadcast failed")
	}
	return conv, msg, nil
}

func (s *chatService) Respond(ctx context.Context, conv *models.Conversation, visitorMsg *models.Message) (*models.Message, error) {
	reply, meta := s.resolve(ctx, conv, visitorMsg.Body, nil)
	return s.post.Finalize(ctx, conv, reply, meta)
}

func (s *chatService) RespondStream(ctx context.Context, conv *models.Conversation, visitorMsg *models.Message, onDelta func(string)) (*models.Message, error) {
	reply, meta := s.resolve(ctx, conv, visitorMsg.Body, onDelta)
	return s.post.Finalize(ctx, conv, reply, meta)
}

func (s *chatService) Apologize(ctx context.Context, conversationID string) (*models.Message, error) {
	const op = "ChatService.Apologize"

	conv, err := s.convos.GetByID(ctx, conversationID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	return s.post.Finalize(ctx, conv, s.cfg.Apology, ReplyMeta{Source: models.SourceFallback})
}

// resolve walks the decision tree: assistant file-search first, local
// semantic RAG second, hardcoded apology last. It never returns an error;
// total upstream failure degrades to the apology so the caller always has
// something to persist. A non-nil onDelta makes the native attempt stream,
// with fragments held back until the reply is known not to be a refusal.
func (s *chatService) resolve(ctx context.Context, conv *models.Conversation, question string, onDelta func(string)) (string, ReplyMeta) {
	clog := s.log.WithField("conversation_id", conv.ID)

	threadID, err := s.ensureThread(ctx, conv)
	if err != nil {
		clog.WithError(err).Error("thread setup failed")
		return s.apologize(onDelta)
	}

	// Phase 1: the assistant's own attached knowledge via file_search.
	clog.Info("resolution: trying assistant file_search")
	nativeInstr, err := prompts.Render(prompts.KindNative, prompts.Params{})
	if err != nil {
		clog.WithError(err).Error("native template render failed")
		return s.apologize(onDelta)
	}
	reply, delivered, err := s.attempt(ctx, threadID, question, nativeInstr, true, onDelta)
	if err != nil {
		if delivered {
			// Fragments already reached the visitor; a later phase must not
			// stream on top of them. Persist the partial so history matches
			// what was shown.
			clog.WithError(err).Warn("stream failed after delivery started, keeping partial reply")
			return reply, ReplyMeta{Source: models.SourceFileSearch}
		}
		// Provider failures are not terminal here; the local corpus may
		// still hold an answer.
		clog.WithError(err).Warn("file_search attempt failed, falling through")
	} else if delivered || !prompts.IsRefusal(reply, s.cfg.RefusalMarkers) {
		return reply, ReplyMeta{Source: models.SourceFileSearch}
	}

	// Phase 2: local semantic RAG over indexed pages, same thread so the
	// remote memory stays continuous.
	clog.Info("resolution: falling back to local semantic search")
	contextBlock, score := s.localContext(ctx, question)
	if contextBlock != "" {
		instructions, rerr := prompts.Render(prompts.KindRAG, prompts.Params{
			Context:  contextBlock,
			Question: question,
		})
		if rerr == nil {
			ragReply, delivered, ragErr := s.attempt(ctx, threadID, question, instructions, false, onDelta)
			if ragErr != nil {
				if delivered {
					clog.WithError(ragErr).Warn("stream failed after delivery started, keeping partial reply")
					return ragReply, ReplyMeta{Source: models.SourceLocalRAG, Score: score}
				}
				clog.WithError(ragErr).Warn("rag attempt failed")
			} else if delivered || !prompts.IsRefusal(ragReply, s.cfg.RefusalMarkers) {
				return ragReply, ReplyMeta{Source: models.SourceLocalRAG, Score: score}
			}
		} else {
			clog.WithError(rerr).Error("rag template render failed")
		}
	}

	// Phase 3: the deterministic safety net.
	clog.Info("resolution: all sources exhausted, using apology")
	return s.apologize(onDelta)
}

func (s *chatService) apologize(onDelta func(string)) (string, ReplyMeta) {
	if onDelta != nil {
		onDelta(s.cfg.Apology)
	}
	return s.cfg.Apology, ReplyMeta{Source: models.SourceFallback}
}

// ensureThread returns the conversation's remote thread id, creating and
// persisting one on first use. The persisted id is the sole binding between
// local history and the provider's memory, so the write must win before any
// message is appended; the conditional update in AssignThreadID guarantees
// racing requests converge on a single thread.
func (s *chatService) ensureThread(ctx context.Context, conv *models.Conversation) (string, error) {
	if conv.OpenAIThreadID != nil && *conv.OpenAIThreadID != "" {
		return *conv.OpenAIThreadID, nil
	}

	created, err := s.assistant.CreateThread(ctx, true)
	if err != nil {
		return "", err
	}

	winner, err := s.convos.AssignThreadID(ctx, conv.ID, created)
	if err != nil {
		return "", err
	}
	if winner != created {
		s.log.WithFields(logrus.Fields{
			"conversation_id": conv.ID,
			"thread_id":       winner,
		}).Info("concurrent thread creation lost the race, using persisted id")
	}
	conv.OpenAIThreadID = &winner
	return winner, nil
}

// attempt runs one resolution phase, buffered or streaming. In streaming
// mode the gate keeps refusal text off the wire; delivered reports whether
// fragments reached the visitor, which makes this phase's reply final.
func (s *chatService) attempt(ctx context.Context, threadID, question, instructions string, fileSearch bool, onDelta func(string)) (reply string, delivered bool, err error) {
	if onDelta == nil {
		reply, err = s.assistant.RunAndWait(ctx, threadID, question, instructions, fileSearch)
		return reply, false, err
	}

	gate := newStreamGate(onDelta, s.cfg.RefusalMarkers)
	reply, err = s.assistant.RunStream(ctx, threadID, question, instructions, fileSearch, gate.Feed)
	if err != nil {
		// reply holds whatever accumulated before the failure; with the
		// gate live that text is on the visitor's screen already.
		return reply, gate.Live(), err
	}
	gate.Finish(reply)
	return reply, gate.Live(), nil
}

// localContext embeds the question and searches the indexed pages. Both "no
// embedding producible" and "nothing above threshold" are ordinary outcomes
// that yield no context rather than an error.
func (s *chatService) localContext(ctx context.Context, question string) (string, float64) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.log.WithError(err).Warn("question embedding failed, skipping local search")
		return "", 0
	}

	pages, err := s.pages.ListEmbedded(ctx)
	if err != nil {
		s.log.WithError(err).Warn("loading indexed pages failed, skipping local search")
		return "", 0
	}
	if len(pages) == 0 {
		return "", 0
	}

	top := search.TopK(vec, pages, s.cfg.TopK)
	if len(top) == 0 || top[0].Score < s.cfg.SimilarityThreshold {
		best := 0.0
		if len(top) > 0 {
			best = top[0].Score
		}
		s.log.WithFields(logrus.Fields{
			"best_score": best,
			"threshold":  s.cfg.SimilarityThreshold,
		}).Info("no sufficiently similar pages")
		return "", 0
	}

	return search.Context(vec, pages, s.cfg.TopK, s.cfg.SimilarityThreshold), top[0].Score
}
