// Package openai wraps the OpenAI Assistants v2 and embeddings APIs behind
// the two narrow interfaces the resolver needs: run an assistant turn on a
// thread, and embed a piece of text.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Assistant is one assistant turn against a remote thread. Implementations
// must treat any non-2xx provider response as a hard failure and never retry
// on their own; choosing the next strategy is the resolver's job.
type Assistant interface {
	CreateThread(ctx context.Context, attachVectorStore bool) (string, error)
	RunAndWait(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool) (string, error)
	RunStream(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool, onDelta func(string)) (string, error)
}

// Embedder converts text to a fixed-length vector. A nil vector with a
// non-nil error is an expected outcome, not an exception; callers short-
// circuit to "no context" instead of failing the request.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoAnswerSentinel is returned when a completed run produced no assistant
// message at all; it matches the refusal markers so the resolver moves on.
const NoAnswerSentinel = "هذا السؤال خارج نطاق خبرتي."

// embedInputLimit is the token-safe prefix submitted to the embedding
// endpoint, in bytes.
const embedInputLimit = 8000

type Config struct {
	APIKey        string
	AssistantID   string
	VectorStoreID string

	// BaseURL overrides the API host, mainly for tests.
	BaseURL string

	EmbeddingModel goopenai.EmbeddingModel

	// PollInterval and MaxPollAttempts bound the run polling loop; a run
	// still not terminal after MaxPollAttempts polls is a failure.
	PollInterval    time.Duration
	MaxPollAttempts int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = goopenai.SmallEmbedding3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 45
	}
}

type Client struct {
	api  *goopenai.Client
	http *http.Client
	cfg  Config
	log  *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.AssistantID == "" {
		return nil, errors.New("openai: api key and assistant id are required")
	}
	cfg.applyDefaults()

	cc := goopenai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = cfg.BaseURL

	return &Client{
		api:  goopenai.NewClientWithConfig(cc),
		http: &http.Client{},
		cfg:  cfg,
		log:  log,
	}, nil
}

// CreateThread creates a fresh remote thread. With attachVectorStore set the
// thread is pre-bound to the configured vector store so file_search runs can
// reach the curated knowledge base.
func (c *Client) CreateThread(ctx context.Context, attachVectorStore bool) (string, error) {
	req := goopenai.ThreadRequest{}
	if attachVectorStore && c.cfg.VectorStoreID != "" {
		req.ToolResources = &goopenai.ToolResourcesRequest{
			FileSearch: &goopenai.FileSearchToolResourcesRequest{
				VectorStoreIDs: []string{c.cfg.VectorStoreID},
			},
		}
	}

	thread, err := c.api.CreateThread(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// RunAndWait appends the user message, starts a run with the given
// instructions and toolset, polls until it completes, and returns the first
// assistant reply from the most recent page of thread messages.
func (c *Client) RunAndWait(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool) (string, error) {
	if err := c.addUserMessage(ctx, threadID, userMessage); err != nil {
		return "", err
	}

	run, err := c.api.CreateRun(ctx, threadID, goopenai.RunRequest{
		AssistantID:  c.cfg.AssistantID,
		Instructions: instructions,
		Tools:        runTools(fileSearch),
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"thread_id":   threadID,
		"run_id":      run.ID,
		"file_search": fileSearch,
	}).Info("assistant run started")

	if err := c.waitForRun(ctx, threadID, run.ID); err != nil {
		return "", err
	}
	return c.latestAssistantReply(ctx, threadID)
}

func (c *Client) addUserMessage(ctx context.Context, threadID, text string) error {
	_, err := c.api.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    goopenai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("add message to thread: %w", err)
	}
	return nil
}

func (c *Client) waitForRun(ctx context.Context, threadID, runID string) error {
	status := goopenai.RunStatusQueued
	for attempt := 0; attempt < c.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		run, err := c.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("retrieve run: %w", err)
		}
		status = run.Status
		c.log.WithFields(logrus.Fields{
			"run_id":  runID,
			"status":  status,
			"attempt": attempt,
		}).Debug("run poll")

		switch status {
		case goopenai.RunStatusCompleted:
			return nil
		case goopenai.RunStatusQueued, goopenai.RunStatusInProgress:
			// keep polling
		default:
			return fmt.Errorf("assistant run ended with status %q", status)
		}
	}
	return fmt.Errorf("assistant run did not complete, last status %q", status)
}

func (c *Client) latestAssistantReply(ctx context.Context, threadID string) (string, error) {
	limit := 10
	list, err := c.api.ListMessage(ctx, threadID, &limit, nil, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}

	for _, msg := range list.Messages {
		if msg.Role != goopenai.ChatMessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	// A completed run with no assistant message: report "no answer" and let
	// the resolver fall through rather than failing the whole request.
	return NoAnswerSentinel, nil
}

// Embed returns the embedding for a token-safe prefix of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, embedInputLimit)

	resp, err := c.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: c.cfg.EmbeddingModel,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary so
// the prefix handed to the provider is never invalid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func runTools(fileSearch bool) []goopenai.Tool {
	if !fileSearch {
		return []goopenai.Tool{}
	}
	return []goopenai.Tool{{Type: goopenai.ToolType("file_search")}}
}
