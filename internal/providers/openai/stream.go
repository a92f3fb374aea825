package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// runStreamRequest is the create-run payload with incremental delivery on.
type runStreamRequest struct {
	AssistantID  string    `json:"assistant_id"`
	Instructions string    `json:"instructions,omitempty"`
	Tools        []runTool `json:"tools"`
	Stream       bool      `json:"stream"`
}

type runTool struct {
	Type string `json:"type"`
}

// streamEvent is the subset of assistant stream frames we consume. Message
// deltas carry text fragments; terminal run failures surface a status.
type streamEvent struct {
	Object string `json:"object"`
	Status string `json:"status"`
	Delta  struct {
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
}

// RunStream appends the user message, starts a streaming run, and feeds each
// text fragment to onDelta as it arrives. The sink is invoked synchronously
// on the reading goroutine and must not block on further remote calls. The
// accumulated reply is returned once the stream ends so the caller can
// persist and broadcast the complete text. On a mid-stream failure the text
// accumulated so far is returned alongside the error: fragments may already
// have reached the visitor, and the caller needs the partial to keep the
// persisted message consistent with what was shown.
func (c *Client) RunStream(ctx context.Context, threadID, userMessage, instructions string, fileSearch bool, onDelta func(string)) (string, error) {
	if err := c.addUserMessage(ctx, threadID, userMessage); err != nil {
		return "", err
	}

	tools := []runTool{}
	if fileSearch {
		tools = append(tools, runTool{Type: "file_search"})
	}
	payload, err := json.Marshal(runStreamRequest{
		AssistantID:  c.cfg.AssistantID,
		Instructions: instructions,
		Tools:        tools,
		Stream:       true,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/threads/%s/runs", strings.TrimRight(c.cfg.BaseURL, "/"), threadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("start streaming run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("streaming run rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		chunk, failure, ok := parseStreamLine(scanner.Bytes())
		if failure != "" {
			return full.String(), fmt.Errorf("assistant run ended with status %q", failure)
		}
		if ok && chunk != "" {
			full.WriteString(chunk)
			onDelta(chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}

	return full.String(), nil
}

// parseStreamLine extracts the text fragment from one SSE line. It returns
// the fragment, a non-empty failure status if the line reports a terminal
// run failure, and whether the line carried a fragment.
func parseStreamLine(line []byte) (chunk string, failure string, ok bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data: ")) {
		return "", "", false
	}
	data := bytes.TrimPrefix(line, []byte("data: "))
	if bytes.Equal(data, []byte("[DONE]")) {
		return "", "", false
	}

	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		// Unknown frame shapes are skipped, not fatal.
		return "", "", false
	}

	switch ev.Object {
	case "thread.run":
		switch ev.Status {
		case "failed", "cancelled", "expired", "incomplete":
			return "", ev.Status, false
		}
		return "", "", false
	case "thread.message.delta":
		var b strings.Builder
		for _, part := range ev.Delta.Content {
			if part.Text.Value != "" {
				b.WriteString(part.Text.Value)
			}
		}
		if b.Len() == 0 {
			return "", "", false
		}
		return b.String(), "", true
	default:
		return "", "", false
	}
}
