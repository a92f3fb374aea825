package services

import (
	"strings"

	"github.com/andgrowhq/chatwidget/internal/prompts"
)

// holdbackLimit is how much text the gate buffers before concluding the
// reply is a real answer. Refusal sentences are short; anything longer
// without a marker is treated as substantive and goes live.
const holdbackLimit = 160

// streamGate sits between a streaming run and the widget sink. A refusal
// reply must never reach the visitor as deltas, because the policy replaces
// it with a later phase's answer; the gate buffers the head of the stream
// until a refusal can be ruled out, then forwards everything live.
type streamGate struct {
	sink    func(string)
	markers []string
	buf     strings.Builder
	live    bool
	refused bool
}

func newStreamGate(sink func(string), markers []string) *streamGate {
	return &streamGate{sink: sink, markers: markers}
}

// Feed accepts one fragment from the run stream.
func (g *streamGate) Feed(chunk string) {
	if g.refused {
		return
	}
	if g.live {
		g.sink(chunk)
		return
	}

	g.buf.WriteString(chunk)
	buffered := g.buf.String()
	if prompts.IsRefusal(buffered, g.markers) {
		g.refused = true
		return
	}
	if len(buffered) >= holdbackLimit {
		g.live = true
		g.sink(buffered)
	}
}

// Live reports whether fragments have already reached the sink. Once text
// is on the visitor's screen the producing phase is final; the policy must
// not layer another phase's answer on top of it.
func (g *streamGate) Live() bool { return g.live }

// Finish flushes a short non-refusal reply that never crossed the holdback
// limit. fullReply is the accumulated run output; a refusal stays suppressed
// so the caller's next phase owns the visible answer.
func (g *streamGate) Finish(fullReply string) {
	if g.live || g.refused {
		return
	}
	if prompts.IsRefusal(fullReply, g.markers) {
		g.refused = true
		return
	}
	if g.buf.Len() > 0 {
		g.live = true
		g.sink(g.buf.String())
	}
}
