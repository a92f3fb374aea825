package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andgrowhq/chatwidget/internal/prompts"
)

func TestStreamGateGoesLiveAfterHoldback(t *testing.T) {
	var got strings.Builder
	g := newStreamGate(func(s string) { got.WriteString(s) }, nil)

	head := strings.Repeat("a", holdbackLimit-10)
	g.Feed(head)
	assert.False(t, g.Live())
	assert.Empty(t, got.String())

	g.Feed(strings.Repeat("b", 20))
	assert.True(t, g.Live())
	assert.Equal(t, head+strings.Repeat("b", 20), got.String())

	// once live, fragments pass straight through
	g.Feed("c")
	assert.Equal(t, head+strings.Repeat("b", 20)+"c", got.String())
}

func TestStreamGateSuppressesRefusal(t *testing.T) {
	var got strings.Builder
	g := newStreamGate(func(s string) { got.WriteString(s) }, nil)

	g.Feed("عذراً، هذا السؤال ")
	g.Feed("خارج نطاق خبرتي.")
	g.Finish("عذراً، هذا السؤال خارج نطاق خبرتي.")

	assert.False(t, g.Live())
	assert.Empty(t, got.String())
}

func TestStreamGateFlushesShortAnswer(t *testing.T) {
	var got strings.Builder
	g := newStreamGate(func(s string) { got.WriteString(s) }, nil)

	g.Feed("نعم، ")
	g.Feed("نقدم هذه الخدمة.")
	assert.False(t, g.Live())

	g.Finish("نعم، نقدم هذه الخدمة.")
	assert.True(t, g.Live())
	assert.Equal(t, "نعم، نقدم هذه الخدمة.", got.String())
}

func TestStreamGateFinishCatchesLateRefusal(t *testing.T) {
	var got strings.Builder
	g := newStreamGate(func(s string) { got.WriteString(s) }, []string{"cannot answer"})

	g.Feed("I ")
	g.Finish("I cannot answer that.")

	assert.False(t, g.Live())
	assert.Empty(t, got.String())

	// default markers still apply when none are configured
	assert.True(t, prompts.IsRefusal(prompts.RefusalSentence, nil))
}
