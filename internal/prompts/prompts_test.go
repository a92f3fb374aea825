package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNative(t *testing.T) {
	out, err := Render(KindNative, Params{})
	require.NoError(t, err)

	assert.Contains(t, out, "Andgrow's Expert Assistant")
	// The default refusal sentence is substituted when none is given.
	assert.Contains(t, out, RefusalSentence)
	assert.NotContains(t, out, "{{")
}

func TestRenderRAG(t *testing.T) {
	out, err := Render(KindRAG, Params{
		Context:  "Context from semantically similar pages:\n--- Page: pricing",
		Question: "كم السعر؟",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "--- Page: pricing")
	assert.Contains(t, out, `"كم السعر؟"`)
	assert.Contains(t, out, RefusalSentence)
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(Kind("bogus"), Params{})
	require.Error(t, err)

	var uk *UnknownKindError
	require.ErrorAs(t, err, &uk)
	assert.Equal(t, Kind("bogus"), uk.Kind)
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal(RefusalSentence, nil))
	assert.True(t, IsRefusal("عذراً، هذا السؤال خارج نطاق خبرتي.", nil))
	assert.True(t, IsRefusal("لا توجد معلومات عن هذا الموضوع", nil))

	assert.False(t, IsRefusal("سعر الباقة يبدأ من ١٠٠ ريال شهرياً.", nil))
	assert.False(t, IsRefusal("", nil))
}

func TestIsRefusalCustomMarkers(t *testing.T) {
	markers := []string{"cannot help with that"}

	assert.True(t, IsRefusal("I cannot help with that request.", markers))
	// Custom markers replace the defaults entirely.
	assert.False(t, IsRefusal(RefusalSentence, markers))
}

func TestIsSimpleQuery(t *testing.T) {
	assert.True(t, IsSimpleQuery("hi"))
	assert.True(t, IsSimpleQuery("  Hello there  "))
	assert.True(t, IsSimpleQuery("السلام عليكم"))
	assert.True(t, IsSimpleQuery("mar7aba"))

	assert.False(t, IsSimpleQuery(""))
	assert.False(t, IsSimpleQuery("كيف أسترجع كلمة المرور؟"))
	assert.False(t, IsSimpleQuery("what does the premium plan include"))
}
