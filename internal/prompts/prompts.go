// Package prompts holds the assistant instruction templates and the refusal
// heuristics. Templates are data, keyed by Kind, so instruction variants can
// be swapped without touching the resolver.
package prompts

import (
	"strings"
	"text/template"
)

type Kind string

const (
	// KindNative instructs the assistant to answer from its own attached
	// knowledge via file_search.
	KindNative Kind = "native"
	// KindRAG restricts the assistant strictly to supplied website context.
	KindRAG Kind = "rag"
)

// RefusalSentence is the exact phrase the templates require when no answer
// or inference is possible. Detection matches substrings, not this full
// sentence, because models paraphrase.
const RefusalSentence = "هذا السؤال خارج نطاق خبرتي."

// DefaultRefusalMarkers are the known "I don't know" fragments. This is a
// heuristic, not a classifier; operators can extend the list via
// configuration when the model drifts to new phrasings.
var DefaultRefusalMarkers = []string{
	"خارج نطاق خبرتي",
	"لا أستطيع توفير تفاصيل",
	"لا توجد معلومات",
	"لم أجد أي معلومات",
}

const nativeText = `**Your Persona:** You are "Andgrow's Expert Assistant". You are an internal expert with complete and direct knowledge of all company information. Your tone is confident, helpful, and professional. Respond in Arabic.
**Core Directives:**
1. **Synthesize, Do Not Report:** Your primary function is to synthesize information from your knowledge base (the provided files) and present it as your own expertise.
2. **Absolute Prohibition:** Under no circumstances should you ever mention or allude to files, documents, your knowledge base, or the fact that you are searching for information. You are the source of the information.
3. **Answer Hierarchy:**
   * **Priority 1 (Direct Answer):** If you find a direct answer in your knowledge base, provide it as a confident fact.
   * **Priority 2 (Inference):** If the information doesn't exist but you can make a logical inference based on related content, present it as such. Start with "بناءً على مبادئنا، يمكننا استنتاج أن..." or similar phrasing.
   * **Priority 3 (Fallback):** If the information is completely absent and no logical inference can be made, you MUST respond with the exact phrase: "{{.RefusalSentence}}" Do not say anything else.`

const ragText = `**Your Persona:** You are "Andgrow's Expert Assistant". Your tone is confident, helpful, and professional. Respond in Arabic.
**Core Directive:** Your primary function is to synthesize information from the context provided below and present it as your own expertise. Answer the user's question based *only* on this context.
**Absolute Prohibition:**
- DO NOT mention files, documents, or "the context provided".
- DO NOT use the source URLs or similarity scores in your response.
- If the context does not contain the answer, you MUST respond with the exact phrase: "{{.RefusalSentence}}"
**--- CONTEXT FROM WEBSITE ---**
{{.Context}}
**--- END OF CONTEXT ---**
**User's Question:** "{{.Question}}"
Based *only* on the context above, provide a direct answer to the user's question.`

// Params feeds template rendering. Context and Question are only read by
// KindRAG.
type Params struct {
	RefusalSentence string
	Context         string
	Question        string
}

var registry = map[Kind]*template.Template{
	KindNative: template.Must(template.New(string(KindNative)).Parse(nativeText)),
	KindRAG:    template.Must(template.New(string(KindRAG)).Parse(ragText)),
}

// Render produces the instruction block for one resolution attempt.
func Render(kind Kind, p Params) (string, error) {
	if p.RefusalSentence == "" {
		p.RefusalSentence = RefusalSentence
	}
	t, ok := registry[kind]
	if !ok {
		return "", &UnknownKindError{Kind: kind}
	}
	var b strings.Builder
	if err := t.Execute(&b, p); err != nil {
		return "", err
	}
	return b.String(), nil
}

type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "unknown prompt kind: " + string(e.Kind)
}

// IsRefusal reports whether reply reads as an "I don't know" answer.
func IsRefusal(reply string, markers []string) bool {
	if len(markers) == 0 {
		markers = DefaultRefusalMarkers
	}
	for _, m := range markers {
		if m != "" && strings.Contains(reply, m) {
			return true
		}
	}
	return false
}
