// Package search ranks indexed pages against a query embedding and shapes
// the winners into a context block for the RAG instruction template.
package search

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/andgrowhq/chatwidget/internal/models"
)

const (
	DefaultLimit = 3

	// DefaultThreshold is the minimum score the best candidate must reach
	// before any context is returned at all. Tunable; there is no single
	// right value, it needs empirical calibration against the corpus.
	DefaultThreshold = 0.65

	// maxSnippetLen bounds how much of a page's content goes into the
	// prompt, per candidate.
	maxSnippetLen = 4000
)

type ScoredPage struct {
	Page  models.IndexedPage
	Score float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Mismatched
// lengths or a zero-norm side score 0 rather than erroring: stored vectors
// come from an external batch job and must never be able to break a request.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// TopK scores every candidate against the query vector and returns the best
// k in descending score order. Pages without an embedding score 0.
func TopK(query []float32, pages []models.IndexedPage, k int) []ScoredPage {
	if k <= 0 {
		k = DefaultLimit
	}

	scored := make([]ScoredPage, 0, len(pages))
	for _, p := range pages {
		var score float64
		if p.Embedding != nil {
			score = Cosine(query, p.Embedding.Slice())
		}
		scored = append(scored, ScoredPage{Page: p, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// Context runs TopK and renders the surviving candidates as a labeled block.
// It returns "" when there are no candidates or the best score is below
// threshold: irrelevant context is worse than none, since the model will
// happily answer from it.
func Context(query []float32, pages []models.IndexedPage, limit int, threshold float64) string {
	top := TopK(query, pages, limit)
	if len(top) == 0 || top[0].Score < threshold {
		return ""
	}

	var b strings.Builder
	b.WriteString("Context from semantically similar pages:\n\n")
	for _, sp := range top {
		fmt.Fprintf(&b, "--- Page: %s (Similarity Score: %.2f)\n%s\n\n", sp.Page.Title, sp.Score, truncate(sp.Page.Content, maxSnippetLen))
	}
	return b.String()
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary so
// the cut never produces invalid UTF-8 mid-character.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
