package services

import (
	"os"
	"strconv"
	"strings"

	"github.com/andgrowhq/chatwidget/internal/prompts"
	"github.com/andgrowhq/chatwidget/internal/search"
)

// DefaultApology is the guaranteed last answer: when every source fails the
// visitor gets this instead of a raw error or an empty reply. %s is the
// support contact address.
const defaultApologyFormat = "شكرًا لسؤالك. حاليًا، لا تتوفر لدي معلومات دقيقة حول هذا الموضوع. للحصول على إجابة وافية، يرجى التواصل مع فريق الدعم لدينا عبر البريد الإلكتروني: %s"

const defaultSupportEmail = "support@andgrow.io"

// ResolverConfig carries the tunables of the response resolution policy.
// Everything has a sane default; nothing here is a magic constant buried in
// the decision tree.
type ResolverConfig struct {
	// TopK passages fed into the RAG instruction block.
	TopK int
	// SimilarityThreshold gates the whole local search result on the best
	// candidate's score.
	SimilarityThreshold float64
	// RefusalMarkers classify an assistant reply as "I don't know".
	RefusalMarkers []string
	// Apology is the hardcoded final fallback sentence.
	Apology string
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		TopK:                search.DefaultLimit,
		SimilarityThreshold: search.DefaultThreshold,
		RefusalMarkers:      prompts.DefaultRefusalMarkers,
		Apology:             apologyWithEmail(defaultSupportEmail),
	}
}

// ResolverConfigFromEnv layers environment overrides over the defaults.
func ResolverConfigFromEnv() ResolverConfig {
	cfg := DefaultResolverConfig()

	if v := os.Getenv("SEMANTIC_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TopK = n
		}
	}
	if v := os.Getenv("SEMANTIC_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CHAT_REFUSAL_MARKERS"); v != "" {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.RefusalMarkers = append(cfg.RefusalMarkers, m)
			}
		}
	}
	if v := os.Getenv("SUPPORT_EMAIL"); v != "" {
		cfg.Apology = apologyWithEmail(v)
	}
	return cfg
}

func apologyWithEmail(email string) string {
	return strings.Replace(defaultApologyFormat, "%s", email, 1)
}
