package services

import (
	"context"

	"github.com/andgrowhq/chatwidget/internal/providers/openai"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
)

// IndexingService is the batch collaborator that fills in missing page
// embeddings. The resolver never calls it; it runs from the embedder binary.
type IndexingService interface {
	// EmbedPages vectorizes pages lacking an embedding (all pages with
	// fresh set) and reports how many succeeded and failed. Per-page
	// provider failures are logged and skipped, not fatal.
	EmbedPages(ctx context.Context, fresh bool) (processed, failed int, err error)
}

type indexingService struct {
	pages    pgrepo.PageRepo
	embedder openai.Embedder
	log      *logrus.Logger
}

func NewIndexingService(pages pgrepo.PageRepo, embedder openai.Embedder, log *logrus.Logger) IndexingService {
	return &indexingService{pages: pages, embedder: embedder, log: log}
}

func (s *indexingService) EmbedPages(ctx context.Context, fresh bool) (int, int, error) {
	const op = "IndexingService.EmbedPages"

	rows, err := s.pages.ListUnembedded(ctx, fresh)
	if err != nil {
		return 0, 0, utils.E(utils.CodeInternal, op, "failed to list pages", err)
	}

	var processed, failed int
	for _, page := range rows {
		if ctx.Err() != nil {
			return processed, failed, ctx.Err()
		}

		vec, err := s.embedder.Embed(ctx, page.Content)
		if err != nil {
			failed++
			s.log.WithError(err).WithField("page_id", page.ID).Warn("embedding failed for page")
			continue
		}
		if err := s.pages.SetEmbedding(ctx, page.ID, pgvector.NewVector(vec)); err != nil {
			failed++
			s.log.WithError(err).WithField("page_id", page.ID).Warn("saving embedding failed")
			continue
		}
		processed++
	}

	s.log.WithFields(logrus.Fields{
		"processed": processed,
		"failed":    failed,
		"fresh":     fresh,
	}).Info("embedding batch finished")
	return processed, failed, nil
}
