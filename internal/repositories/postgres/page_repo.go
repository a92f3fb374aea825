package postgres

import (
	"context"
	"time"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PageRepo interface {
	// Upsert keys on the globally unique url; a recrawl refreshes content
	// and clears nothing else.
	Upsert(ctx context.Context, page *models.IndexedPage) error
	// ListEmbedded returns pages that have a vector; the resolver never
	// reads anything else.
	ListEmbedded(ctx context.Context) ([]models.IndexedPage, error)
	// ListUnembedded returns pages awaiting the batch embedder. With all
	// set, every page is returned for full regeneration.
	ListUnembedded(ctx context.Context, all bool) ([]models.IndexedPage, error)
	SetEmbedding(ctx context.Context, pageID string, vec pgvector.Vector) error
}

type pageRepo struct {
	db *gorm.DB
}

func NewPageRepo(db *gorm.DB) PageRepo {
	return &pageRepo{db: db}
}

func (r *pageRepo) Upsert(ctx context.Context, page *models.IndexedPage) error {
	page.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"trusted_site_id", "title", "content", "last_crawled_at", "updated_at"}),
		}).
		Create(page).Error
}

func (r *pageRepo) ListEmbedded(ctx context.Context) ([]models.IndexedPage, error) {
	var rows []models.IndexedPage
	err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Find(&rows).Error
	return rows, err
}

func (r *pageRepo) ListUnembedded(ctx context.Context, all bool) ([]models.IndexedPage, error) {
	q := r.db.WithContext(ctx)
	if !all {
		q = q.Where("embedding IS NULL")
	}
	var rows []models.IndexedPage
	err := q.Find(&rows).Error
	return rows, err
}

func (r *pageRepo) SetEmbedding(ctx context.Context, pageID string, vec pgvector.Vector) error {
	return r.db.WithContext(ctx).
		Model(&models.IndexedPage{}).
		Where("id = ?", pageID).
		Update("embedding", vec).Error
}
