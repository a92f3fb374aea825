package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// IndexedPage is a crawled page with whitespace-normalized plain text.
// The embedding stays null until the batch embedder has processed the page;
// the resolver only ever reads rows where it is set.
type IndexedPage struct {
	ID            string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrustedSiteID string           `gorm:"column:trusted_site_id;type:uuid;index" json:"trusted_site_id"`
	URL           string           `gorm:"column:url;type:text;uniqueIndex" json:"url"`
	Title         string           `gorm:"column:title;type:text" json:"title"`
	Content       string           `gorm:"column:content;type:text" json:"content"`
	Embedding     *pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	LastCrawledAt time.Time        `gorm:"column:last_crawled_at;type:timestamptz" json:"last_crawled_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (IndexedPage) TableName() string { return "indexed_pages" }
