package models

import "time"

// TrustedSite is an operator-approved website whose pages feed the local
// RAG corpus. Deactivating a site stops future crawls; deleting it cascades
// to its indexed pages.
type TrustedSite struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:text" json:"name"`
	URL       string    `gorm:"column:url;type:text" json:"url"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (TrustedSite) TableName() string { return "trusted_sites" }
