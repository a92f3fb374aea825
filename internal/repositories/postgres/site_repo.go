package postgres

import (
	"context"
	"errors"

	"github.com/andgrowhq/chatwidget/internal/models"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"gorm.io/gorm"
)

type SiteRepo interface {
	Create(ctx context.Context, site *models.TrustedSite) error
	GetByID(ctx context.Context, id string) (*models.TrustedSite, error)
	List(ctx context.Context) ([]models.TrustedSite, error)
	ListActive(ctx context.Context) ([]models.TrustedSite, error)
	SetActive(ctx context.Context, id string, active bool) error
	// Delete removes the site; its indexed pages go with it via the FK
	// cascade.
	Delete(ctx context.Context, id string) error
}

type siteRepo struct {
	db *gorm.DB
}

func NewSiteRepo(db *gorm.DB) SiteRepo {
	return &siteRepo{db: db}
}

func (r *siteRepo) Create(ctx context.Context, site *models.TrustedSite) error {
	return r.db.WithContext(ctx).Create(site).Error
}

func (r *siteRepo) GetByID(ctx context.Context, id string) (*models.TrustedSite, error) {
	var site models.TrustedSite
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &site, err
}

func (r *siteRepo) List(ctx context.Context) ([]models.TrustedSite, error) {
	var sites []models.TrustedSite
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepo) ListActive(ctx context.Context) ([]models.TrustedSite, error) {
	var sites []models.TrustedSite
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepo) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.TrustedSite{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *siteRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.TrustedSite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
