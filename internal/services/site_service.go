package services

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/utils"
	"github.com/google/uuid"
)

type SiteService interface {
	Create(ctx context.Context, name, rawURL string) (*models.TrustedSite, error)
	List(ctx context.Context) ([]models.TrustedSite, error)
	SetActive(ctx context.Context, id string, active bool) (*models.TrustedSite, error)
	Delete(ctx context.Context, id string) error
}

type siteService struct {
	sites pgrepo.SiteRepo
}

func NewSiteService(sites pgrepo.SiteRepo) SiteService {
	return &siteService{sites: sites}
}

func (s *siteService) Create(ctx context.Context, name, rawURL string) (*models.TrustedSite, error) {
	const op = "SiteService.Create"

	if name == "" || rawURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "name and url are required", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "url must be absolute http(s)", err)
	}

	now := time.Now().UTC()
	site := &models.TrustedSite{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       rawURL,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create site", err)
	}
	return site, nil
}

func (s *siteService) List(ctx context.Context) ([]models.TrustedSite, error) {
	const op = "SiteService.List"

	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sites", err)
	}
	return sites, nil
}

func (s *siteService) SetActive(ctx context.Context, id string, active bool) (*models.TrustedSite, error) {
	const op = "SiteService.SetActive"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "site id is required", nil)
	}
	if err := s.sites.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "site not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update site", err)
	}
	return s.sites.GetByID(ctx, id)
}

func (s *siteService) Delete(ctx context.Context, id string) error {
	const op = "SiteService.Delete"

	if id == "" {
		return utils.E(utils.CodeInvalidArgument, op, "site id is required", nil)
	}
	if err := s.sites.Delete(ctx, id); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "site not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete site", err)
	}
	return nil
}
