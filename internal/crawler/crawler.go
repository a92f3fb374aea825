// Package crawler walks trusted sites and upserts their pages into the
// local index. It is deliberately narrow: same-host pages only, bounded
// page count, polite request delay.
package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// PageLimit caps how many pages one site crawl may index.
	PageLimit int
	// RequestDelay spaces out requests against the target host.
	RequestDelay time.Duration
	UserAgent    string
}

func (c *Config) applyDefaults() {
	if c.PageLimit <= 0 {
		c.PageLimit = 100
	}
	if c.RequestDelay <= 0 {
		c.RequestDelay = 100 * time.Millisecond
	}
	if c.UserAgent == "" {
		c.UserAgent = "andgrow-chatwidget-crawler/1.0"
	}
}

type Crawler struct {
	pages pgrepo.PageRepo
	cfg   Config
	log   *logrus.Logger
}

func New(pages pgrepo.PageRepo, cfg Config, log *logrus.Logger) *Crawler {
	cfg.applyDefaults()
	return &Crawler{pages: pages, cfg: cfg, log: log}
}

// CrawlSite indexes one trusted site and returns how many pages were stored.
func (c *Crawler) CrawlSite(ctx context.Context, site *models.TrustedSite) (int, error) {
	root, err := url.Parse(site.URL)
	if err != nil {
		return 0, err
	}

	slog := c.log.WithFields(logrus.Fields{"site_id": site.ID, "site": site.Name})

	collector := colly.NewCollector(
		colly.AllowedDomains(root.Host, strings.TrimPrefix(root.Host, "www.")),
		colly.UserAgent(c.cfg.UserAgent),
		colly.Async(false),
	)
	_ = collector.Limit(&colly.LimitRule{DomainGlob: "*", Delay: c.cfg.RequestDelay})

	var visited, indexed int64

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil || atomic.AddInt64(&visited, 1) > int64(c.cfg.PageLimit) {
			r.Abort()
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		_ = e.Request.Visit(e.Attr("href"))
	})

	collector.OnResponse(func(r *colly.Response) {
		ct := r.Headers.Get("Content-Type")
		if !strings.Contains(ct, "text/html") {
			return
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			slog.WithError(err).WithField("url", r.Request.URL.String()).Warn("parse failed")
			return
		}

		title, content, ok := Extract(doc)
		if !ok {
			slog.WithField("url", r.Request.URL.String()).Debug("skipped short page")
			return
		}

		page := &models.IndexedPage{
			ID:            uuid.NewString(),
			TrustedSiteID: site.ID,
			URL:           r.Request.URL.String(),
			Title:         title,
			Content:       content,
			LastCrawledAt: time.Now().UTC(),
		}
		if err := c.pages.Upsert(ctx, page); err != nil {
			slog.WithError(err).WithField("url", page.URL).Error("upsert failed")
			return
		}
		atomic.AddInt64(&indexed, 1)
		slog.WithField("url", page.URL).Info("indexed page")
	})

	collector.OnError(func(r *colly.Response, err error) {
		slog.WithError(err).WithField("url", r.Request.URL.String()).Warn("crawl request failed")
	})

	if err := collector.Visit(site.URL); err != nil {
		return int(atomic.LoadInt64(&indexed)), err
	}
	collector.Wait()
	return int(atomic.LoadInt64(&indexed)), nil
}
