package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/andgrowhq/chatwidget/config"
	"github.com/andgrowhq/chatwidget/db"
	"github.com/andgrowhq/chatwidget/internal/crawler"
	"github.com/andgrowhq/chatwidget/internal/logger"
	"github.com/andgrowhq/chatwidget/internal/models"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
)

func main() {
	siteID := flag.String("site", "", "crawl only this site id (default: all active sites)")
	pageLimit := flag.Int("limit", 0, "max pages per site")
	flag.Parse()

	_ = godotenv.Load()

	l := logger.New("crawler")

	if uri := os.Getenv("POSTGRES_URI"); uri != "" {
		if err := db.Migrate(uri); err != nil {
			log.Fatalf("migration error: %v", err)
		}
	}
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}

	siteRepo := pgrepo.NewSiteRepo(config.PostgresDB)
	pageRepo := pgrepo.NewPageRepo(config.PostgresDB)
	c := crawler.New(pageRepo, crawler.Config{PageLimit: *pageLimit}, l)

	ctx := context.Background()

	var sites []models.TrustedSite
	if *siteID != "" {
		site, err := siteRepo.GetByID(ctx, *siteID)
		if err != nil {
			log.Fatalf("site lookup error: %v", err)
		}
		sites = []models.TrustedSite{*site}
	} else {
		var err error
		sites, err = siteRepo.ListActive(ctx)
		if err != nil {
			log.Fatalf("site list error: %v", err)
		}
	}

	total := 0
	for i := range sites {
		site := &sites[i]
		n, err := c.CrawlSite(ctx, site)
		if err != nil {
			l.WithError(err).WithField("site_id", site.ID).Error("crawl failed")
			continue
		}
		total += n
		l.WithField("site_id", site.ID).WithField("pages", n).Info("site crawled")
	}
	l.Info("crawl finished, pages indexed: " + strconv.Itoa(total))
}
