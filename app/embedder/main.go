package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/andgrowhq/chatwidget/config"
	"github.com/andgrowhq/chatwidget/db"
	"github.com/andgrowhq/chatwidget/internal/logger"
	"github.com/andgrowhq/chatwidget/internal/providers/openai"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/services"
)

func main() {
	fresh := flag.Bool("fresh", false, "re-embed every page, not only the unembedded ones")
	flag.Parse()

	_ = godotenv.Load()

	l := logger.New("embedder")

	if uri := os.Getenv("POSTGRES_URI"); uri != "" {
		if err := db.Migrate(uri); err != nil {
			log.Fatalf("migration error: %v", err)
		}
	}
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}

	client, err := openai.New(openai.Config{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		AssistantID: os.Getenv("OPENAI_ASSISTANT_ID"),
	}, l)
	if err != nil {
		log.Fatalf("OpenAI init error: %v", err)
	}

	pageRepo := pgrepo.NewPageRepo(config.PostgresDB)
	indexer := services.NewIndexingService(pageRepo, client, l)

	processed, failed, err := indexer.EmbedPages(context.Background(), *fresh)
	if err != nil {
		log.Fatalf("embedding error: %v", err)
	}
	l.WithField("processed", processed).WithField("failed", failed).Info("embedding finished")
}
