package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/andgrowhq/chatwidget/config"
	"github.com/andgrowhq/chatwidget/db"
	"github.com/andgrowhq/chatwidget/internal/api/handlers"
	"github.com/andgrowhq/chatwidget/internal/api/middleware"
	"github.com/andgrowhq/chatwidget/internal/api/routes"
	"github.com/andgrowhq/chatwidget/internal/broadcast"
	"github.com/andgrowhq/chatwidget/internal/cache"
	"github.com/andgrowhq/chatwidget/internal/logger"
	"github.com/andgrowhq/chatwidget/internal/providers/openai"
	pgrepo "github.com/andgrowhq/chatwidget/internal/repositories/postgres"
	"github.com/andgrowhq/chatwidget/internal/services"
	"github.com/andgrowhq/chatwidget/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New("server")

	if uri := os.Getenv("POSTGRES_URI"); uri != "" {
		if err := db.Migrate(uri); err != nil {
			log.Fatalf("migration error: %v", err)
		}
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	l.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	assistant, err := openai.New(openai.Config{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		AssistantID:     os.Getenv("OPENAI_ASSISTANT_ID"),
		VectorStoreID:   os.Getenv("OPENAI_VECTOR_STORE_ID"),
		PollInterval:    envDuration("OPENAI_POLL_INTERVAL", 0),
		MaxPollAttempts: envInt("OPENAI_MAX_POLL_ATTEMPTS", 0),
	}, l)
	if err != nil {
		log.Fatalf("OpenAI init error: %v", err)
	}

	convoRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	msgRepo := pgrepo.NewMessageRepo(config.PostgresDB)
	pageRepo := pgrepo.NewPageRepo(config.PostgresDB)
	siteRepo := pgrepo.NewSiteRepo(config.PostgresDB)

	appCache := cache.NewRedisCache(config.RedisClient)
	bcast := broadcast.NewRedisBroadcaster(config.RedisClient)

	post := services.NewPostprocessor(msgRepo, bcast, appCache, l)
	chatSvc := services.NewChatService(
		convoRepo, msgRepo, pageRepo,
		assistant, assistant,
		post, bcast, appCache,
		services.ResolverConfigFromEnv(), l,
	)
	convoSvc := services.NewConversationService(convoRepo, msgRepo, appCache)
	siteSvc := services.NewSiteService(siteRepo)

	// Async chat jobs land on a Redis stream and are resolved here.
	pool := &workers.ChatWorkerPool{
		Redis:      config.RedisClient,
		Chat:       chatSvc,
		Loader:     services.NewJobLoader(convoRepo, msgRepo),
		NumWorkers: envInt("CHAT_WORKERS", 2),
		Logger:     l,
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if err := pool.Start(workerCtx); err != nil {
		log.Fatalf("worker pool error: %v", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Chat:              handlers.NewChatHandler(chatSvc, config.RedisClient, l),
		Conversation:      handlers.NewConversationHandler(convoSvc),
		Site:              handlers.NewSiteHandler(siteSvc),
		Auth:              handlers.NewAuthHandler(),
		WS:                handlers.NewWSHandler(config.RedisClient),
		ChatRatePerMinute: envInt("CHAT_RATE_PER_MINUTE", 30),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
