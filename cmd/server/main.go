package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnitak.com/support-hub/internal/api"
	"omnitak.com/support-hub/internal/auth"
	"omnitak.com/support-hub/internal/config"
	"omnitak.com/support-hub/internal/core"
	"omnitak.com/support-hub/internal/realtime"
	"omnitak.com/support-hub/internal/store"
)

func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	ingestFile := flag.String("ingest", "", "Load knowledge articles from a YAML file and exit")
	issueToken := flag.Int64("issue-token", 0, "Print a bearer token for the given user id and exit")
	flag.Parse()

	if *issueToken > 0 {
		token, err := auth.GenerateJWT(*issueToken)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	if *ingestFile != "" {
		log.Printf("Starting article ingestion from %s...", *ingestFile)
		n, err := dbStore.IngestArticlesFromFile(context.Background(), *ingestFile)
		if err != nil {
			log.Fatalf("Article ingestion failed: %v", err)
		}
		log.Printf("Article ingestion complete. Ingested %d articles. Exiting.", n)
		return
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Conversation context store
	var contexts core.ContextStore
	switch config.AppConfig.ContextStore {
	case config.ContextStoreRedis:
		redisStore := core.NewRedisContextStore(config.AppConfig.RedisAddr, config.AppConfig.RedisPassword,
			config.AppConfig.RedisDB, config.AppConfig.ContextIdleTTL, config.AppConfig.MaxHistory)
		pingCtx, cancel := context.WithTimeout(appCtx, 10*time.Second)
		err := redisStore.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", config.AppConfig.RedisAddr, err)
		}
		defer redisStore.Close()
		log.Printf("Using redis context store at %s", config.AppConfig.RedisAddr)
		contexts = redisStore
	default:
		memStore := core.NewMemoryContextStore(config.AppConfig.ContextIdleTTL, config.AppConfig.MaxHistory)
		go memStore.Run(appCtx, config.AppConfig.ContextSweepInterval)
		contexts = memStore
	}

	// Optional LLM service for ticket titles
	var titler core.TicketTitler
	if config.AppConfig.GeminiAPIKey != "" {
		llmService, err := core.NewLLMService(appCtx, config.AppConfig.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize LLM service: %v", err)
		}
		defer llmService.Close()
		titler = llmService
	} else {
		log.Println("GEMINI_API_KEY not set, ticket titles will use the escalation reason")
	}

	searcher := core.NewKnowledgeSearcher(dbStore)
	composer := core.NewComposer(searcher, config.AppConfig.SearchLimit,
		core.WithDebugLogging(config.AppConfig.Debug()))
	chatService := core.NewChatService(dbStore, contexts, composer, core.NewTicketDesk(dbStore, titler))

	hub := realtime.NewHub()
	chatService.SetNotifier(hub)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, searcher)
	router := api.NewRouter(apiHandler, realtime.NewWSHandler(hub, chatService))

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections are long lived and set their own write deadlines.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	stopApp()

	log.Println("Server exiting gracefully")
}
