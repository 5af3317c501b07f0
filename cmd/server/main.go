package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"leadmatch/internal/config"
	"leadmatch/internal/handler"
	"leadmatch/internal/inventory"
	"leadmatch/internal/logging"
	"leadmatch/internal/notify"
	"leadmatch/internal/repository"
	"leadmatch/internal/scheduler"
	"leadmatch/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile, err := logging.Setup(cfg.Logging.File, cfg.Debug())
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	// Print version info
	log.Printf("Lead Match Service")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize lead store
	repo, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to open lead store: %v", err)
	}
	defer repo.Close()

	// Inventory: Drive source, availability filter and snapshot cache
	kw := cfg.Keywords
	inferencer := inventory.NewColumnInferencer(kw.Columns)
	normalizer := inventory.NewNormalizer(kw.Ranges)
	filter := inventory.NewAvailabilityFilter(kw.Availability)

	var source inventory.Source
	drive, err := inventory.NewDriveSource(ctx, cfg.Drive)
	if err != nil {
		log.Printf("⚠️  Google Drive is not authorized, matching will use cached data only: %v", err)
	} else {
		source = drive
		log.Println("✅ Google Drive source initialized")
	}
	if len(cfg.Inventory.Suppliers) == 0 {
		log.Printf("⚠️  No suppliers configured (%s)", cfg.Inventory.SuppliersFile)
	}
	cache := inventory.NewCache(source, cfg.Inventory.Suppliers, filter, cfg.Inventory.TTL)

	ranker := service.NewRanker(cfg.Ranking, normalizer, inferencer)
	matchService := service.NewMatchService(cache, ranker)

	// Language model providers
	chatProviders, transcribers := service.BuildProviders(cfg.LLM)
	llm := service.NewLLMService(cfg.LLM, chatProviders, transcribers)
	if llm.Available() {
		log.Printf("✅ LLM providers: %s", strings.Join(cfg.LLM.Providers, ", "))
		log.Printf("   - Temperature: %.2f", cfg.LLM.Temperature)
		log.Printf("   - MaxTokens: %d", cfg.LLM.MaxTokens)
		log.Printf("   - Rate: %.1f req/s (burst %d)", cfg.LLM.RequestsPerSec, cfg.LLM.Burst)
	} else {
		log.Println("⚠️  No LLM provider configured - clients get the structured questionnaire")
		log.Println("   Set OPENAI_API_KEY or COMPATIBLE_API_KEY to enable free-form dialogue")
	}

	// Agent notifications
	var notifier service.Notifier = notify.LogNotifier{}
	if cfg.Discord.Token != "" {
		discord, err := notify.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.DefaultChannelID)
		if err != nil {
			log.Printf("⚠️  Discord notifications disabled: %v", err)
		} else {
			notifier = discord
			defer discord.Close()
		}
	} else {
		log.Println("⚠️  DISCORD_BOT_TOKEN not set - agent notifications go to the log")
	}

	// Initialize services
	leads := service.NewLeadAssembler(repo, repo, notifier)
	conversation := service.NewConversationService(llm, matchService, leads, kw.Dialogue, cfg.Search)

	log.Println("✅ Services initialized")

	// Background inventory refresh
	sched := scheduler.New(cfg.Inventory.RefreshCron, matchService, cfg.Drive.RequestTimeout*5)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	go sched.RunOnce(ctx)

	// Initialize handlers
	conversationHandler := handler.NewConversationHandler(conversation)
	leadHandler := handler.NewLeadHandler(leads)
	inventoryHandler := handler.NewInventoryHandler(matchService)

	var limiter *handler.ClientRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = handler.NewClientRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.AllowedOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := repo.Ping(c.Request.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    "lead-match",
			"llm":        llm.Available(),
			"inventory":  cache.State(),
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	handler.RegisterRoutes(router.Group("/api/v1"), conversationHandler, leadHandler, inventoryHandler, limiter)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1", cfg.Server.Port)

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown: %v", err)
	}
	cancel()
	sched.Stop()
	leads.Wait()
	log.Println("✅ Server stopped")
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	switch cfg.Database.Backend {
	case "postgres":
		repo, err := repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.Database.MaxConnections,
			cfg.Database.MaxIdleConnections,
		)
		if err != nil {
			return nil, err
		}
		log.Println("✅ Connected to PostgreSQL database")
		return repo, nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." && cfg.Database.SQLitePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		repo, err := repository.NewSQLiteRepository(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ Opened SQLite database %s", cfg.Database.SQLitePath)
		return repo, nil
	}
	return nil, fmt.Errorf("unknown DATABASE_BACKEND %q", cfg.Database.Backend)
}
