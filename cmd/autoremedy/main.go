package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/autoremedy/autoremedy/internal/config"
	"github.com/autoremedy/autoremedy/internal/database"
	"github.com/autoremedy/autoremedy/internal/handlers"
	"github.com/autoremedy/autoremedy/internal/jobs"
	"github.com/autoremedy/autoremedy/internal/middleware"
	"github.com/autoremedy/autoremedy/internal/notify"
	"github.com/autoremedy/autoremedy/internal/remediation"
	"github.com/autoremedy/autoremedy/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting auto-remediation backend...")

	// Initialize JWT authentication middleware
	if cfg.AuthEnabled && cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	passwordHash := ""
	if cfg.AdminPassword != "" {
		passwordHash, err = middleware.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           cfg.AuthEnabled,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/webhook/*",
			"/auth/login",
		},
	})
	if cfg.AuthEnabled {
		log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)
	} else {
		log.Printf("JWT authentication is DISABLED")
	}

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Seed the default alert rules (existing rows are left untouched)
	if err := database.SeedDefaultAlertRules(db); err != nil {
		log.Fatalf("Failed to seed alert rules: %v", err)
	}

	// Slack notifier (nil when no bot token is configured)
	notifier := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, cfg.SlackApprovalChannel)
	if notifier != nil {
		log.Printf("Slack notifications enabled (alerts: %s, approvals: %s)", cfg.SlackAlertChannel, cfg.SlackApprovalChannel)
	} else {
		log.Printf("Slack notifications DISABLED (no SLACK_BOT_TOKEN)")
	}

	// Core services
	auditService := services.NewAuditService(db)
	errorService := services.NewErrorService(db)

	var approvalNotifier services.ApprovalNotifier
	var alertNotifier services.AlertNotifier
	if notifier != nil {
		approvalNotifier = notifier
		alertNotifier = notifier
	}
	approvalService := services.NewApprovalService(db, approvalNotifier, auditService)
	monitoringService := services.NewMonitoringService(db, alertNotifier)

	// Optional operator-managed alert rules file
	if cfg.AlertRulesFile != "" {
		if err := monitoringService.LoadRulesFromFile(cfg.AlertRulesFile); err != nil {
			log.Printf("Warning: Failed to load alert rules from %s: %v", cfg.AlertRulesFile, err)
		} else {
			log.Printf("Loaded alert rules from %s", cfg.AlertRulesFile)
		}
	}

	// Remediation pipeline collaborators. An absent analyzer falls back to
	// canned analyses; an absent VCS client fails the PR stage.
	var analyzer remediation.Analyzer
	if a := remediation.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel); a != nil {
		analyzer = a
	}
	var vcs remediation.VCSClient
	if c := remediation.NewGitHubClient(cfg.GitHubToken); c != nil {
		vcs = c
	}
	runner := remediation.NewExecRunner(cfg.TestTimeout)

	agent := remediation.NewAgent(errorService, analyzer, vcs, runner, remediation.AgentConfig{
		Owner:      cfg.GitHubOwner,
		Repo:       cfg.GitHubRepo,
		BaseBranch: cfg.GitHubBaseBranch,
		RepoPath:   cfg.RepoWorkDir,
	})

	// Websocket event hub for the UI
	eventHub := handlers.NewEventHub()

	// Handlers
	httpHandler := handlers.NewHTTPHandler()
	apiHandler := handlers.NewAPIHandler(errorService, approvalService, monitoringService, auditService, agent, eventHub)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)
	errorWebhook := handlers.NewErrorWebhookHandler(errorService, notifier, eventHub)
	githubWebhook := handlers.NewGitHubWebhookHandler(db, errorService, cfg.GitHubWebhookSecret)
	slackWebhook := handlers.NewSlackWebhookHandler(approvalService, cfg.SlackSigningSecret)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	apiHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)
	errorWebhook.SetupRoutes(mux)
	githubWebhook.SetupRoutes(mux)
	slackWebhook.SetupRoutes(mux)
	eventHub.SetupRoutes(mux)

	// CORS first, then request IDs, then JWT authentication
	cors := middleware.CORSMiddleware([]string{"*"}) // Allow all origins
	handler := cors(middleware.RequestIDMiddleware(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Background loops
	stopMonitor := make(chan struct{})
	go monitoringService.Start(cfg.MonitorInterval, stopMonitor)

	stopSweep := make(chan struct{})
	expiryMonitor := jobs.NewApprovalExpiryMonitor(approvalService)
	go expiryMonitor.Start(cfg.ApprovalSweepInterval, stopSweep)

	log.Println("Auto-remediation backend is running! Press Ctrl+C to exit.")
	log.Printf("Error report endpoint: http://localhost:%d/webhook/errors", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	close(stopMonitor)
	close(stopSweep)
	eventHub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
