package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ritual_notification_bot/internal/app"
	"ritual_notification_bot/internal/infra/config"
	idb "ritual_notification_bot/internal/infra/database"
	"ritual_notification_bot/internal/infra/httpapi"
	"ritual_notification_bot/internal/infra/inapp"
	"ritual_notification_bot/internal/infra/logger"
	"ritual_notification_bot/internal/infra/scheduler"
	"ritual_notification_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Ritual Notification Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	mainLogger := log.WithField("component", "main")
	mainLogger.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	scheduleRepo := idb.NewPostgresScheduleRepository(db)
	workflowRepo := idb.NewPostgresWorkflowRepository(db)
	activityRepo := idb.NewPostgresActivityRepository(db)
	runStatusRepo := idb.NewPostgresRunStatusRepository(db)
	leaseStore := idb.NewPostgresLeaseStore(db)
	mainLogger.Info("Repositories initialized.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := log.WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}

	// Notification channels
	pushChannel := telegram.NewTelebotAdapter(bot)
	inAppChannel := inapp.NewHTTPChannel(cfg.ChatAPIURL)

	// Application services
	workflowService := app.NewWorkflowService(
		workflowRepo, activityRepo,
		log.WithField("component", "workflow_service"),
		cfg.SnoozeMinutes, nil,
	)
	scheduleService := app.NewScheduleService(scheduleRepo, log.WithField("component", "schedule_service"))
	dispatcher := app.NewDispatcher(
		pushChannel, inAppChannel, activityRepo,
		log.WithField("component", "dispatcher"),
		cfg.SnoozeMinutes,
	)
	runner := app.NewRunner(
		scheduleRepo, workflowRepo, workflowService, dispatcher,
		leaseStore, activityRepo, runStatusRepo,
		log.WithField("component", "runner"),
		cfg.MaxExecution, cfg.DueWindow, nil,
	)
	retention := app.NewRetentionService(
		activityRepo, workflowRepo,
		log.WithField("component", "retention"),
		cfg.RetentionDays, nil,
	)
	mainLogger.Info("Application services initialized.")

	// Scheduler triggers
	workflowScheduler := scheduler.NewWorkflowScheduler(
		runner, retention,
		log.WithField("component", "scheduler"),
		cfg.CronSpecTick, cfg.CronSpecRetention, cfg.MaxExecution,
	)
	workflowScheduler.Start()

	// Register Handlers
	ctx := context.Background()
	telegram.RegisterWorkflowResponseHandlers(ctx, bot, workflowService, log.WithField("component", "telegram"))
	telegram.RegisterBotCommands(ctx, bot, cfg.AdminTelegramID, scheduleService, runner, runStatusRepo, log.WithField("component", "telegram"))
	mainLogger.Info("Telegram handlers registered.")

	// HTTP API
	apiHandler := httpapi.NewHandler(workflowService, scheduleService, runner, runStatusRepo, log.WithField("component", "httpapi"))
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(apiHandler),
	}
	go func() {
		mainLogger.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLogger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	mainLogger.Info("Application setup complete. Bot and Scheduler are starting...")
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	workflowScheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	bot.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
