package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/cassany-backend/database"
	"github.com/Ananth-NQI/cassany-backend/internal/catalog"
	"github.com/Ananth-NQI/cassany-backend/internal/config"
	"github.com/Ananth-NQI/cassany-backend/internal/handlers"
	"github.com/Ananth-NQI/cassany-backend/internal/jobs"
	"github.com/Ananth-NQI/cassany-backend/internal/logger"
	"github.com/Ananth-NQI/cassany-backend/internal/routes"
	"github.com/Ananth-NQI/cassany-backend/internal/services"
	"github.com/Ananth-NQI/cassany-backend/internal/storage"
)

const version = "1.0.0"

const (
	notifierWorkers = 4
	notifierQueue   = 64
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cassany-backend",
		Short:        "CASSANY WhatsApp shopping assistant",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})

	var down bool
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(down)
		},
	}
	migrateCmd.Flags().BoolVar(&down, "down", false, "roll back the latest migration instead")
	root.AddCommand(migrateCmd)
	return root
}

func bootstrap() (*config.Config, *zap.Logger, zap.AtomicLevel, error) {
	envLoaded := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zap.AtomicLevel{}, err
	}
	log, atom, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, nil, zap.AtomicLevel{}, err
	}
	if !envLoaded {
		log.Debug("No .env file found, using process environment")
	}
	return cfg, log, atom, nil
}

func migrate(down bool) error {
	cfg, log, _, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	if down {
		return database.Rollback(db, log)
	}
	return database.Migrate(db, log)
}

func serve() error {
	cfg, log, atom, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	// Initialize storage
	var store storage.SessionStore
	var db handlers.Pinger
	if cfg.UseMemoryStore {
		log.Warn("Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		conn, err := database.Connect(cfg, log)
		if err != nil {
			return err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(conn, log); err != nil {
				return err
			}
		}
		gormStore := storage.NewGormStore(conn)
		store, db = gormStore, gormStore
	}

	profile, err := config.LoadStoreProfile()
	if err != nil {
		return err
	}

	// Catalog
	woo := catalog.NewWooClient(cfg.WooBaseURL, cfg.WooConsumerKey, cfg.WooConsumerSecret)
	if !woo.Configured() {
		log.Warn("WooCommerce not configured - catalog searches will report no stock")
	}
	searcher := catalog.NewSearcher(woo, catalog.NewTaxonomy(profile.CategoryIDs, profile.Synonyms), log.Named("catalog"))

	// Messaging channels
	var twilioSender services.MessageSender = services.NewLogSender(log.Named("twilio"))
	if cfg.TwilioConfigured() {
		ts, err := services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, log.Named("twilio"))
		if err != nil {
			return err
		}
		twilioSender = ts
	} else {
		log.Warn("Twilio credentials not found - Twilio replies will only be logged")
	}
	var cloudSender services.MessageSender = services.NewLogSender(log.Named("meta"))
	if cfg.MetaConfigured() {
		cloudSender = services.NewCloudAPISender(cfg.MetaAccessToken, cfg.MetaPhoneNumberID, cfg.MetaGraphVersion, log.Named("meta"))
	}
	alerts := twilioSender
	if !cfg.TwilioConfigured() && cfg.MetaConfigured() {
		alerts = cloudSender
	}

	// Language model collaborators
	var completer services.DialogueCompleter
	var classifier services.IntentClassifier
	if cfg.OpenAIAPIKey != "" {
		oc := services.DefaultOpenAIConfig()
		oc.APIKey = cfg.OpenAIAPIKey
		oc.BaseURL = cfg.OpenAIBaseURL
		oc.Model = cfg.OpenAIModel
		oc.ClassifierModel = cfg.OpenAIClassifierModel
		oc.Timeout = cfg.OpenAITimeout
		oc.MaxRetries = cfg.OpenAIMaxRetries

		c, err := services.NewOpenAICompleter(oc, cfg.PromptFile, log.Named("openai"))
		if err != nil {
			return err
		}
		completer = c
		classifier = services.NewOpenAIIntentClassifier(oc, log.Named("openai"))
	} else {
		log.Warn("OPENAI_API_KEY not set - free-form replies fall back to fixed text")
	}

	opts := services.Options{
		AlertTo:            cfg.AlertWhatsApp,
		BankAccounts:       cfg.BankAccounts,
		PayULink:           cfg.PayULink,
		ConfirmationPrefix: cfg.ConfirmationPrefix,
	}
	notifier := services.NewNotifier(notifierWorkers, notifierQueue, log.Named("notifier"))
	syncer := services.NewHubSpotSyncer(cfg.HubSpotToken, cfg.HubSpotRatePerSec, log.Named("hubspot"))
	finalizer := services.NewFinalizer(store, syncer, alerts, notifier, opts, log.Named("finalizer"))

	assistant := services.NewAssistant(services.Deps{
		Store:      store,
		Sessions:   services.NewSessionManager(store, cfg.SessionTimeout(), log.Named("sessions")),
		Catalog:    searcher,
		Classifier: classifier,
		Completer:  completer,
		Finalizer:  finalizer,
		Notifier:   notifier,
		Alerts:     alerts,
		Profile:    profile,
		Options:    opts,
		Log:        log.Named("assistant"),
	})

	expiry := jobs.NewExpiryJob(store, cfg.SessionTimeout(), cfg.ExpirySweepInterval, log.Named("expiry"))
	expiry.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Cassany Backend v" + version,
		ErrorHandler: routes.ErrorHandler(log),
	})

	// Middleware
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(assistant, store, twilioSender, log.Named("twilio_webhook")),
		Meta:     handlers.NewMetaHandler(assistant, store, cloudSender, cfg.MetaVerifyToken, log.Named("meta_webhook")),
		Messages: handlers.NewMessageHandler(assistant, store, log.Named("api")),
		Admin:    handlers.NewAdminHandler(store, log.Named("admin")),
		Health:   handlers.NewHealthHandler(version, db, log),
		LogLevel: atom,
	}, routes.Security{
		TwilioAuthToken:   cfg.TwilioAuthToken,
		MetaAppSecret:     cfg.MetaAppSecret,
		AdminToken:        cfg.AdminToken,
		DisableValidation: cfg.DisableWebhookValidation,
	}, log)

	// Handle graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("Cassany Backend starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.Bool("memory_store", cfg.UseMemoryStore),
			zap.Bool("twilio", cfg.TwilioConfigured()),
			zap.Bool("meta", cfg.MetaConfigured()),
			zap.Bool("openai", completer != nil))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("Gracefully shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", zap.Error(err))
		}
	}

	expiry.Stop()
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Warn("Server shutdown", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := notifier.Shutdown(ctx); err != nil {
		log.Warn("Notifier did not drain", zap.Error(err))
	}
	log.Info("Shutdown complete")
	return nil
}
