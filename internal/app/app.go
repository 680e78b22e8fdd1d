package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moviebot/internal/bot"
	"moviebot/internal/config"
	"moviebot/internal/session"
	"moviebot/internal/storage"
	"moviebot/internal/storage/ch"
	"moviebot/internal/storage/pg"
	"moviebot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config      *config.Config
	logger      *zap.Logger
	db          storage.Storage
	sessions    session.Store
	closeStore  func() error
	redemptions storage.RedemptionLog
	bot         *bot.Bot
	server      *http.Server
}

// New creates and initializes a new application instance
func New(ctx context.Context) (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if envErr != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting movie bot",
		zap.String("environment", cfg.Environment),
		zap.Int("admins", len(cfg.AdminIDs)),
		zap.Int("channels", len(cfg.Channels)),
	)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initSessions(ctx); err != nil {
		return nil, err
	}

	if err := app.initRedemptionLog(ctx); err != nil {
		return nil, err
	}

	if err := app.initBot(); err != nil {
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	return zapConfig.Build()
}

// initDatabase opens the catalog store and applies migrations
func (a *App) initDatabase(ctx context.Context) error {
	var db storage.Storage
	if a.config.UseMockDB {
		a.logger.Warn("Using mock database, data will not survive a restart")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Connecting to PostgreSQL",
			zap.String("host", a.config.Database.Host),
			zap.String("database", a.config.Database.Name),
			zap.Bool("url_override", a.config.Database.URL != ""),
		)
		pgDB, err := pg.NewPostgresDB(ctx, a.config.Database.DSN(), a.config.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		db = pgDB
	}

	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initSessions selects where conversation state lives
func (a *App) initSessions(ctx context.Context) error {
	cfg := a.config.Session

	switch cfg.Backend {
	case "redis":
		client, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.sessions = session.NewRedisStore(client, cfg.TTL)
		a.closeStore = client.Close
		a.logger.Info("Using Redis session store", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
	default:
		store := session.NewMemoryStore(cfg.TTL)
		sweepCtx, stopSweeper := context.WithCancel(context.Background())
		go store.RunSweeper(sweepCtx, cfg.TTL)

		a.sessions = store
		a.closeStore = func() error {
			stopSweeper()
			return nil
		}
		a.logger.Info("Using in-memory session store", zap.Duration("ttl", cfg.TTL))
	}

	return nil
}

// initRedemptionLog connects the ClickHouse analytics log when enabled
func (a *App) initRedemptionLog(ctx context.Context) error {
	cfg := a.config.ClickHouse
	if !cfg.Enabled {
		a.redemptions = storage.NopRedemptionLog{}
		return nil
	}

	a.logger.Info("Connecting to ClickHouse",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Bool("tls", cfg.UseTLS),
	)
	chLog, err := ch.NewClickHouseDB(cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.UseTLS)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := chLog.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize redemption log: %w", err)
	}

	a.redemptions = chLog
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.db, a.sessions, a.redemptions, bot.Options{
		AdminIDs:       a.config.AdminIDs,
		Channels:       a.config.Channels,
		BroadcastRate:  a.config.Broadcast.Rate,
		BroadcastBurst: a.config.Broadcast.Burst,
		Approval: bot.ApprovalPolicy{
			Retries: a.config.JoinApprove.Retries,
			Backoff: a.config.JoinApprove.Backoff,
		},
		Workers:     a.config.Workers,
		WorkerQueue: a.config.WorkerQueue,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks, metrics and webhook
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "Movie bot is running (mode: %s)", mode)
	})

	mux.Handle("/metrics", promhttp.Handler())

	// Webhook endpoint (only used in webhook mode)
	mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Queued so Telegram gets its answer right away
		a.bot.Submit(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the bot and blocks until ctx is done or a signal arrives
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.config.WebhookMode {
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		go func() {
			if err := a.bot.Start(); err != nil {
				a.logger.Error("Polling stopped", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	defer func() { _ = a.logger.Sync() }()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Let queued updates finish before the stores go away
	a.bot.Stop()

	var errs []error
	if err := a.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close session store: %w", err))
	}
	if err := a.redemptions.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redemption log: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Shutdown finished with errors", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
