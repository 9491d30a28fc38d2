// Package cli assembles the armlab services from configuration and hosts the
// terminal wizard used by the play command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/armtemiy/armlab"
	"github.com/armtemiy/armlab/internal/config"
	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/internal/metrics"
	"github.com/armtemiy/armlab/pkg/adapters/gormstore"
	apihttp "github.com/armtemiy/armlab/pkg/adapters/http"
	"github.com/armtemiy/armlab/pkg/adapters/memory"
	"github.com/armtemiy/armlab/pkg/adapters/redis"
	"github.com/armtemiy/armlab/pkg/adapters/telegram"
	"github.com/armtemiy/armlab/pkg/catalog"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/payment"
	"github.com/armtemiy/armlab/pkg/persistence/middleware"
	"github.com/armtemiy/armlab/pkg/ports"
	"github.com/armtemiy/armlab/pkg/schema"
	"github.com/armtemiy/armlab/pkg/session"
	tele "gopkg.in/telebot.v3"
)

// errPaymentsDisabled is returned by the invoice gateway when no bot token is configured.
var errPaymentsDisabled = errors.New("payments are not configured: telegram.bot_token is empty")

// redisTreeKey holds the tree override when sessions live in redis and no SQL database is configured.
const redisTreeKey = "armlab:tree:override"

type disabledGateway struct{}

func (disabledGateway) CreateInvoice(context.Context, domain.InvoiceRequest) (string, error) {
	return "", errPaymentsDisabled
}

// App is the wired application.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Payments *payment.Service
	Streams  *apihttp.StreamManager
	Results  ports.ResultStore

	// Validator and PaymentBot are nil without a bot token.
	Validator  *telegram.Validator
	PaymentBot *telegram.PaymentBot

	closers []io.Closer
}

// BuildOption adjusts Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithAppLogger overrides the logger derived from config.
func WithAppLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = logger }
}

// Build wires stores, catalog, sessions, payments and the bot from cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	logger := bo.logger
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg.Log.Format, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
	app.Streams = apihttp.NewStreamManager(logger.With("component", "sse"))

	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	// Durable records: sqlite when a DSN is set, memory otherwise.
	var (
		results   ports.ResultStore
		purchases ports.PurchaseStore
		trees     ports.TreeStore
	)
	if cfg.SQL.DSN != "" {
		db, err := gormstore.Open(cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		results, purchases, trees = db, db, db
	} else {
		logger.Warn("sql.dsn is empty, results and purchases are kept in memory")
		results, purchases, trees = memory.NewResultStore(), memory.NewPurchaseStore(), memory.NewTreeStore()
	}

	// Sessions.
	var (
		states      ports.StateStore
		sessionOpts []session.Option
	)
	switch cfg.Storage.Driver {
	case "redis":
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis unavailable at %s: %w", cfg.Redis.Addr, err)
		}
		app.closers = append(app.closers, store)
		states = store
		sessionOpts = append(sessionOpts,
			session.WithLocker(redis.NewLocker(store.Client(), cfg.Redis.Prefix+"lock:")),
			session.WithLockTTL(cfg.Redis.LockTTL),
		)
		if cfg.SQL.DSN == "" {
			trees = redis.NewTreeStore(store.Client(), redisTreeKey)
		}
	default:
		states = memory.NewStore()
	}
	if cfg.Storage.EncryptionKey != "" {
		seal, err := sealer(cfg.Storage)
		if err != nil {
			return nil, err
		}
		states = middleware.Chain(states, seal)
	}

	// Tree catalog.
	catalogOpts := []catalog.Option{
		catalog.WithLogger(logger.With("component", "catalog")),
		catalog.WithChangeHook(app.Metrics.TreeChanged),
	}
	if cfg.Tree.File != "" {
		tree, err := schema.DecodeFile(cfg.Tree.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load tree %s: %w", cfg.Tree.File, err)
		}
		if err := schema.CheckShape(tree); err != nil {
			return nil, fmt.Errorf("invalid tree %s: %w", cfg.Tree.File, err)
		}
		catalogOpts = append(catalogOpts, catalog.WithDefault(tree))
	}
	app.Catalog = catalog.New(trees, catalogOpts...)
	if _, err := app.Catalog.Load(ctx); err != nil {
		return nil, err
	}

	hooks := metrics.Chain(
		app.Metrics.Hooks(logger.With("component", "engine")),
		domain.LifecycleHooks{OnPersist: app.Streams.PersistHook},
	)
	sessionOpts = append(sessionOpts,
		session.WithLogger(logger.With("component", "session")),
		session.WithLifecycleHooks(hooks),
		session.WithStrictOptions(cfg.Tree.Strict),
	)
	app.Results = results
	app.Sessions = session.NewManager(states, app.Catalog, results, sessionOpts...)

	// Payments and Telegram.
	var (
		gateway ports.PaymentGateway = disabledGateway{}
		bot     *tele.Bot
	)
	if cfg.Telegram.BotToken != "" {
		var err error
		bot, err = telegram.NewBot(telegram.BotOptions{
			Token:       cfg.Telegram.BotToken,
			URL:         cfg.Telegram.APIURL,
			Poll:        cfg.Telegram.Poll,
			PollTimeout: cfg.Telegram.PollTimeout,
			Logger:      logger.With("component", "bot"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}
		gateway = telegram.NewGateway(bot, cfg.Telegram.ProviderToken)
		app.Validator = telegram.NewValidator(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)
	} else {
		logger.Warn("telegram.bot_token is empty, launch parameters cannot be verified and invoices are disabled")
	}

	app.Payments = payment.NewService(gateway, purchases,
		payment.WithItem(cfg.Stars.ItemSlug, cfg.Stars.Price),
		payment.WithInvoiceTimeout(cfg.Payment.InvoiceTimeout),
		payment.WithClaimTTL(cfg.Payment.ClaimTTL),
		payment.WithAdmins(cfg.AdminIDs...),
		payment.WithLogger(logger.With("component", "payment")),
		payment.WithInvoiceHook(app.Metrics.InvoiceOutcome),
	)
	if bot != nil && cfg.Telegram.Poll {
		app.PaymentBot = telegram.NewPaymentBot(bot, app.Payments,
			telegram.WithBotLogger(logger.With("component", "bot")),
			telegram.WithPaidHook(app.Metrics.PaymentConfirmed),
		)
	}

	ok = true
	return app, nil
}

// Handler builds the HTTP API over the wired services.
func (a *App) Handler() http.Handler {
	opts := []apihttp.Option{
		apihttp.WithPayments(a.Payments),
		apihttp.WithStreams(a.Streams),
		apihttp.WithMetricsHandler(a.Metrics.Handler()),
		apihttp.WithLogger(a.Logger.With("component", "http")),
		apihttp.WithAnonymous(a.Config.HTTP.AllowAnonymous),
		apihttp.WithVersion(armlab.Version),
	}
	if a.Validator != nil {
		opts = append(opts, apihttp.WithAuthenticator(a.Validator))
	}
	return apihttp.NewHandler(a.Sessions, a.Catalog, opts...)
}

func sealer(cfg config.StorageConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("storage.encryption_key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("storage.fallback_keys[%d]: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

// Close waits for in-flight result saves, then releases stores.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
