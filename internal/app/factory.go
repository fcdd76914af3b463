package app

import (
	"context"
	"database/sql"
	"fmt"

	intconfig "freight-backend/internal/config"
	"freight-backend/internal/cache"
	intdb "freight-backend/internal/db"
	"freight-backend/internal/events"
	"freight-backend/internal/http/handlers"
	"freight-backend/internal/paystack"
	"freight-backend/internal/repositories"
	"freight-backend/internal/services"
	"freight-backend/internal/utils"

	"github.com/redis/go-redis/v9"
)

// Factory builds the long-lived dependencies once and hands out services
// wired to them. Shared by the API server and freightctl.
type Factory struct {
	env       intconfig.Env
	db        *sql.DB
	redisCli  *redis.Client
	publisher events.Publisher
	gateway   *paystack.Client
}

func NewFactory(env intconfig.Env) *Factory {
	return &Factory{env: env}
}

func (f *Factory) Env() intconfig.Env { return f.env }

func (f *Factory) DB() (*sql.DB, error) {
	if f.db != nil {
		return f.db, nil
	}
	db, err := intconfig.ConnectDB(f.env.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init mysql: %w", err)
	}
	f.db = db
	return db, nil
}

// Migrate creates missing ledger tables.
func (f *Factory) Migrate(ctx context.Context) ([]string, error) {
	db, err := f.DB()
	if err != nil {
		return nil, err
	}
	created, err := intdb.EnsureSchema(ctx, db)
	if err != nil {
		return created, err
	}
	for _, t := range created {
		utils.LogEvent("", "db", "migrate", "created table "+t)
	}
	return created, nil
}

// Redis stays nil when REDIS_ADDR is unset; webhook dedupe then relies on
// the idempotent ledger transitions alone.
func (f *Factory) Redis(ctx context.Context) (*redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}
	client, err := intconfig.NewRedis(ctx, f.env)
	if err != nil {
		return nil, err
	}
	f.redisCli = client
	return client, nil
}

func (f *Factory) Publisher() events.Publisher {
	if f.publisher == nil {
		f.publisher = events.New(f.env.KafkaBrokers, f.env.KafkaTopic)
	}
	return f.publisher
}

func (f *Factory) Gateway() *paystack.Client {
	if f.gateway == nil {
		f.gateway = paystack.NewClient(f.env.PaystackSecretKey, f.env.PaystackBaseURL, f.env.PaystackTimeout)
		if !f.gateway.Configured() {
			utils.LogWarn("", "paystack", "init", "PAYSTACK_SECRET_KEY belum dikonfigurasi, gateway routes will answer 500")
		}
	}
	return f.gateway
}

// Services groups the wired service layer.
type Services struct {
	Ledger      services.LedgerService
	Reconcile   services.ReconciliationService
	Compensator services.CompensatorService
	Docs        services.DocsService
	Sweeper     services.HoldSweeper
}

func (f *Factory) Services(ctx context.Context) (Services, error) {
	db, err := f.DB()
	if err != nil {
		return Services{}, err
	}
	rdb, err := f.Redis(ctx)
	if err != nil {
		utils.LogError("", "redis", "init", "continuing without webhook dedupe", err)
		rdb = nil
	}

	store := repositories.NewMySQLStore(db)
	pub := f.Publisher()
	gw := f.Gateway()

	comp := services.CompensatorService{Store: store, Events: pub}
	recon := services.ReconciliationService{
		Store:         store,
		Gateway:       gw,
		Events:        pub,
		Dedupe:        cache.NewDeduper(rdb),
		Compensator:   comp,
		WebhookSecret: f.env.PaystackSecretKey,
	}
	return Services{
		Ledger: services.LedgerService{
			Store:       store,
			Gateway:     gw,
			Events:      pub,
			Compensator: comp,
			CallbackURL: f.env.CallbackURL(),
		},
		Reconcile:   recon,
		Compensator: comp,
		Docs:        services.DocsService{Store: store},
		Sweeper: services.HoldSweeper{
			Store:     store,
			Reconcile: recon,
			TTL:       f.env.HoldTTL,
			Interval:  f.env.SweepInterval,
		},
	}, nil
}

// Handlers builds the HTTP handler set on top of Services.
func (s Services) Handlers(env intconfig.Env) (handlers.PaystackHandler, handlers.BookingHandler) {
	return handlers.PaystackHandler{Reconcile: s.Reconcile, CallbackURL: env.CallbackURL()},
		handlers.BookingHandler{Ledger: s.Ledger, Compensator: s.Compensator, Docs: s.Docs}
}

// System builds the handler behind /api/health, /api/db-check and /api/routes.
func (s Services) System() handlers.SystemHandler {
	return handlers.SystemHandler{Gateway: s.Reconcile.Gateway}
}

func (f *Factory) Close() {
	if f.publisher != nil {
		if err := f.publisher.Close(); err != nil {
			utils.LogError("", "events", "close", "publisher close failed", err)
		}
	}
	if f.redisCli != nil {
		_ = f.redisCli.Close()
	}
	if f.db != nil {
		intconfig.CloseDB()
	}
}
