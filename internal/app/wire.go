package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/archive"
	s3blob "github.com/Mentallyspammed1/Algobots-sub004/internal/blob/s3"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/cache/redis"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/config"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/notify"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/store/postgres"
)

// Dependencies holds the external infrastructure every mode builds on. Redis
// is always present; the journals and the archiver exist only in full mode,
// so consumers must treat them as optional.
type Dependencies struct {
	Redis        *redis.Client
	Locks        *redis.LockManager
	Bus          *redis.SignalBus
	SignalFanout *redis.SignalPublisher
	Tickers      *redis.TickerPublisher
	Instruments  *redis.InstrumentCache
	Limiter      *redis.RateLimiter

	Postgres  *postgres.Client
	Orders    *postgres.OrderStore
	Fills     *postgres.FillStore
	Signals   *postgres.SignalStore
	Audit     *postgres.AuditStore
	SignalLog *postgres.SignalRecorder

	Blob     *s3blob.Client
	Archiver *archive.Archiver

	Notifier *notify.Notifier

	closers []func()
}

// Wire connects the infrastructure the configured mode needs and returns it
// ready to use. On error everything already connected is torn down.
func Wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Dependencies, error) {
	d := &Dependencies{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	rdb, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect redis: %w", err)
	}
	d.Redis = rdb
	d.closers = append(d.closers, func() { _ = rdb.Close() })

	d.Locks = redis.NewLockManager(rdb)
	d.Bus = redis.NewSignalBus(rdb)
	d.SignalFanout = redis.NewSignalPublisher(d.Bus, logger)
	d.Tickers = redis.NewTickerPublisher(redis.NewTickerCache(rdb), d.Bus, logger)
	d.Instruments = redis.NewInstrumentCache(rdb)
	d.Limiter = redis.NewRateLimiter(rdb)

	// The journals only exist in full mode; trade and monitor run without a
	// database.
	if cfg.Mode == "full" {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("app: connect postgres: %w", err)
		}
		d.Postgres = pg
		d.closers = append(d.closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return nil, fmt.Errorf("app: migrate: %w", err)
			}
		}

		pool := pg.Pool()
		d.Orders = postgres.NewOrderStore(pool)
		d.Fills = postgres.NewFillStore(pool)
		d.Signals = postgres.NewSignalStore(pool)
		d.Audit = postgres.NewAuditStore(pool)
		d.SignalLog = postgres.NewSignalRecorder(d.Signals, logger)
	}

	if cfg.Mode == "full" && cfg.Archive.Enabled {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("app: connect s3: %w", err)
		}
		d.Blob = blob
		d.closers = append(d.closers, func() { _ = blob.Close() })

		uploader := s3blob.NewArchiver(s3blob.NewWriter(blob), s3blob.NewReader(blob), d.Fills, d.Orders, d.Signals, d.Audit)
		d.Archiver = archive.NewArchiver(uploader, d.Fills, d.Orders, d.Signals, cfg.Archive.RetentionDays, logger)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		d.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	ok = true
	return d, nil
}

// Close tears down the wired infrastructure in reverse order. Safe to call
// more than once.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
