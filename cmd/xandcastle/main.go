package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/sync/errgroup"

	"xandcastle/internal/catalog"
	"xandcastle/internal/config"
	"xandcastle/internal/currency"
	"xandcastle/internal/http/handlers"
	applog "xandcastle/internal/log"
	"xandcastle/internal/notify"
	"xandcastle/internal/repos"
	"xandcastle/internal/services"
)

func main() {
	if err := run(); err != nil {
		applog.Error(nil, "server.fatal", err, nil)
		applog.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			applog.Warn(nil, "log.file.open.fail", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
	defer applog.Sync()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	rates, closeRates, err := newRateService(ctx, cfg, repos.NewRateRepo(db))
	if err != nil {
		return err
	}
	defer closeRates()

	printify := catalog.NewPrintifyClient(cfg.PrintifyBaseURL, cfg.PrintifyShopID, cfg.PrintifyToken, cfg.CatalogTimeout)
	deps := handlers.NewDeps(db, cfg, printify, sender, rates)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
	}))

	handlers.Register(app, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.Info(nil, "server.start", map[string]any{"port": cfg.Port})
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done() // signal or listener failure
		applog.Info(nil, "server.shutdown", nil)
		sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			return fmt.Errorf("server failed shutdown gracefully: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	applog.Info(nil, "server.stopped", nil)
	return nil
}

func newSender(cfg config.Config) (services.Sender, error) {
	tmpl, err := notify.NewTemplates(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	if cfg.ResendAPIKey == "" {
		applog.Warn(nil, "notify.dryrun", nil, map[string]any{"reason": "RESEND_API_KEY not set"})
		return notify.NewLogSender(tmpl), nil
	}
	return notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, tmpl), nil
}

// newRateService prefers Redis for the rate cache and falls back to the SQL table.
func newRateService(ctx context.Context, cfg config.Config, sqlCache *repos.RateRepo) (*currency.Service, func(), error) {
	fetcher := currency.NewHTTPFetcher(cfg.ExchangeRateURL, 10*time.Second)
	if cfg.RedisAddr == "" {
		return currency.NewService(sqlCache, fetcher, cfg.ExchangeRateTTL), func() {}, nil
	}
	rc, err := currency.NewRedisCache(ctx, cfg.RedisAddr)
	if err != nil {
		applog.Warn(nil, "currency.redis.unavailable", err, map[string]any{"addr": cfg.RedisAddr})
		return currency.NewService(sqlCache, fetcher, cfg.ExchangeRateTTL), func() {}, nil
	}
	return currency.NewService(rc, fetcher, cfg.ExchangeRateTTL), func() { _ = rc.Close() }, nil
}
