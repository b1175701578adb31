package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	applog "xandcastle/internal/log"
	"xandcastle/internal/metrics"
)

// ErrorHandler logs the cause and answers with a friendly JSON message. Internals never leak.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
		return c.Status(code).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
	}
	return c.Status(code).JSON(fiber.Map{"error": fe.Message})
}

// Register mounts every route on app.
func Register(app *fiber.App, d *Deps) {
	api := app.Group("/api/v1")

	checkLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|stock"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.stock.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/inventory/:productId", d.InventoryHandler.Snapshot)
	api.Get("/inventory/:productId/variants/:variantId", checkLimiter, d.InventoryHandler.Variant)

	api.Post("/restock", limiter.New(limiter.Config{
		Max:        max(d.RestockRateLimit, 1),
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.restock.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many sign-ups, try again later"})
		},
	}), d.RestockHandler.Subscribe)
	api.Post("/checkout/stock-check", checkLimiter, d.CheckoutHandler.StockCheck)

	api.Get("/currency/convert", d.CurrencyHandler.Convert)
	api.Get("/currency/rates", d.CurrencyHandler.Rates)

	admin := app.Group("/admin", RequireAdmin(d.AdminTokenHash))
	admin.Post("/inventory/sync", d.AdminHandler.SyncAll)
	admin.Post("/inventory/sync/:productId", d.AdminHandler.SyncOne)
	admin.Get("/inventory/summary", d.AdminHandler.Summary)
	admin.Get("/restock/pending", d.AdminHandler.Pending)
	admin.Get("/restock/:id", d.AdminHandler.Subscription)
	admin.Put("/products/:productId", d.AdminHandler.PutProduct)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})
}
