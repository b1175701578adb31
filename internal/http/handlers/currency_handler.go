package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"xandcastle/internal/currency"
	applog "xandcastle/internal/log"
	"xandcastle/internal/validate"
)

type CurrencyHandler struct {
	Currency *currency.Service
}

// GET /api/v1/currency/convert?amount=&to=
func (h *CurrencyHandler) Convert(c *fiber.Ctx) error {
	amount, okA := validate.Amount(c.Query("amount"))
	to, okC := validate.Currency(c.Query("to"))
	if !okA || !okC {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enter a valid amount and currency"})
	}
	converted, err := h.Currency.Convert(c.UserContext(), amount, to)
	switch {
	case errors.Is(err, currency.ErrUnsupportedCurrency):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported currency", "supported": currency.Codes()})
	case err != nil:
		applog.Error(c, "currency.convert.fail", err, map[string]any{"to": to})
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "exchange rates unavailable, retry soon"})
	}
	return c.JSON(fiber.Map{
		"amount":    amount.String(),
		"base":      currency.Base,
		"currency":  to,
		"converted": converted.String(),
		"formatted": currency.Format(converted, to),
	})
}

// GET /api/v1/currency/rates
func (h *CurrencyHandler) Rates(c *fiber.Ctx) error {
	rates, err := h.Currency.Rates(c.UserContext())
	if err != nil {
		applog.Error(c, "currency.rates.fail", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "exchange rates unavailable, retry soon"})
	}
	return c.JSON(rates)
}
