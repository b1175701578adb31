package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "xandcastle/internal/log"
	"xandcastle/internal/services"
	"xandcastle/internal/validate"
)

const maxCartLines = 50

type CheckoutHandler struct {
	Checkout *services.CheckoutService
}

type stockCheckRequest struct {
	Items []services.CartLine `json:"items"`
}

// POST /api/v1/checkout/stock-check
func (h *CheckoutHandler) StockCheck(c *fiber.Ctx) error {
	var req stockCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Items) == 0 || len(req.Items) > maxCartLines {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart must have between 1 and 50 items"})
	}
	for i, it := range req.Items {
		id, ok := validate.ID(it.ProductID)
		if !ok || it.VariantID < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product or variant id"})
		}
		n, ok := validate.LineQty(it.Quantity)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity must be between 1 and 1000"})
		}
		req.Items[i].ProductID = id
		req.Items[i].Quantity = n
	}

	res := h.Checkout.CheckCart(c.UserContext(), req.Items)
	if !res.OK {
		applog.Info(c, "checkout.stock.rejected", map[string]any{"lines": len(req.Items), "unavailable": len(res.Unavailable)})
	}
	return c.JSON(res)
}
