package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "xandcastle/internal/log"
	"xandcastle/internal/services"
	"xandcastle/internal/validate"
)

type RestockHandler struct {
	Restock *services.RestockService
}

type subscribeRequest struct {
	Email        string `json:"email"`
	ProductID    string `json:"productId"`
	VariantID    int    `json:"variantId"`
	VariantTitle string `json:"variantTitle"`
}

// POST /api/v1/restock
func (h *RestockHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	email, okE := validate.Email(req.Email)
	productID, okP := validate.ID(req.ProductID)
	title, okT := validate.Title(req.VariantTitle)
	if !okE || !okP || !okT || req.VariantID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enter a valid email, product and size"})
	}

	n, created, err := h.Restock.Subscribe(c.UserContext(), email, productID, req.VariantID, title)
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	case errors.Is(err, services.ErrVariantInStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "this size is in stock"})
	case err != nil:
		applog.Error(c, "restock.subscribe.fail", err, map[string]any{"product": productID, "variant": req.VariantID})
		return err
	}

	applog.Audit(c, "restock.subscribe", map[string]any{"id": n.ID, "product": productID, "variant": req.VariantID, "created": created})
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"id": n.ID, "created": created, "productId": n.ProductID, "variantId": n.VariantID})
}
