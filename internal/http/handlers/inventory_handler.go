package handlers

import (
	"errors"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"

	"xandcastle/internal/domain"
	applog "xandcastle/internal/log"
	"xandcastle/internal/services"
	"xandcastle/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

type snapshotView struct {
	ProductID     string                    `json:"productId"`
	Synced        bool                      `json:"synced"`
	Status        domain.StockStatus        `json:"status,omitempty"`
	TotalInStock  int                       `json:"totalInStock"`
	TotalVariants int                       `json:"totalVariants"`
	LastSyncedAt  *time.Time                `json:"lastSyncedAt,omitempty"`
	Variants      []domain.VariantInventory `json:"variants"`
}

// GET /api/v1/inventory/:productId
func (h *InventoryHandler) Snapshot(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Params("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	p, err := h.Inv.Snapshot(c.UserContext(), productID)
	if errors.Is(err, services.ErrProductNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		return err
	}

	view := snapshotView{ProductID: p.ID, Variants: []domain.VariantInventory{}}
	if p.Inventory != nil {
		view.Synced = true
		view.Status = p.Inventory.Status()
		view.TotalInStock, view.TotalVariants = p.Inventory.TotalInStock, p.Inventory.TotalVariants
		view.LastSyncedAt = p.LastSyncedAt
		for _, v := range p.Inventory.Variants {
			view.Variants = append(view.Variants, v)
		}
		slices.SortFunc(view.Variants, func(a, b domain.VariantInventory) int { return a.VariantID - b.VariantID })
	}
	return c.JSON(view)
}

// GET /api/v1/inventory/:productId/variants/:variantId
func (h *InventoryHandler) Variant(c *fiber.Ctx) error {
	productID, okP := validate.ID(c.Params("productId"))
	variantID, okV := validate.VariantID(c.Params("variantId"))
	if !okP || !okV {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product or variant id"})
	}
	in, err := h.Inv.IsVariantInStock(c.UserContext(), productID, variantID)
	if errors.Is(err, services.ErrProductNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		applog.Error(c, "inventory.variant.check.fail", err, map[string]any{"product": productID, "variant": variantID})
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"productId": productID, "variantId": variantID, "inStock": false, "error": "stock check unavailable, retry soon",
		})
	}
	return c.JSON(fiber.Map{"productId": productID, "variantId": variantID, "inStock": in})
}
