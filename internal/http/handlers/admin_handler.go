package handlers

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "xandcastle/internal/log"
	"xandcastle/internal/domain"
	"xandcastle/internal/services"
	"xandcastle/internal/validate"
)

type AdminHandler struct {
	Inv     *services.InventoryService
	Restock *services.RestockService
}

// POST /admin/inventory/sync
func (h *AdminHandler) SyncAll(c *fiber.Ctx) error {
	res, err := h.Inv.SyncAll(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.sync.fail", err, nil)
		return err
	}
	applog.Audit(c, "admin.inventory.sync", map[string]any{
		"checked": res.ProductsChecked, "updated": res.ProductsUpdated, "errors": len(res.Errors),
	})
	return c.JSON(res)
}

// POST /admin/inventory/sync/:productId
func (h *AdminHandler) SyncOne(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Params("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	res, err := h.Inv.SyncByID(c.UserContext(), productID)
	if errors.Is(err, services.ErrProductNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	if err != nil {
		applog.Error(c, "admin.inventory.sync.product.fail", err, map[string]any{"product": productID})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "catalog sync failed"})
	}
	nr := h.Inv.ProcessRestockNotifications(c.UserContext(), res.RestockDetected)
	applog.Audit(c, "admin.inventory.sync.product", map[string]any{
		"product": productID, "updated": res.Updated, "restocks": len(res.RestockDetected), "sent": nr.Sent,
	})
	return c.JSON(fiber.Map{"sync": res, "notifications": nr})
}

// GET /admin/inventory/summary
func (h *AdminHandler) Summary(c *fiber.Ctx) error {
	s, err := h.Inv.Summary(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.summary.fail", err, nil)
		return err
	}
	return c.JSON(s)
}

// GET /admin/restock/pending
func (h *AdminHandler) Pending(c *fiber.Ctx) error {
	rows, err := h.Restock.PendingCounts(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.restock.pending.fail", err, nil)
		return err
	}
	return c.JSON(fiber.Map{"pending": rows})
}

type productRequest struct {
	PrintifyID string  `json:"printifyId"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Visible    *bool   `json:"visible"`
}

// PUT /admin/products/:productId
func (h *AdminHandler) PutProduct(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Params("productId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	remoteID, ok := validate.ID(req.PrintifyID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid printify id"})
	}
	title, ok := validate.Title(req.Title)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid title"})
	}
	if req.Price < 0 || req.Price > 1e6 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid price"})
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	p, err := h.Inv.RegisterProduct(c.UserContext(), domain.Product{
		ID: productID, PrintifyID: remoteID, Title: title, Price: req.Price, Visible: visible,
	})
	if err != nil {
		applog.Error(c, "admin.product.put.fail", err, map[string]any{"product": productID})
		return err
	}
	applog.Audit(c, "admin.product.put", map[string]any{"product": productID, "printify": remoteID, "visible": visible})
	return c.JSON(p)
}

// GET /admin/restock/:id
func (h *AdminHandler) Subscription(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid subscription id"})
	}
	n, err := h.Restock.Get(c.UserContext(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "subscription not found"})
	}
	if err != nil {
		applog.Error(c, "admin.restock.get.fail", err, map[string]any{"id": id})
		return err
	}
	return c.JSON(n)
}
