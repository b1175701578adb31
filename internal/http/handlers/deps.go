package handlers

import (
	"github.com/jmoiron/sqlx"

	"xandcastle/internal/config"
	"xandcastle/internal/currency"
	"xandcastle/internal/repos"
	"xandcastle/internal/services"
)

type Deps struct {
	InventoryHandler *InventoryHandler
	RestockHandler   *RestockHandler
	CheckoutHandler  *CheckoutHandler
	CurrencyHandler  *CurrencyHandler
	AdminHandler     *AdminHandler

	AdminTokenHash   string
	RestockRateLimit int
}

// NewDeps wires repos and services over db. The catalog, sender and rate collaborators
// are chosen by the caller so tests and the server can swap them.
func NewDeps(db *sqlx.DB, cfg config.Config, catalog services.CatalogSource, sender services.Sender, rates *currency.Service) *Deps {
	prodRepo := repos.NewProductRepo(db)
	restockRepo := repos.NewRestockRepo(db)

	invSvc := services.NewInventoryService(prodRepo, restockRepo, catalog, sender)
	if cfg.CatalogTimeout > 0 {
		invSvc.FetchTimeout = cfg.CatalogTimeout
	}
	if cfg.SyncConcurrency > 0 {
		invSvc.Concurrency = cfg.SyncConcurrency
	}
	restockSvc := services.NewRestockService(prodRepo, restockRepo)
	checkoutSvc := services.NewCheckoutService(invSvc, cfg.StaleAfter)

	return &Deps{
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		RestockHandler:   &RestockHandler{Restock: restockSvc},
		CheckoutHandler:  &CheckoutHandler{Checkout: checkoutSvc},
		CurrencyHandler:  &CurrencyHandler{Currency: rates},
		AdminHandler:     &AdminHandler{Inv: invSvc, Restock: restockSvc},
		AdminTokenHash:   cfg.AdminTokenHash,
		RestockRateLimit: cfg.RestockRateLimit,
	}
}
