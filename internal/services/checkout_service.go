package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"xandcastle/internal/domain"
	applog "xandcastle/internal/log"
	"xandcastle/internal/metrics"
)

type CartLine struct {
	ProductID string `json:"productId"`
	VariantID int    `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// Reasons a cart line can be refused.
const (
	ReasonNotFound     = "product_not_found"
	ReasonCheckFailed  = "check_failed"
	ReasonOutOfStock   = "out_of_stock"
	ReasonInsufficient = "insufficient_quantity"
)

type UnavailableItem struct {
	ProductID string `json:"productId"`
	VariantID int    `json:"variantId"`
	Reason    string `json:"reason"`
}

type CheckoutResult struct {
	OK          bool              `json:"ok"`
	Unavailable []UnavailableItem `json:"unavailable"`
}

type CheckoutService struct {
	Inventory  *InventoryService
	StaleAfter time.Duration
}

func NewCheckoutService(inv *InventoryService, staleAfter time.Duration) *CheckoutService {
	return &CheckoutService{Inventory: inv, StaleAfter: staleAfter}
}

type productCheck struct {
	snap   *domain.InventorySnapshot
	reason string
}

// CheckCart resyncs each stale product once and reports every line that cannot be
// fulfilled. A line whose check errored is never treated as available.
func (s *CheckoutService) CheckCart(ctx context.Context, lines []CartLine) CheckoutResult {
	res := CheckoutResult{Unavailable: []UnavailableItem{}}
	checked := map[string]productCheck{}
	var events []domain.RestockEvent

	for _, line := range lines {
		pc, seen := checked[line.ProductID]
		if !seen {
			var evs []domain.RestockEvent
			pc, evs = s.checkProduct(ctx, line.ProductID)
			checked[line.ProductID] = pc
			events = append(events, evs...)
		}
		if reason := lineReason(pc, line); reason != "" {
			res.Unavailable = append(res.Unavailable, UnavailableItem{ProductID: line.ProductID, VariantID: line.VariantID, Reason: reason})
		}
	}

	if len(events) > 0 {
		s.Inventory.ProcessRestockNotifications(ctx, events)
	}
	metrics.CheckoutRejections.Add(float64(len(res.Unavailable)))
	res.OK = len(res.Unavailable) == 0
	return res
}

func (s *CheckoutService) checkProduct(ctx context.Context, productID string) (productCheck, []domain.RestockEvent) {
	p, err := s.Inventory.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return productCheck{reason: ReasonNotFound}, nil
	}
	if err != nil {
		applog.Error(nil, "checkout.product.load.fail", err, map[string]any{"product": productID})
		return productCheck{reason: ReasonCheckFailed}, nil
	}
	if !s.stale(p) {
		return productCheck{snap: p.Inventory}, nil
	}
	sr, snap, err := s.Inventory.syncProduct(ctx, p, p.PrintifyID)
	if err != nil {
		applog.Warn(nil, "checkout.resync.fail", err, map[string]any{"product": productID})
		return productCheck{reason: ReasonCheckFailed}, nil
	}
	return productCheck{snap: &snap}, sr.RestockDetected
}

func (s *CheckoutService) stale(p domain.Product) bool {
	if p.Inventory == nil || p.LastSyncedAt == nil {
		return true
	}
	return s.Inventory.now().Sub(*p.LastSyncedAt) > s.StaleAfter
}

func lineReason(pc productCheck, line CartLine) string {
	if pc.reason != "" {
		return pc.reason
	}
	v, ok := pc.snap.Variants[line.VariantID]
	if !ok || !v.IsAvailable {
		return ReasonOutOfStock
	}
	if v.Quantity != nil && line.Quantity > *v.Quantity {
		return ReasonInsufficient
	}
	return ""
}
