package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"xandcastle/internal/domain"
	applog "xandcastle/internal/log"
	"xandcastle/internal/metrics"
	"xandcastle/internal/notify"
	"xandcastle/internal/repos"
)

var ErrProductNotFound = errors.New("product not found")

// CatalogSource is the remote system of record for variant availability.
type CatalogSource interface {
	GetProduct(ctx context.Context, remoteID string) (*domain.RemoteProduct, error)
}

// Sender delivers one restock email.
type Sender interface {
	SendRestock(ctx context.Context, msg notify.RestockMessage) error
}

// InventoryService keeps product snapshots in line with the catalog and turns
// unavailable→available transitions into restock emails. It holds no state of its own.
type InventoryService struct {
	Products *repos.ProductRepo
	Restock  *repos.RestockRepo
	Catalog  CatalogSource
	Sender   Sender

	FetchTimeout time.Duration
	Concurrency  int
	Now          func() time.Time
}

func NewInventoryService(products *repos.ProductRepo, restock *repos.RestockRepo, catalog CatalogSource, sender Sender) *InventoryService {
	return &InventoryService{
		Products:     products,
		Restock:      restock,
		Catalog:      catalog,
		Sender:       sender,
		FetchTimeout: 15 * time.Second,
		Concurrency:  1,
		Now:          time.Now,
	}
}

type SyncResult struct {
	ProductID       string                `json:"productId"`
	Updated         bool                  `json:"updated"`
	VariantsChecked int                   `json:"variantsChecked"`
	RestockDetected []domain.RestockEvent `json:"restockDetected"`
}

type BatchSyncResult struct {
	ProductsChecked     int                   `json:"productsChecked"`
	ProductsUpdated     int                   `json:"productsUpdated"`
	VariantsChecked     int                   `json:"variantsChecked"`
	RestockEvents       []domain.RestockEvent `json:"restockEvents"`
	NotificationsSent   int                   `json:"notificationsSent"`
	NotificationsFailed int                   `json:"notificationsFailed"`
	Errors              []string              `json:"errors"`
}

type NotifyResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (s *InventoryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SyncProduct reconciles one product against the catalog entry remoteID.
// It reports restock events but never sends notifications.
func (s *InventoryService) SyncProduct(ctx context.Context, productID, remoteID string) (SyncResult, error) {
	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return SyncResult{}, fmt.Errorf("load product %s: %w", productID, err)
	}
	res, _, err := s.syncProduct(ctx, p, remoteID)
	return res, err
}

// SyncByID syncs a product against the remote id stored on its record.
func (s *InventoryService) SyncByID(ctx context.Context, productID string) (SyncResult, error) {
	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return SyncResult{}, fmt.Errorf("load product %s: %w", productID, err)
	}
	res, _, err := s.syncProduct(ctx, p, p.PrintifyID)
	return res, err
}

// Snapshot returns the stored product. Its Inventory is nil until the first sync.
func (s *InventoryService) Snapshot(ctx context.Context, productID string) (domain.Product, error) {
	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return p, err
}

// RegisterProduct creates or updates a product's catalog fields. Its snapshot is kept,
// so a changed remote id takes effect on the next sync.
func (s *InventoryService) RegisterProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := s.Products.Upsert(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("register product %s: %w", p.ID, err)
	}
	return s.Products.Get(ctx, p.ID)
}

func (s *InventoryService) syncProduct(ctx context.Context, p domain.Product, remoteID string) (SyncResult, domain.InventorySnapshot, error) {
	fetchCtx := ctx
	if s.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
		defer cancel()
	}
	remote, err := s.Catalog.GetProduct(fetchCtx, remoteID)
	if err != nil {
		metrics.ProductSyncs.WithLabelValues("failed").Inc()
		return SyncResult{}, domain.InventorySnapshot{}, fmt.Errorf("fetch %s: %w", remoteID, err)
	}

	now := s.now().UTC()
	next := BuildSnapshot(p.ID, remote.Variants, now)
	res := SyncResult{
		ProductID:       p.ID,
		VariantsChecked: len(remote.Variants),
		RestockDetected: DetectRestocks(p.Inventory, next, p.Title),
	}

	same, err := sameAvailability(p.Inventory, next)
	if err != nil {
		metrics.ProductSyncs.WithLabelValues("failed").Inc()
		return SyncResult{}, domain.InventorySnapshot{}, err
	}
	if same {
		metrics.ProductSyncs.WithLabelValues("unchanged").Inc()
		return res, *p.Inventory, nil
	}
	if err := s.Products.SaveSnapshot(ctx, p.ID, next, now); err != nil {
		metrics.ProductSyncs.WithLabelValues("failed").Inc()
		return SyncResult{}, domain.InventorySnapshot{}, fmt.Errorf("save snapshot %s: %w", p.ID, err)
	}
	res.Updated = true
	metrics.ProductSyncs.WithLabelValues("updated").Inc()
	metrics.RestockEvents.Add(float64(len(res.RestockDetected)))
	return res, next, nil
}

// BuildSnapshot derives a fresh snapshot. Totals are counted from the variant map so
// duplicate ids in the remote list cannot break them.
func BuildSnapshot(productID string, variants []domain.RemoteVariant, at time.Time) domain.InventorySnapshot {
	snap := domain.InventorySnapshot{
		ProductID:    productID,
		Variants:     make(map[int]domain.VariantInventory, len(variants)),
		LastSyncedAt: at,
	}
	for _, v := range variants {
		snap.Variants[v.ID] = domain.VariantInventory{
			VariantID:   v.ID,
			Title:       v.Title,
			IsAvailable: v.IsAvailable && v.IsEnabled,
			LastChecked: at,
			Quantity:    v.Quantity,
		}
	}
	for _, v := range snap.Variants {
		if v.IsAvailable {
			snap.TotalInStock++
		}
	}
	snap.TotalVariants = len(snap.Variants)
	return snap
}

// DetectRestocks lists variants stored as unavailable that are now available.
// Variants without a stored record, and every variant on a first sync, are never restocks.
func DetectRestocks(prev *domain.InventorySnapshot, next domain.InventorySnapshot, productTitle string) []domain.RestockEvent {
	events := []domain.RestockEvent{}
	if prev == nil {
		return events
	}
	ids := make([]int, 0, len(next.Variants))
	for id := range next.Variants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		cur := next.Variants[id]
		old, ok := prev.Variants[id]
		if ok && !old.IsAvailable && cur.IsAvailable {
			events = append(events, domain.RestockEvent{
				ProductID:    next.ProductID,
				ProductTitle: productTitle,
				VariantID:    id,
				VariantTitle: cur.Title,
			})
		}
	}
	return events
}

// availabilityView is what a snapshot is compared on. Observation times are left out,
// so re-reading unchanged remote data does not rewrite the row.
type availabilityView struct {
	Variants      map[int]variantView `json:"variants"`
	TotalInStock  int                 `json:"totalInStock"`
	TotalVariants int                 `json:"totalVariants"`
}

type variantView struct {
	Title       string `json:"title"`
	IsAvailable bool   `json:"isAvailable"`
	Quantity    *int   `json:"quantity"`
}

func serializeAvailability(snap domain.InventorySnapshot) ([]byte, error) {
	view := availabilityView{
		Variants:      make(map[int]variantView, len(snap.Variants)),
		TotalInStock:  snap.TotalInStock,
		TotalVariants: snap.TotalVariants,
	}
	for id, v := range snap.Variants {
		view.Variants[id] = variantView{Title: v.Title, IsAvailable: v.IsAvailable, Quantity: v.Quantity}
	}
	return json.Marshal(view)
}

func sameAvailability(prev *domain.InventorySnapshot, next domain.InventorySnapshot) (bool, error) {
	if prev == nil {
		return false, nil
	}
	a, err := serializeAvailability(*prev)
	if err != nil {
		return false, fmt.Errorf("serialize stored snapshot: %w", err)
	}
	b, err := serializeAvailability(next)
	if err != nil {
		return false, fmt.Errorf("serialize new snapshot: %w", err)
	}
	return bytes.Equal(a, b), nil
}

// SyncAll syncs every visible product. A failing product is recorded in Errors and the
// rest carry on. Restock emails go out once, after every product has been synced.
func (s *InventoryService) SyncAll(ctx context.Context) (BatchSyncResult, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	out := BatchSyncResult{RestockEvents: []domain.RestockEvent{}, Errors: []string{}}
	products, err := s.Products.ListVisible(ctx)
	if err != nil {
		return out, fmt.Errorf("list products: %w", err)
	}

	results := make([]SyncResult, len(products))
	errs := make([]error, len(products))

	var g errgroup.Group
	g.SetLimit(max(s.Concurrency, 1))
	for i, p := range products {
		i, p := i, p
		g.Go(func() error {
			results[i], _, errs[i] = s.syncProduct(ctx, p, p.PrintifyID)
			// never return the error: one product must not stop its siblings
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range products {
		out.ProductsChecked++
		if errs[i] != nil {
			applog.Error(nil, "inventory.sync.product.fail", errs[i], map[string]any{"product": p.ID})
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", p.ID, errs[i]))
			continue
		}
		if results[i].Updated {
			out.ProductsUpdated++
		}
		out.VariantsChecked += results[i].VariantsChecked
		out.RestockEvents = append(out.RestockEvents, results[i].RestockDetected...)
	}

	nr := s.ProcessRestockNotifications(ctx, out.RestockEvents)
	out.NotificationsSent, out.NotificationsFailed = nr.Sent, nr.Failed

	applog.Info(nil, "inventory.sync.all", map[string]any{
		"checked":  out.ProductsChecked,
		"updated":  out.ProductsUpdated,
		"variants": out.VariantsChecked,
		"restocks": len(out.RestockEvents),
		"sent":     out.NotificationsSent,
		"failed":   out.NotificationsFailed,
		"errors":   len(out.Errors),
		"duration": time.Since(start).String(),
	})
	return out, nil
}

// ProcessRestockNotifications emails every pending subscriber of each restocked variant.
// A failed send is logged and left pending; there is no retry.
func (s *InventoryService) ProcessRestockNotifications(ctx context.Context, events []domain.RestockEvent) NotifyResult {
	var res NotifyResult
	for _, ev := range events {
		subs, err := s.Restock.FindPending(ctx, ev.ProductID, ev.VariantID)
		if err != nil {
			applog.Error(nil, "restock.pending.lookup.fail", err, map[string]any{"product": ev.ProductID, "variant": ev.VariantID})
			continue
		}
		for _, sub := range subs {
			msg := notify.RestockMessage{
				Email:        sub.Email,
				ProductTitle: ev.ProductTitle,
				VariantTitle: sub.VariantTitle,
				ProductID:    ev.ProductID,
			}
			if err := s.Sender.SendRestock(ctx, msg); err != nil {
				res.Failed++
				metrics.RestockEmails.WithLabelValues("failed").Inc()
				applog.Error(nil, "notify.send.fail", err, map[string]any{"subscription": sub.ID, "product": ev.ProductID, "variant": ev.VariantID})
				continue
			}
			res.Sent++
			metrics.RestockEmails.WithLabelValues("sent").Inc()
			if err := s.Restock.MarkNotified(ctx, sub.ID, s.now()); err != nil {
				applog.Error(nil, "restock.mark.fail", err, map[string]any{"subscription": sub.ID})
				continue
			}
			applog.Audit(nil, "restock.notified", map[string]any{"subscription": sub.ID, "product": ev.ProductID, "variant": ev.VariantID})
		}
	}
	return res
}

// IsVariantInStock reads the stored snapshot, syncing the product first when it has none.
// Any error comes back with false; callers must not treat it as available.
func (s *InventoryService) IsVariantInStock(ctx context.Context, productID string, variantID int) (bool, error) {
	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return false, err
	}
	snap := p.Inventory
	if snap == nil {
		_, fresh, err := s.syncProduct(ctx, p, p.PrintifyID)
		if err != nil {
			return false, err
		}
		snap = &fresh
	}
	v, ok := snap.Variants[variantID]
	return ok && v.IsAvailable, nil
}

type ProductSummary struct {
	ProductID       string             `json:"productId"`
	Title           string             `json:"title"`
	Status          domain.StockStatus `json:"status,omitempty"`
	TotalInStock    int                `json:"totalInStock"`
	TotalVariants   int                `json:"totalVariants"`
	LastSyncedAt    *time.Time         `json:"lastSyncedAt"`
	PendingRestocks int                `json:"pendingRestocks"`
}

type InventorySummary struct {
	TotalProducts int              `json:"totalProducts"`
	InStock       int              `json:"inStock"`
	LowStock      int              `json:"lowStock"`
	OutOfStock    int              `json:"outOfStock"`
	NeverSynced   int              `json:"neverSynced"`
	Products      []ProductSummary `json:"products"`
}

// Summary aggregates stored snapshots; it never calls the catalog.
func (s *InventoryService) Summary(ctx context.Context) (InventorySummary, error) {
	products, err := s.Products.ListVisible(ctx)
	if err != nil {
		return InventorySummary{}, err
	}
	counts, err := s.Restock.CountPendingGroupedByVariant(ctx)
	if err != nil {
		return InventorySummary{}, err
	}
	pending := map[string]int{}
	for _, c := range counts {
		pending[c.ProductID] += c.Pending
	}

	out := InventorySummary{TotalProducts: len(products), Products: make([]ProductSummary, 0, len(products))}
	for _, p := range products {
		ps := ProductSummary{ProductID: p.ID, Title: p.Title, LastSyncedAt: p.LastSyncedAt, PendingRestocks: pending[p.ID]}
		if p.Inventory == nil || p.LastSyncedAt == nil {
			out.NeverSynced++
			out.Products = append(out.Products, ps)
			continue
		}
		ps.TotalInStock, ps.TotalVariants = p.Inventory.TotalInStock, p.Inventory.TotalVariants
		ps.Status = p.Inventory.Status()
		switch ps.Status {
		case domain.InStock:
			out.InStock++
		case domain.LowStock:
			out.LowStock++
		default:
			out.OutOfStock++
		}
		out.Products = append(out.Products, ps)
	}

	slices.SortStableFunc(out.Products, func(a, b ProductSummary) int {
		switch {
		case a.LastSyncedAt == nil && b.LastSyncedAt == nil:
			return 0
		case a.LastSyncedAt == nil:
			return 1
		case b.LastSyncedAt == nil:
			return -1
		}
		return b.LastSyncedAt.Compare(*a.LastSyncedAt)
	})
	return out, nil
}
