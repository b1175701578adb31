package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"xandcastle/internal/domain"
	"xandcastle/internal/notify"
	"xandcastle/internal/repos"
	"xandcastle/internal/services"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if err := repos.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.RemoteProduct
	fail     map[string]error
	calls    map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string]*domain.RemoteProduct{},
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeCatalog) set(remoteID string, variants ...domain.RemoteVariant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[remoteID] = &domain.RemoteProduct{ID: remoteID, Variants: variants}
}

func (f *fakeCatalog) failWith(remoteID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[remoteID] = err
}

func (f *fakeCatalog) callCount(remoteID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[remoteID]
}

func (f *fakeCatalog) GetProduct(_ context.Context, remoteID string) (*domain.RemoteProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[remoteID]++
	if err := f.fail[remoteID]; err != nil {
		return nil, err
	}
	p, ok := f.products[remoteID]
	if !ok {
		return nil, errors.New("no such remote product")
	}
	cp := *p
	cp.Variants = append([]domain.RemoteVariant(nil), p.Variants...)
	return &cp, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []notify.RestockMessage
	fail map[string]bool
}

func (s *fakeSender) SendRestock(_ context.Context, msg notify.RestockMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.Email] {
		return errors.New("smtp: mailbox unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func variant(id int, available bool) domain.RemoteVariant {
	return domain.RemoteVariant{ID: id, Title: variantTitle(id), IsAvailable: available, IsEnabled: true}
}

func variantTitle(id int) string {
	switch id {
	case 1:
		return "Black / S"
	case 2:
		return "Black / M"
	case 3:
		return "Black / L"
	}
	return "Variant"
}

type fixture struct {
	db       *sqlx.DB
	products *repos.ProductRepo
	restock  *repos.RestockRepo
	catalog  *fakeCatalog
	sender   *fakeSender
	inv      *services.InventoryService
	clock    *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memdb(t)
	f := &fixture{
		db:       db,
		products: repos.NewProductRepo(db),
		restock:  repos.NewRestockRepo(db),
		catalog:  newFakeCatalog(),
		sender:   &fakeSender{fail: map[string]bool{}},
		clock:    &clock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.inv = services.NewInventoryService(f.products, f.restock, f.catalog, f.sender)
	f.inv.Now = f.clock.Now
	return f
}

// addProduct stores a visible product whose remote id is "remote-"+id.
func (f *fixture) addProduct(t *testing.T, id, title string) {
	t.Helper()
	err := f.products.Upsert(context.Background(), domain.Product{
		ID: id, PrintifyID: "remote-" + id, Title: title, Price: 35, Visible: true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) sync(t *testing.T, id string) services.SyncResult {
	t.Helper()
	res, err := f.inv.SyncProduct(context.Background(), id, "remote-"+id)
	if err != nil {
		t.Fatalf("sync %s: %v", id, err)
	}
	return res
}

func (f *fixture) product(t *testing.T, id string) domain.Product {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p
}
