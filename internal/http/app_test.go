package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"xandcastle/internal/config"
	"xandcastle/internal/currency"
	"xandcastle/internal/domain"
	"xandcastle/internal/http/handlers"
	applog "xandcastle/internal/log"
	"xandcastle/internal/notify"
	"xandcastle/internal/repos"
)

const adminToken = "castle-keys-1"

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.RemoteProduct
	fail     map[string]bool
}

func (s *stubCatalog) set(remoteID string, variants ...domain.RemoteVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[remoteID] = &domain.RemoteProduct{ID: remoteID, Variants: variants}
}

func (s *stubCatalog) GetProduct(_ context.Context, remoteID string) (*domain.RemoteProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[remoteID] {
		return nil, errors.New("printify request failed with status 502")
	}
	p, ok := s.products[remoteID]
	if !ok {
		return nil, errors.New("unknown remote product")
	}
	cp := *p
	return &cp, nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []notify.RestockMessage
}

func (s *stubSender) SendRestock(_ context.Context, msg notify.RestockMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

type stubRates struct{ fail bool }

func (s stubRates) Fetch(_ context.Context, base string) (domain.ExchangeRates, error) {
	if s.fail {
		return domain.ExchangeRates{}, errors.New("rate api down")
	}
	return domain.ExchangeRates{
		Base: base,
		Rates: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(1),
			"GBP": decimal.RequireFromString("0.79"),
			"JPY": decimal.RequireFromString("150"),
		},
		FetchedAt: time.Now().UTC(),
	}, nil
}

type testApp struct {
	app     *fiber.App
	db      *sqlx.DB
	catalog *stubCatalog
	sender  *stubSender
}

func variant(id int, title string, available bool) domain.RemoteVariant {
	return domain.RemoteVariant{ID: id, Title: title, IsAvailable: available, IsEnabled: true}
}

func newTestApp(t *testing.T, opts ...func(*config.Config)) *testApp {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := repos.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	products := repos.NewProductRepo(db)
	for _, p := range []domain.Product{
		{ID: "castle-hoodie", PrintifyID: "remote-hoodie", Title: "Castle Hoodie", Price: 55, Visible: true},
		{ID: "x-logo-tee", PrintifyID: "remote-tee", Title: "X Logo Tee", Price: 28, Visible: true},
	} {
		if err := products.Upsert(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		AdminTokenHash:  string(hash),
		SyncConcurrency: 2,
		StaleAfter:      time.Hour,
		CatalogTimeout:  time.Second,

		RestockRateLimit: 100,
	}
	for _, o := range opts {
		o(&cfg)
	}

	cat := &stubCatalog{products: map[string]*domain.RemoteProduct{}, fail: map[string]bool{}}
	cat.set("remote-hoodie", variant(1, "Black / S", false), variant(2, "Black / M", true))
	cat.set("remote-tee", variant(7, "White / L", true))
	sender := &stubSender{}
	rates := currency.NewService(repos.NewRateRepo(db), stubRates{}, time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	handlers.Register(app, handlers.NewDeps(db, cfg, cat, sender, rates))
	return &testApp{app: app, db: db, catalog: cat, sender: sender}
}

func (a *testApp) do(t *testing.T, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, raw)
		}
	}
	return resp, out
}

func admin() map[string]string { return map[string]string{"X-Admin-Token": adminToken} }

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	ReqID  string         `json:"req_id"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.SetOutput(buf)
	defer applog.SetOutput(os.Stdout)

	fn()
	applog.Sync()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
