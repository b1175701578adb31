package services_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"xandcastle/internal/domain"
	"xandcastle/internal/services"
)

func subscribe(t *testing.T, f *fixture, email, productID string, variantID int) domain.RestockNotification {
	t.Helper()
	svc := services.NewRestockService(f.products, f.restock)
	n, _, err := svc.Subscribe(context.Background(), email, productID, variantID, variantTitle(variantID))
	if err != nil {
		t.Fatalf("subscribe %s: %v", email, err)
	}
	return n
}

func TestRestockService_Subscribe(t *testing.T) {
	f := newFixture(t)
	svc := services.NewRestockService(f.products, f.restock)
	ctx := context.Background()

	if _, _, err := svc.Subscribe(ctx, "a@example.com", "ghost", 1, "S"); !errors.Is(err, services.ErrProductNotFound) {
		t.Fatalf("want ErrProductNotFound, got %v", err)
	}

	f.addProduct(t, "hoodie", "Castle Hoodie")
	f.catalog.set("remote-hoodie", variant(1, false), variant(2, true))
	f.sync(t, "hoodie")

	if _, _, err := svc.Subscribe(ctx, "a@example.com", "hoodie", 2, "M"); !errors.Is(err, services.ErrVariantInStock) {
		t.Fatalf("want ErrVariantInStock, got %v", err)
	}

	first, created, err := svc.Subscribe(ctx, "Jane@Example.com ", "hoodie", 1, "Black / S")
	if err != nil || !created {
		t.Fatalf("want created, got %v %v", created, err)
	}
	if first.Email != "jane@example.com" || first.Notified {
		t.Fatalf("unexpected row %+v", first)
	}

	again, created, err := svc.Subscribe(ctx, "jane@example.com", "hoodie", 1, "Black / S")
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("want idempotent sign-up, got created=%v id=%s err=%v", created, again.ID, err)
	}

	counts, err := svc.PendingCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Pending != 1 || counts[0].VariantID != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

// the database refuses a second pending row for the same email and variant
func TestRestockRepo_OnePendingPerEmail(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "hoodie", "Castle Hoodie")
	ctx := context.Background()
	row := func(id, email string) domain.RestockNotification {
		return domain.RestockNotification{ID: id, Email: email, ProductID: "hoodie", VariantID: 1, VariantTitle: "Black / S"}
	}

	if created, err := f.restock.Create(ctx, row("n1", "jane@example.com")); err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	if created, err := f.restock.Create(ctx, row("n2", "Jane@Example.com")); err != nil || created {
		t.Fatalf("duplicate pending row: created=%v err=%v", created, err)
	}
	if _, err := f.restock.Get(ctx, "n2"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("duplicate was stored: %v", err)
	}

	if err := f.restock.MarkNotified(ctx, "n1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if created, err := f.restock.Create(ctx, row("n3", "jane@example.com")); err != nil || !created {
		t.Fatalf("new sign-up after notification: created=%v err=%v", created, err)
	}

	svc := services.NewRestockService(f.products, f.restock)
	again, created, err := svc.Subscribe(ctx, "jane@example.com", "hoodie", 1, "Black / S")
	if err != nil || created || again.ID != "n3" {
		t.Fatalf("want existing n3, got created=%v id=%s err=%v", created, again.ID, err)
	}
}
