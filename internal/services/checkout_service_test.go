package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"xandcastle/internal/domain"
	"xandcastle/internal/services"
)

func qty(n int) *int { return &n }

func TestCheckCart(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "hoodie", "Castle Hoodie")
	f.addProduct(t, "tee", "X Logo Tee")
	f.catalog.set("remote-hoodie", variant(1, true), variant(2, false))
	f.catalog.set("remote-tee", domain.RemoteVariant{ID: 1, Title: "White / M", IsAvailable: true, IsEnabled: true, Quantity: qty(2)})
	f.sync(t, "hoodie")
	f.sync(t, "tee")

	svc := services.NewCheckoutService(f.inv, time.Hour)
	res := svc.CheckCart(context.Background(), []services.CartLine{
		{ProductID: "hoodie", VariantID: 1, Quantity: 1},
		{ProductID: "hoodie", VariantID: 2, Quantity: 1},
		{ProductID: "tee", VariantID: 1, Quantity: 3},
		{ProductID: "ghost", VariantID: 1, Quantity: 1},
	})
	if res.OK {
		t.Fatalf("cart must be rejected")
	}
	want := map[string]string{
		"hoodie/2": services.ReasonOutOfStock,
		"tee/1":    services.ReasonInsufficient,
		"ghost/1":  services.ReasonNotFound,
	}
	if len(res.Unavailable) != len(want) {
		t.Fatalf("want %d unavailable, got %+v", len(want), res.Unavailable)
	}
	for _, u := range res.Unavailable {
		key := fmt.Sprintf("%s/%d", u.ProductID, u.VariantID)
		if want[key] != u.Reason {
			t.Fatalf("%s: want %s, got %s", key, want[key], u.Reason)
		}
	}
	// snapshots are fresh, so nothing was refetched
	if f.catalog.callCount("remote-hoodie") != 1 {
		t.Fatalf("fresh product was resynced")
	}
}

func TestCheckCart_StaleResyncOncePerProduct(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "hoodie", "Castle Hoodie")
	f.catalog.set("remote-hoodie", variant(1, true), variant(2, true))
	f.sync(t, "hoodie")

	f.clock.Advance(2 * time.Hour)
	f.catalog.set("remote-hoodie", variant(1, false), variant(2, true))

	svc := services.NewCheckoutService(f.inv, time.Hour)
	res := svc.CheckCart(context.Background(), []services.CartLine{
		{ProductID: "hoodie", VariantID: 1, Quantity: 1},
		{ProductID: "hoodie", VariantID: 2, Quantity: 1},
	})
	if res.OK || len(res.Unavailable) != 1 || res.Unavailable[0].VariantID != 1 {
		t.Fatalf("stale data must be refreshed, got %+v", res)
	}
	if n := f.catalog.callCount("remote-hoodie"); n != 2 {
		t.Fatalf("want one resync for two lines, got %d fetches", n)
	}
}

func TestCheckCart_ErrorIsNeverAvailable(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "hoodie", "Castle Hoodie")
	f.catalog.failWith("remote-hoodie", errors.New("connection refused"))

	svc := services.NewCheckoutService(f.inv, time.Hour)
	res := svc.CheckCart(context.Background(), []services.CartLine{{ProductID: "hoodie", VariantID: 1, Quantity: 1}})
	if res.OK || len(res.Unavailable) != 1 || res.Unavailable[0].Reason != services.ReasonCheckFailed {
		t.Fatalf("want check_failed, got %+v", res)
	}
}

func TestCheckCart_RestockSeenAtCheckoutIsNotified(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "hoodie", "Castle Hoodie")
	f.catalog.set("remote-hoodie", variant(1, false))
	f.sync(t, "hoodie")
	subscribe(t, f, "jane@example.com", "hoodie", 1)

	f.clock.Advance(2 * time.Hour)
	f.catalog.set("remote-hoodie", variant(1, true))

	svc := services.NewCheckoutService(f.inv, time.Hour)
	res := svc.CheckCart(context.Background(), []services.CartLine{{ProductID: "hoodie", VariantID: 1, Quantity: 1}})
	if !res.OK {
		t.Fatalf("restocked variant must pass, got %+v", res)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].Email != "jane@example.com" {
		t.Fatalf("restock seen at checkout was not notified: %+v", f.sender.sent)
	}
}

func TestCheckCart_QuantityComparedAsRequested(t *testing.T) {
	f := newFixture(t)
	f.addProduct(t, "tee", "X Logo Tee")
	f.catalog.set("remote-tee", domain.RemoteVariant{ID: 1, Title: "White / M", IsAvailable: true, IsEnabled: true, Quantity: qty(60)})
	f.sync(t, "tee")

	svc := services.NewCheckoutService(f.inv, time.Hour)
	res := svc.CheckCart(context.Background(), []services.CartLine{{ProductID: "tee", VariantID: 1, Quantity: 100}})
	if res.OK || len(res.Unavailable) != 1 || res.Unavailable[0].Reason != services.ReasonInsufficient {
		t.Fatalf("100 of 60 must be insufficient, got %+v", res)
	}
	if res = svc.CheckCart(context.Background(), []services.CartLine{{ProductID: "tee", VariantID: 1, Quantity: 60}}); !res.OK {
		t.Fatalf("60 of 60 must pass, got %+v", res)
	}
}
