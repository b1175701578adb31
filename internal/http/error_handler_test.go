package handlers_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"xandcastle/internal/http/handlers"
)

// friendly error surface, no internal leakage
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())

	app.Get("/err", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "db timeout: secret trace")
	})

	var s string
	entries := captureLogs(t, func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/err", nil))
		if err != nil {
			t.Fatalf("test request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		s = string(body)
	})
	if !strings.Contains(s, "Something went wrong") {
		t.Fatalf("friendly message missing; body=%s", s)
	}
	if strings.Contains(s, "db timeout") || strings.Contains(s, "secret") {
		t.Fatalf("internal details leaked to user; body=%s", s)
	}
	e, ok := findLog(entries, "server.error")
	if !ok || !strings.Contains(e.Err, "db timeout") || e.ReqID == "" {
		t.Fatalf("server.error not logged with cause and request id: %+v", entries)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	a := newTestApp(t)
	resp, body := a.do(t, "GET", "/nope", "", nil)
	if resp.StatusCode != fiber.StatusNotFound || body["error"] != "not found" {
		t.Fatalf("want JSON 404, got %d %v", resp.StatusCode, body)
	}
}
