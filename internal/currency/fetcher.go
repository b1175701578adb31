package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"xandcastle/internal/domain"
)

// HTTPFetcher reads rates from an open.er-api.com compatible endpoint.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{url: url, httpClient: &http.Client{Timeout: timeout}, now: time.Now}
}

type rateResponse struct {
	Result   string                     `json:"result"`
	BaseCode string                     `json:"base_code"`
	Rates    map[string]decimal.Decimal `json:"rates"`
	ErrType  string                     `json:"error-type"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, base string) (domain.ExchangeRates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return domain.ExchangeRates{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeRates{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.ExchangeRates{}, fmt.Errorf("rate request failed with status %d", resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ExchangeRates{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Result != "success" {
		return domain.ExchangeRates{}, fmt.Errorf("rate api returned %q: %s", body.Result, body.ErrType)
	}
	if body.BaseCode != base {
		return domain.ExchangeRates{}, fmt.Errorf("rate api base %s, want %s", body.BaseCode, base)
	}

	rates := make(map[string]decimal.Decimal, len(supported))
	for code := range supported {
		if r, ok := body.Rates[code]; ok {
			rates[code] = r
		}
	}
	return domain.ExchangeRates{Base: base, Rates: rates, FetchedAt: f.now().UTC()}, nil
}
