// Package catalog fetches product and variant availability from Printify.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"xandcastle/internal/domain"
)

var ErrNotFound = errors.New("catalog: product not found")

// PrintifyClient reads products of one shop.
type PrintifyClient struct {
	baseURL    string
	shopID     string
	token      string
	httpClient *http.Client
}

func NewPrintifyClient(baseURL, shopID, token string, timeout time.Duration) *PrintifyClient {
	return &PrintifyClient{
		baseURL: baseURL,
		shopID:  shopID,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type printifyProduct struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Variants []printifyVariant `json:"variants"`
}

type printifyVariant struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Price       int    `json:"price"` // cents
	IsEnabled   bool   `json:"is_enabled"`
	IsAvailable bool   `json:"is_available"`
	Quantity    *int   `json:"quantity,omitempty"`
}

// GetProduct fetches one product. Any non-200 response is an error.
func (c *PrintifyClient) GetProduct(ctx context.Context, remoteID string) (*domain.RemoteProduct, error) {
	u := fmt.Sprintf("%s/shops/%s/products/%s.json", c.baseURL, url.PathEscape(c.shopID), url.PathEscape(remoteID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, remoteID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("printify request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var p printifyProduct
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &domain.RemoteProduct{ID: p.ID, Title: p.Title, Variants: make([]domain.RemoteVariant, 0, len(p.Variants))}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, domain.RemoteVariant{
			ID:          v.ID,
			Title:       v.Title,
			IsAvailable: v.IsAvailable,
			IsEnabled:   v.IsEnabled,
			Quantity:    v.Quantity,
		})
	}
	return out, nil
}
