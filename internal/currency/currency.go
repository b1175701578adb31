// Package currency converts USD prices into the shopper's currency using cached exchange rates.
package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"xandcastle/internal/domain"
	applog "xandcastle/internal/log"
	"xandcastle/internal/metrics"
)

const Base = "USD"

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrRateUnavailable     = errors.New("exchange rate unavailable")
)

type info struct {
	symbol string
	places int32
}

var supported = map[string]info{
	"USD": {"$", 2},
	"GBP": {"£", 2},
	"EUR": {"€", 2},
	"CAD": {"CA$", 2},
	"AUD": {"A$", 2},
	"JPY": {"¥", 0},
}

// Codes lists the supported currencies in display order.
func Codes() []string { return []string{"USD", "GBP", "EUR", "CAD", "AUD", "JPY"} }

// Normalize upper-cases code and reports whether it is supported.
func Normalize(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	_, ok := supported[code]
	return code, ok
}

// Cache stores the last fetched rates. Get returns nil, nil when empty.
type Cache interface {
	Get(ctx context.Context, base string) (*domain.ExchangeRates, error)
	Put(ctx context.Context, rates domain.ExchangeRates) error
}

type Fetcher interface {
	Fetch(ctx context.Context, base string) (domain.ExchangeRates, error)
}

type Service struct {
	Cache   Cache
	Fetcher Fetcher
	TTL     time.Duration
	Now     func() time.Time

	group singleflight.Group
}

func NewService(cache Cache, fetcher Fetcher, ttl time.Duration) *Service {
	return &Service{Cache: cache, Fetcher: fetcher, TTL: ttl, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Rates returns cached rates while they are younger than TTL. When a refresh fails the
// stale copy is served instead.
func (s *Service) Rates(ctx context.Context) (domain.ExchangeRates, error) {
	cached, err := s.Cache.Get(ctx, Base)
	if err != nil {
		applog.Warn(nil, "currency.cache.read.fail", err, nil)
		cached = nil
	}
	if cached != nil && s.now().Sub(cached.FetchedAt) < s.TTL {
		return *cached, nil
	}

	v, err, _ := s.group.Do(Base, func() (any, error) {
		fresh, err := s.Fetcher.Fetch(ctx, Base)
		if err != nil {
			metrics.RateFetches.WithLabelValues("failed").Inc()
			return domain.ExchangeRates{}, err
		}
		metrics.RateFetches.WithLabelValues("ok").Inc()
		if err := s.Cache.Put(ctx, fresh); err != nil {
			applog.Warn(nil, "currency.cache.write.fail", err, nil)
		}
		return fresh, nil
	})
	if err != nil {
		if cached != nil {
			applog.Warn(nil, "currency.rates.stale", err, map[string]any{"fetched_at": cached.FetchedAt})
			return *cached, nil
		}
		return domain.ExchangeRates{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	return v.(domain.ExchangeRates), nil
}

// Convert turns a USD amount into code, rounded half-up to the currency's minor units.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, code string) (decimal.Decimal, error) {
	code, ok := Normalize(code)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	places := supported[code].places
	if code == Base {
		return amount.Round(places), nil
	}
	rates, err := s.Rates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates.Rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, code)
	}
	return amount.Mul(rate).Round(places), nil
}

// Format renders amount with the currency symbol and thousands separators, e.g. $1,234.50.
func Format(amount decimal.Decimal, code string) string {
	code, _ = Normalize(code)
	inf, ok := supported[code]
	if !ok {
		return amount.StringFixed(2) + " " + code
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	s := amount.StringFixed(inf.places)
	whole, frac, _ := strings.Cut(s, ".")
	out := sign + inf.symbol + group(whole)
	if frac != "" {
		out += "." + frac
	}
	return out
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
