package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"xandcastle/internal/domain"
)

// RateRepo is the SQL-backed exchange rate cache.
type RateRepo struct{ db *sqlx.DB }

func NewRateRepo(db *sqlx.DB) *RateRepo { return &RateRepo{db: db} }

// Get returns nil, nil when nothing is cached for base.
func (r *RateRepo) Get(ctx context.Context, base string) (*domain.ExchangeRates, error) {
	var row struct {
		Base      string `db:"base"`
		RatesJSON string `db:"rates_json"`
		FetchedAt string `db:"fetched_at"`
	}
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT base, rates_json, fetched_at FROM exchange_rates WHERE base = ?`), base)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rates := map[string]decimal.Decimal{}
	if err := json.Unmarshal([]byte(row.RatesJSON), &rates); err != nil {
		return nil, err
	}
	fetched, err := time.Parse(time.RFC3339Nano, row.FetchedAt)
	if err != nil {
		return nil, err
	}
	return &domain.ExchangeRates{Base: row.Base, Rates: rates, FetchedAt: fetched}, nil
}

func (r *RateRepo) Put(ctx context.Context, rates domain.ExchangeRates) error {
	b, err := json.Marshal(rates.Rates)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO exchange_rates(base, rates_json, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(base) DO UPDATE SET rates_json = excluded.rates_json, fetched_at = excluded.fetched_at
	`), rates.Base, string(b), rates.FetchedAt.UTC().Format(time.RFC3339Nano))
	return err
}
