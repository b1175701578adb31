package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xandcastle/internal/domain"
)

type RestockRepo struct{ db *sqlx.DB }

func NewRestockRepo(db *sqlx.DB) *RestockRepo { return &RestockRepo{db: db} }

type restockRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	ProductID    string         `db:"product_id"`
	VariantID    int            `db:"variant_id"`
	VariantTitle string         `db:"variant_title"`
	Notified     bool           `db:"notified"`
	NotifiedAt   sql.NullString `db:"notified_at"`
	CreatedAt    string         `db:"created_at"`
}

const restockCols = `id, email, product_id, variant_id, variant_title, notified, notified_at,
  COALESCE(created_at,'') AS created_at`

func (row restockRow) toDomain() domain.RestockNotification {
	n := domain.RestockNotification{
		ID:           row.ID,
		Email:        row.Email,
		ProductID:    row.ProductID,
		VariantID:    row.VariantID,
		VariantTitle: row.VariantTitle,
		Notified:     row.Notified,
		CreatedAt:    row.CreatedAt,
	}
	if row.NotifiedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, row.NotifiedAt.String); err == nil {
			n.NotifiedAt = &t
		}
	}
	return n
}

func toDomainList(rows []restockRow) []domain.RestockNotification {
	out := make([]domain.RestockNotification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

// Create inserts a pending subscription. n.ID must be set by the caller. It reports false
// when the email already has a pending subscription for the variant.
func (r *RestockRepo) Create(ctx context.Context, n domain.RestockNotification) (bool, error) {
	if n.CreatedAt == "" {
		n.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO restock_notifications(id, email, product_id, variant_id, variant_title, notified, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT DO NOTHING
	`), n.ID, n.Email, n.ProductID, n.VariantID, n.VariantTitle, n.CreatedAt)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

func (r *RestockRepo) Get(ctx context.Context, id string) (domain.RestockNotification, error) {
	var row restockRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+restockCols+` FROM restock_notifications WHERE id = ?`), id); err != nil {
		return domain.RestockNotification{}, err
	}
	return row.toDomain(), nil
}

// FindPending lists subscriptions for a variant that have not been notified, oldest first.
func (r *RestockRepo) FindPending(ctx context.Context, productID string, variantID int) ([]domain.RestockNotification, error) {
	var rows []restockRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT `+restockCols+`
		FROM restock_notifications
		WHERE product_id = ? AND variant_id = ? AND notified = 0
		ORDER BY created_at, id
	`), productID, variantID)
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

// FindPendingFor returns nil, nil when the email has no pending subscription for the variant.
func (r *RestockRepo) FindPendingFor(ctx context.Context, email, productID string, variantID int) (*domain.RestockNotification, error) {
	var row restockRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+restockCols+`
		FROM restock_notifications
		WHERE LOWER(email) = LOWER(?) AND product_id = ? AND variant_id = ? AND notified = 0
		LIMIT 1
	`), email, productID, variantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n := row.toDomain()
	return &n, nil
}

// MarkNotified flips notified once. Rows already notified are left as they are.
func (r *RestockRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE restock_notifications
		SET notified = 1, notified_at = ?
		WHERE id = ? AND notified = 0
	`), at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark notified %s: already notified or missing", id)
	}
	return nil
}

// CountPendingGroupedByVariant backs the admin pending view.
func (r *RestockRepo) CountPendingGroupedByVariant(ctx context.Context) ([]domain.PendingCount, error) {
	out := []domain.PendingCount{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT product_id, variant_id, COUNT(*) AS pending
		FROM restock_notifications
		WHERE notified = 0
		GROUP BY product_id, variant_id
		ORDER BY product_id, variant_id
	`)
	return out, err
}
