package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xandcastle/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

type productRow struct {
	ID            string         `db:"id"`
	PrintifyID    string         `db:"printify_id"`
	Title         string         `db:"title"`
	Price         float64        `db:"price"`
	Visible       bool           `db:"visible"`
	InventoryJSON sql.NullString `db:"inventory_json"`
	LastSyncedAt  sql.NullString `db:"last_synced_at"`
	CreatedAt     string         `db:"created_at"`
}

const productCols = `id, printify_id, title, price, visible, inventory_json, last_synced_at,
  COALESCE(created_at,'') AS created_at`

func (row productRow) toDomain() (domain.Product, error) {
	p := domain.Product{
		ID:         row.ID,
		PrintifyID: row.PrintifyID,
		Title:      row.Title,
		Price:      row.Price,
		Visible:    row.Visible,
		CreatedAt:  row.CreatedAt,
	}
	if row.InventoryJSON.Valid && row.InventoryJSON.String != "" {
		var snap domain.InventorySnapshot
		if err := json.Unmarshal([]byte(row.InventoryJSON.String), &snap); err != nil {
			return p, fmt.Errorf("decode inventory for %s: %w", row.ID, err)
		}
		p.Inventory = &snap
	}
	if row.LastSyncedAt.Valid && row.LastSyncedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, row.LastSyncedAt.String)
		if err != nil {
			return p, fmt.Errorf("decode last_synced_at for %s: %w", row.ID, err)
		}
		p.LastSyncedAt = &t
	}
	return p, nil
}

// Get returns sql.ErrNoRows when the product does not exist.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+productCols+` FROM products WHERE id = ?`), id)
	if err != nil {
		return domain.Product{}, err
	}
	return row.toDomain()
}

// ListVisible returns every product shown in the storefront, with its snapshot.
func (r *ProductRepo) ListVisible(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+productCols+` FROM products WHERE visible = 1 ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SaveSnapshot replaces the stored snapshot and sync time in a single statement.
func (r *ProductRepo) SaveSnapshot(ctx context.Context, productID string, snap domain.InventorySnapshot, syncedAt time.Time) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode inventory for %s: %w", productID, err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE products
		SET inventory_json = ?, last_synced_at = ?
		WHERE id = ?
	`), string(b), syncedAt.UTC().Format(time.RFC3339Nano), productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save inventory: product %s: %w", productID, sql.ErrNoRows)
	}
	return nil
}

// Upsert creates or updates the catalog fields of a product. The snapshot is left untouched.
func (r *ProductRepo) Upsert(ctx context.Context, p domain.Product) error {
	visible := 0
	if p.Visible {
		visible = 1
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO products(id, printify_id, title, price, visible)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  printify_id = excluded.printify_id,
		  title = excluded.title,
		  price = excluded.price,
		  visible = excluded.visible
	`), p.ID, p.PrintifyID, p.Title, p.Price, visible)
	return err
}
