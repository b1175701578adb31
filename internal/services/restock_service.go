package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"xandcastle/internal/domain"
	"xandcastle/internal/repos"
)

var ErrVariantInStock = errors.New("variant is in stock")

type RestockService struct {
	Products *repos.ProductRepo
	Restock  *repos.RestockRepo
	Now      func() time.Time
}

func NewRestockService(products *repos.ProductRepo, restock *repos.RestockRepo) *RestockService {
	return &RestockService{Products: products, Restock: restock, Now: time.Now}
}

// Subscribe records a "notify me" request. Signing up twice for the same pending variant
// returns the existing row with created == false.
func (s *RestockService) Subscribe(ctx context.Context, email, productID string, variantID int, variantTitle string) (domain.RestockNotification, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := s.Products.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RestockNotification{}, false, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.RestockNotification{}, false, err
	}
	if p.Inventory != nil {
		if v, ok := p.Inventory.Variants[variantID]; ok && v.IsAvailable {
			return domain.RestockNotification{}, false, ErrVariantInStock
		}
	}

	existing, err := s.Restock.FindPendingFor(ctx, email, productID, variantID)
	if err != nil {
		return domain.RestockNotification{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	n := domain.RestockNotification{
		ID:           uuid.NewString(),
		Email:        email,
		ProductID:    productID,
		VariantID:    variantID,
		VariantTitle: variantTitle,
		CreatedAt:    s.Now().UTC().Format(time.RFC3339Nano),
	}
	created, err := s.Restock.Create(ctx, n)
	if err != nil {
		return domain.RestockNotification{}, false, fmt.Errorf("create subscription: %w", err)
	}
	if !created {
		// a concurrent sign-up won the insert
		existing, err := s.Restock.FindPendingFor(ctx, email, productID, variantID)
		if err != nil {
			return domain.RestockNotification{}, false, err
		}
		if existing == nil {
			return domain.RestockNotification{}, false, fmt.Errorf("create subscription: conflicting row for %s/%d vanished", productID, variantID)
		}
		return *existing, false, nil
	}
	return n, true, nil
}

// Get loads one subscription by id.
func (s *RestockService) Get(ctx context.Context, id string) (domain.RestockNotification, error) {
	return s.Restock.Get(ctx, id)
}

func (s *RestockService) PendingCounts(ctx context.Context) ([]domain.PendingCount, error) {
	return s.Restock.CountPendingGroupedByVariant(ctx)
}
