package product

import (
	"context"
	"strings"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

// Service exposes the variant lookups carts need to capture prices.
type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.ProductVariant, error) {
	return s.repo.List(ctx)
}

// Get looks a variant up by id. A blank id is reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*domain.ProductVariant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}
