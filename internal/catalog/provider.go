// Package catalog supplies categories and playable tracks to game sessions.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"songquiz/internal/domain"
)

// MixedCategory is the catch-all category searched with general queries
const MixedCategory = domain.DefaultCategory

// MinPopularity filters out tracks too obscure to make a fair question
const MinPopularity = 30

// Provider is the catalog collaborator used by sessions
type Provider interface {
	// Categories lists the categories a host can choose from
	Categories(ctx context.Context) ([]domain.Category, error)

	// Items returns up to count items for a category. It may return fewer.
	Items(ctx context.Context, categoryID string, count int) ([]domain.CatalogItem, error)
}

// Names of the supported providers
const (
	ProviderSpotify = "spotify"
	ProviderStatic  = "static"
)

// FindCategory looks up a category by id
func FindCategory(categories []domain.Category, id string) (domain.Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return domain.Category{}, false
}

// ValidateCategory returns an error wrapping domain.ErrInvalidConfig when id is
// not one of the provider's categories.
func ValidateCategory(ctx context.Context, p Provider, id string) error {
	categories, err := p.Categories(ctx)
	if err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}
	if _, ok := FindCategory(categories, id); !ok {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidConfig, id)
	}
	return nil
}
