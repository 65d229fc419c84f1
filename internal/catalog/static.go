package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"songquiz/internal/domain"
)

// Static serves categories and items from a YAML document. It is used for
// offline play and local development.
type Static struct {
	categories []domain.Category
	items      map[string][]domain.CatalogItem
}

type staticFile struct {
	Categories []domain.Category               `yaml:"categories"`
	Items      map[string][]domain.CatalogItem `yaml:"items"`
}

// LoadStatic reads a static catalog from path
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read static catalog: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic parses a static catalog document
func ParseStatic(data []byte) (*Static, error) {
	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse static catalog: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("static catalog has no items")
	}

	s := &Static{
		categories: f.Categories,
		items:      f.Items,
	}

	if _, ok := FindCategory(s.categories, MixedCategory); !ok {
		s.categories = append([]domain.Category{{ID: MixedCategory, Name: "Mixed"}}, s.categories...)
	}
	for id := range f.Items {
		if _, ok := FindCategory(s.categories, id); !ok {
			s.categories = append(s.categories, domain.Category{ID: id, Name: id})
		}
	}
	return s, nil
}

// Categories returns the configured categories
func (s *Static) Categories(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

// Items returns a random sample of up to count items. The mixed category draws
// from every category unless it has items of its own.
func (s *Static) Items(ctx context.Context, categoryID string, count int) ([]domain.CatalogItem, error) {
	var pool []domain.CatalogItem
	if items, ok := s.items[categoryID]; ok {
		pool = append(pool, items...)
	} else if categoryID == MixedCategory {
		for _, items := range s.items {
			pool = append(pool, items...)
		}
	}

	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no tracks for category %q", domain.ErrCatalogUnavailable, categoryID)
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if count > 0 && len(pool) > count {
		pool = pool[:count]
	}
	return pool, nil
}
