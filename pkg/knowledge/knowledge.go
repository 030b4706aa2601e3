package knowledge

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
	"github.com/shopkeeper-ai/shopkeeper/pkg/textproc"
)

// MaxResults bounds every search.
const MaxResults = 10

// Search finds catalog entries relevant to a customer question.
type Search interface {
	SearchProducts(ctx context.Context, text string) ([]models.Product, error)
	SearchPolicies(ctx context.Context, text string) ([]models.PolicySection, error)
	Categories(ctx context.Context) ([]string, error)
	ProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
}

// TextProvider returns fixed informational text used by local answer rules.
type TextProvider interface {
	PickupLocations(ctx context.Context) ([]models.PickupLocation, error)
	// PolicyText returns the content of a policy section and whether it exists.
	PolicyText(ctx context.Context, sectionID string) (string, bool, error)
}

// Store is a full knowledge backend.
type Store interface {
	Search
	TextProvider
	Close() error
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cat models.Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range cat.Products {
		if cat.Products[i].ID == "" {
			cat.Products[i].ID = fmt.Sprintf("p%03d", i+1)
		}
	}
	return &cat, nil
}

type scored[T any] struct {
	item  T
	score int
}

// rank keeps items with a positive score, best first, ties in input order.
func rank[T any](items []T, score func(T) int) []T {
	var hits []scored[T]
	for _, it := range items {
		if s := score(it); s > 0 {
			hits = append(hits, scored[T]{it, s})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored[T]) int { return b.score - a.score })

	out := make([]T, 0, min(len(hits), MaxResults))
	for _, h := range hits[:min(len(hits), MaxResults)] {
		out = append(out, h.item)
	}
	return out
}

// nameWeight makes a product named in the question outrank keyword matches.
const nameWeight = 10

func rankProducts(products []models.Product, text string) []models.Product {
	q := textproc.Normalize(text)
	keywords := textproc.Keywords(text)
	if q == "" {
		return nil
	}
	return rank(products, func(p models.Product) int {
		score := 0
		if name := strings.ToLower(p.Name); name != "" && strings.Contains(q, name) {
			score += nameWeight
		}
		hay := strings.ToLower(strings.Join([]string{p.Name, p.Category, p.Description, p.Origin, p.Taste}, " "))
		for _, kw := range keywords {
			if strings.Contains(hay, kw) {
				score++
			}
		}
		return score
	})
}

func rankPolicies(policies []models.PolicySection, text string) []models.PolicySection {
	q := textproc.Normalize(text)
	keywords := textproc.Keywords(text)
	if q == "" {
		return nil
	}
	return rank(policies, func(p models.PolicySection) int {
		score := 0
		for _, tag := range p.Tags {
			if tag = strings.ToLower(tag); tag != "" && strings.Contains(q, tag) {
				score += nameWeight
			}
		}
		hay := strings.ToLower(strings.Join([]string{p.ID, p.Title, p.Content}, " "))
		for _, kw := range keywords {
			if strings.Contains(hay, kw) {
				score++
			}
		}
		return score
	})
}

// categoriesOf returns distinct categories in first-seen order.
func categoriesOf(products []models.Product) []string {
	var out []string
	for _, p := range products {
		if p.Category != "" && !slices.Contains(out, p.Category) {
			out = append(out, p.Category)
		}
	}
	return out
}
