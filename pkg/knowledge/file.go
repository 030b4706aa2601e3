package knowledge

import (
	"context"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// FileStore serves a catalog held in memory. It is read-only and safe for
// concurrent use.
type FileStore struct {
	catalog models.Catalog
}

// NewFileStore wraps an already loaded catalog.
func NewFileStore(cat models.Catalog) *FileStore {
	return &FileStore{catalog: cat}
}

// OpenFileStore loads a YAML catalog from path.
func OpenFileStore(path string) (*FileStore, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return NewFileStore(*cat), nil
}

func (s *FileStore) SearchProducts(_ context.Context, text string) ([]models.Product, error) {
	return rankProducts(s.catalog.Products, text), nil
}

func (s *FileStore) SearchPolicies(_ context.Context, text string) ([]models.PolicySection, error) {
	return rankPolicies(s.catalog.Policies, text), nil
}

func (s *FileStore) Categories(context.Context) ([]string, error) {
	return categoriesOf(s.catalog.Products), nil
}

func (s *FileStore) ProductsByCategory(_ context.Context, category string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range s.catalog.Products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FileStore) PickupLocations(context.Context) ([]models.PickupLocation, error) {
	return s.catalog.PickupLocations, nil
}

func (s *FileStore) PolicyText(_ context.Context, sectionID string) (string, bool, error) {
	for _, p := range s.catalog.Policies {
		if p.ID == sectionID {
			return p.Content, true, nil
		}
	}
	return "", false, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
