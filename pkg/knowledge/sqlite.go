package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

const createKnowledgeTables = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price REAL NOT NULL DEFAULT 0,
	unit TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	taste TEXT NOT NULL DEFAULT '',
	origin TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category, position);
CREATE TABLE IF NOT EXISTS policies (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pickup_locations (
	name TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	hours TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL
);
`

// SQLiteStore serves the catalog from SQLite tables. Ranking happens in
// memory over the rows in catalog order so results match FileStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dbPath and runs auto-migration.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}

	if _, err := db.Exec(createKnowledgeTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate knowledge db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Import replaces the stored catalog with cat in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, cat models.Catalog) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"products", "policies", "pickup_locations"} {
		if _, err = tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, p := range cat.Products {
		if p.ID == "" {
			p.ID = fmt.Sprintf("p%03d", i+1)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO products (id, name, price, unit, category, taste, origin, description, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Price, p.Unit, p.Category, p.Taste, p.Origin, p.Description, i,
		)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}

	for i, p := range cat.Policies {
		tags, mErr := json.Marshal(p.Tags)
		if mErr != nil {
			return fmt.Errorf("encode tags for %s: %w", p.ID, mErr)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO policies (id, title, content, tags, position) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Title, p.Content, string(tags), i,
		)
		if err != nil {
			return fmt.Errorf("insert policy %s: %w", p.ID, err)
		}
	}

	for i, l := range cat.PickupLocations {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO pickup_locations (name, address, hours, position) VALUES (?, ?, ?, ?)`,
			l.Name, l.Address, l.Hours, i,
		)
		if err != nil {
			return fmt.Errorf("insert pickup location %s: %w", l.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryProducts(ctx context.Context, where string, args ...any) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, unit, category, taste, origin, description FROM products `+where+` ORDER BY position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Unit, &p.Category, &p.Taste, &p.Origin, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) policies(ctx context.Context) ([]models.PolicySection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, tags FROM policies ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var out []models.PolicySection
	for rows.Next() {
		var (
			p    models.PolicySection
			tags string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &tags); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SearchProducts(ctx context.Context, text string) ([]models.Product, error) {
	products, err := s.queryProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	return rankProducts(products, text), nil
}

func (s *SQLiteStore) SearchPolicies(ctx context.Context, text string) ([]models.PolicySection, error) {
	policies, err := s.policies(ctx)
	if err != nil {
		return nil, err
	}
	return rankPolicies(policies, text), nil
}

func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category FROM products WHERE category != '' GROUP BY category ORDER BY MIN(position)`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return s.queryProducts(ctx, "WHERE category = ?", category)
}

func (s *SQLiteStore) PickupLocations(ctx context.Context) ([]models.PickupLocation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, address, hours FROM pickup_locations ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query pickup locations: %w", err)
	}
	defer rows.Close()

	var out []models.PickupLocation
	for rows.Next() {
		var l models.PickupLocation
		if err := rows.Scan(&l.Name, &l.Address, &l.Hours); err != nil {
			return nil, fmt.Errorf("scan pickup location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PolicyText(ctx context.Context, sectionID string) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM policies WHERE id = ?`, sectionID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query policy %s: %w", sectionID, err)
	}
	return content, true, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
