package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openrail/provision-agent/internal/models"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// ProductStore serves the installable-product catalog. The catalog is
// seeded by migrations and read-only at runtime.
type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns all products in the catalog.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, queryListProducts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Get retrieves one product by name.
func (s *ProductStore) Get(ctx context.Context, name string) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, queryGetProduct, name)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProduct(scan func(...any) error) (models.Product, error) {
	var p models.Product
	var boards, files string
	if err := scan(&p.Name, &p.DisplayName, &p.RepoURL, &p.DefaultBranch, &boards, &files); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(boards), &p.SupportedBoards); err != nil {
		return p, fmt.Errorf("decoding supported boards for %s: %w", p.Name, err)
	}
	if err := json.Unmarshal([]byte(files), &p.RequiredConfigFiles); err != nil {
		return p, fmt.Errorf("decoding config files for %s: %w", p.Name, err)
	}
	return p, nil
}
