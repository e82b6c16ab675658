package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = errors.New("product not found")

// Repository reads the product catalog. The purchase pipeline treats the
// catalog as an external collaborator: it only ever reads from it.
type Repository struct {
	db *sql.DB
}

type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, price, sku, image, sizes, colors, stock
		FROM products
		WHERE id = $1
	`

	var (
		p          domain.Product
		sizesJSON  []byte
		colorsJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.SKU,
		&p.Image,
		&sizesJSON,
		&colorsJSON,
		&p.Stock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	if err := json.Unmarshal(sizesJSON, &p.Sizes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sizes: %w", err)
	}
	if err := json.Unmarshal(colorsJSON, &p.Colors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal colors: %w", err)
	}

	return &p, nil
}

func (r *Repository) GetAllProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, name, price, sku, image, sizes, colors, stock
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		var (
			p          domain.Product
			sizesJSON  []byte
			colorsJSON []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.SKU,
			&p.Image,
			&sizesJSON,
			&colorsJSON,
			&p.Stock,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if err := json.Unmarshal(sizesJSON, &p.Sizes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sizes: %w", err)
		}
		if err := json.Unmarshal(colorsJSON, &p.Colors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal colors: %w", err)
		}
		products = append(products, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}
