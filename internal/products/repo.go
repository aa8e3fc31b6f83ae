package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const (
	productColumns = `id, name, description, price, quantity`
	selectProduct  = `SELECT ` + productColumns + ` FROM products`
)

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity)
	return p, err
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, selectProduct+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, selectProduct+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// Create inserts p and returns the row as stored, so prices come back
// rounded to the column scale. Any id set on p is ignored.
func (r *Repo) Create(ctx context.Context, p Product) (Product, error) {
	out, err := scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products(name, description, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		p.Name, p.Description, p.Price, p.Quantity,
	))
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return out, nil
}

// Update overwrites every mutable field of product id and returns the stored
// row.
func (r *Repo) Update(ctx context.Context, id int64, p Product) (Product, error) {
	out, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, quantity=$5
		WHERE id=$1
		RETURNING `+productColumns,
		id, p.Name, p.Description, p.Price, p.Quantity,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return out, nil
}

// Delete removes product id. Deleting a missing product is not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if _, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}
