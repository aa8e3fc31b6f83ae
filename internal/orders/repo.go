package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-services/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const selectOrder = `SELECT id, date, status, total_amount, customer_id FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	if err := row.Scan(&o.ID, &o.Date, &status, &o.TotalAmount, &o.CustomerID); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.Lines = []Line{}
	return o, nil
}

// Create stores the order and its lines in one transaction and returns the
// aggregate with database ids filled in.
func (r *Repo) Create(ctx context.Context, o Order) (Order, error) {
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO orders(date, status, total_amount, customer_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			o.Date, string(o.Status), o.TotalAmount, o.CustomerID,
		).Scan(&o.ID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range o.Lines {
			l := &o.Lines[i]
			l.OrderID = o.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO order_lines(order_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				o.ID, l.ProductID, l.Quantity, l.Price,
			).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if o.Lines == nil {
		o.Lines = []Line{}
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order %d: %w", id, err)
	}

	byOrder, err := r.loadLines(ctx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	if ls, ok := byOrder[id]; ok {
		o.Lines = ls
	}
	return o, nil
}

// List returns every order, newest first.
func (r *Repo) List(ctx context.Context) ([]Order, error) {
	return r.list(ctx, selectOrder+` ORDER BY id DESC`)
}

// ListByCustomer returns the orders placed by customer, newest first.
func (r *Repo) ListByCustomer(ctx context.Context, customer string) ([]Order, error) {
	return r.list(ctx, selectOrder+` WHERE customer_id=$1 ORDER BY id DESC`, customer)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	byOrder, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ls, ok := byOrder[out[i].ID]; ok {
			out[i].Lines = ls
		}
	}
	return out, nil
}

func (r *Repo) loadLines(ctx context.Context, orderIDs []int64) (map[int64][]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Line, len(orderIDs))
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}
