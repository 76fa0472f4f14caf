package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordkart/checkout-api/internal/domain/order"
)

var _ order.Sink = (*OrderSink)(nil)

// OrderSink persists finalized orders. The order row, its line items, and
// the stock decrements are committed in one transaction so a failed insert
// never leaves partial order state.
type OrderSink struct {
	pool *pgxpool.Pool
}

// NewOrderSink returns an OrderSink backed by the given pool.
func NewOrderSink(pool *pgxpool.Pool) *OrderSink {
	return &OrderSink{pool: pool}
}

// Persist inserts the order with its items and decrements product stock for
// each purchased quantity. Stock never goes below zero.
func (s *OrderSink) Persist(ctx context.Context, o *order.Order) (*order.Order, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var address []byte
	if o.ShippingAddress != nil {
		if address, err = json.Marshal(o.ShippingAddress); err != nil {
			return nil, errors.Wrap(err, "marshal shipping address")
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, session_id, customer_email, customer_name, total_amount,
			currency, shipping_address, payment_id, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		o.ID, o.SessionID, o.CustomerEmail, o.CustomerName, o.TotalAmount,
		o.Currency, address, o.PaymentID, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "insert order %q", o.ID)
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_amount, currency)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.SKU, it.Quantity, it.UnitAmount, it.Currency,
		); err != nil {
			return nil, errors.Wrapf(err, "insert order item %q", it.SKU)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = GREATEST(stock - $2, 0) WHERE id = $1`,
			it.SKU, it.Quantity,
		); err != nil {
			return nil, errors.Wrapf(err, "decrement stock for %q", it.SKU)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit order tx")
	}
	return o, nil
}
