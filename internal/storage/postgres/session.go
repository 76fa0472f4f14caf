package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
)

var _ checkout.Store = (*SessionStore)(nil)

// SessionStore persists checkout sessions. The structured parts of a session
// (items, shipping options, address, messages) live in JSONB columns; every
// write replaces the whole record, matching the engine's
// read-compute-write-whole-record contract.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore returns a SessionStore backed by the given pool.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create inserts a new session record.
func (s *SessionStore) Create(ctx context.Context, sess *checkout.Session) error {
	items, options, address, messages, err := marshalSessionFields(sess)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkout_sessions (
			id, status, items, shipping_address, shipping_options,
			selected_shipping, currency, vat_rate, subtotal, shipping_amount,
			vat_amount, grand_total, messages, idempotency_key,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		sess.ID, sess.Status, items, address, options,
		sess.SelectedShipping, sess.Currency, sess.VATRate, sess.Subtotal, sess.ShippingAmount,
		sess.VATAmount, sess.GrandTotal, messages, sess.IdempotencyKey,
		sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert session %q", sess.ID)
	}
	return nil
}

// Get fetches a session by id. It returns checkout.ErrSessionNotFound for an
// unknown id.
func (s *SessionStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, items, shipping_address, shipping_options,
		       selected_shipping, currency, vat_rate, subtotal, shipping_amount,
		       vat_amount, grand_total, messages, idempotency_key,
		       created_at, updated_at
		FROM checkout_sessions WHERE id = $1`, id)

	var (
		sess     checkout.Session
		items    []byte
		address  []byte
		options  []byte
		messages []byte
	)
	err := row.Scan(
		&sess.ID, &sess.Status, &items, &address, &options,
		&sess.SelectedShipping, &sess.Currency, &sess.VATRate, &sess.Subtotal, &sess.ShippingAmount,
		&sess.VATAmount, &sess.GrandTotal, &messages, &sess.IdempotencyKey,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query session %q", id)
	}

	if err := unmarshalSessionFields(&sess, items, address, options, messages); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Update replaces the stored record. A missing id yields
// checkout.ErrSessionNotFound rather than an insert.
func (s *SessionStore) Update(ctx context.Context, sess *checkout.Session) (*checkout.Session, error) {
	items, options, address, messages, err := marshalSessionFields(sess)
	if err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE checkout_sessions SET
			status = $2, items = $3, shipping_address = $4, shipping_options = $5,
			selected_shipping = $6, subtotal = $7, shipping_amount = $8,
			vat_amount = $9, grand_total = $10, messages = $11,
			idempotency_key = $12, updated_at = $13
		WHERE id = $1`,
		sess.ID, sess.Status, items, address, options,
		sess.SelectedShipping, sess.Subtotal, sess.ShippingAmount,
		sess.VATAmount, sess.GrandTotal, messages,
		sess.IdempotencyKey, sess.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "update session %q", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		return nil, checkout.ErrSessionNotFound
	}
	return sess, nil
}

func marshalSessionFields(sess *checkout.Session) (items, options, address, messages []byte, err error) {
	if items, err = json.Marshal(sess.Items); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "marshal items")
	}
	if options, err = json.Marshal(sess.ShippingOptions); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "marshal shipping options")
	}
	if sess.ShippingAddress != nil {
		if address, err = json.Marshal(sess.ShippingAddress); err != nil {
			return nil, nil, nil, nil, errors.Wrap(err, "marshal shipping address")
		}
	}
	if messages, err = json.Marshal(sess.Messages); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "marshal messages")
	}
	return items, options, address, messages, nil
}

func unmarshalSessionFields(sess *checkout.Session, items, address, options, messages []byte) error {
	if err := json.Unmarshal(items, &sess.Items); err != nil {
		return errors.Wrap(err, "unmarshal items")
	}
	if len(address) > 0 {
		sess.ShippingAddress = new(checkout.ShippingAddress)
		if err := json.Unmarshal(address, sess.ShippingAddress); err != nil {
			return errors.Wrap(err, "unmarshal shipping address")
		}
	}
	if err := json.Unmarshal(options, &sess.ShippingOptions); err != nil {
		return errors.Wrap(err, "unmarshal shipping options")
	}
	if err := json.Unmarshal(messages, &sess.Messages); err != nil {
		return errors.Wrap(err, "unmarshal messages")
	}
	return nil
}
