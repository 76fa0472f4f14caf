//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nordkart/checkout-api/internal/domain/checkout"
	"github.com/nordkart/checkout-api/internal/domain/order"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("testuser"),
		pgcontainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %s", err)
		}
	})

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, id, name string, unitAmount int64, stock int, published bool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, name, unit_amount, currency, stock, published)
		VALUES ($1, $2, $3, 'NOK', $4, $5)`,
		id, name, unitAmount, stock, published,
	)
	require.NoError(t, err)
}

func storedSession(id string) *checkout.Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &checkout.Session{
		ID:     id,
		Status: checkout.StatusCreated,
		Items: []checkout.PricedLineItem{
			{SKU: "sku-1", Name: "Wool Sweater", UnitPrice: 10000, Quantity: 1, VATRate: checkout.NorwayVATRate},
		},
		ShippingAddress: &checkout.ShippingAddress{PostalCode: "0150", Country: "NO"},
		ShippingOptions: []checkout.ShippingOption{
			{ID: "standard", Label: "Standard levering", Amount: 4900},
			{ID: "express", Label: "Ekspress levering", Amount: 9900},
		},
		Currency:       "NOK",
		VATRate:        checkout.NorwayVATRate,
		Subtotal:       10000,
		ShippingAmount: 4900,
		VATAmount:      2500,
		GrandTotal:     17400,
		Messages:       []string{"Insufficient stock for Socks. Available: 2"},
		IdempotencyKey: "idem-1",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestSessionStore_RoundTrip(t *testing.T) {
	pool := setupTestPool(t)
	store := NewSessionStore(pool)
	ctx := context.Background()

	sess := storedSession("cs_" + uuid.New().String())
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, checkout.StatusCreated, got.Status)
	assert.Equal(t, sess.Items, got.Items)
	assert.Equal(t, sess.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, sess.ShippingOptions, got.ShippingOptions)
	assert.Equal(t, sess.Messages, got.Messages)
	assert.True(t, sess.VATRate.Equal(got.VATRate), "vat_rate %s != %s", sess.VATRate, got.VATRate)
	assert.Equal(t, sess.Subtotal, got.Subtotal)
	assert.Equal(t, sess.GrandTotal, got.GrandTotal)
	assert.Equal(t, sess.IdempotencyKey, got.IdempotencyKey)
	assert.WithinDuration(t, sess.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSessionStore_NilAddressRoundTrip(t *testing.T) {
	pool := setupTestPool(t)
	store := NewSessionStore(pool)
	ctx := context.Background()

	sess := storedSession("cs_" + uuid.New().String())
	sess.ShippingAddress = nil
	sess.ShippingOptions = nil
	sess.Messages = nil
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ShippingAddress)
	assert.Empty(t, got.ShippingOptions)
	assert.Empty(t, got.Messages)
}

func TestSessionStore_GetNotFound(t *testing.T) {
	pool := setupTestPool(t)
	store := NewSessionStore(pool)

	_, err := store.Get(context.Background(), "cs_missing")
	require.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestSessionStore_Update(t *testing.T) {
	pool := setupTestPool(t)
	store := NewSessionStore(pool)
	ctx := context.Background()

	sess := storedSession("cs_" + uuid.New().String())
	require.NoError(t, store.Create(ctx, sess))

	sess.Status = checkout.StatusUpdated
	sess.SelectedShipping = "express"
	sess.ShippingAmount = 9900
	sess.GrandTotal = 22400
	sess.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	_, err := store.Update(ctx, sess)
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusUpdated, got.Status)
	assert.Equal(t, "express", got.SelectedShipping)
	assert.Equal(t, int64(22400), got.GrandTotal)
}

func TestSessionStore_UpdateNotFound(t *testing.T) {
	pool := setupTestPool(t)
	store := NewSessionStore(pool)

	_, err := store.Update(context.Background(), storedSession("cs_missing"))
	require.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestCatalog_ResolvePublishedOnly(t *testing.T) {
	pool := setupTestPool(t)
	seedProduct(t, pool, "sku-live", "Wool Sweater", 10000, 10, true)
	seedProduct(t, pool, "sku-draft", "Prototype Pack", 129900, 5, false)

	got, err := NewCatalog(pool).Resolve(context.Background(), []string{"sku-live", "sku-draft", "sku-missing"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	item := got["sku-live"]
	assert.Equal(t, "Wool Sweater", item.Name)
	assert.Equal(t, int64(10000), item.UnitAmount)
	assert.Equal(t, 10, item.Stock)
}

func TestOrderSink_PersistDecrementsStock(t *testing.T) {
	pool := setupTestPool(t)
	seedProduct(t, pool, "sku-1", "Wool Sweater", 10000, 10, true)
	ctx := context.Background()

	o := &order.Order{
		ID:            uuid.New().String(),
		SessionID:     "cs_1",
		CustomerEmail: "kari@example.no",
		TotalAmount:   17400,
		Currency:      "NOK",
		ShippingAddress: &order.Address{
			PostalCode: "0150",
			Country:    "NO",
		},
		PaymentID: "pi_1",
		Status:    order.StatusPaid,
		Items: []order.Item{
			{SKU: "sku-1", Quantity: 3, UnitAmount: 10000, Currency: "NOK"},
		},
	}

	persisted, err := NewOrderSink(pool).Persist(ctx, o)
	require.NoError(t, err)
	assert.False(t, persisted.CreatedAt.IsZero())

	var itemCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM order_items WHERE order_id = $1`, o.ID).Scan(&itemCount))
	assert.Equal(t, 1, itemCount)

	var stock int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = 'sku-1'`).Scan(&stock))
	assert.Equal(t, 7, stock)
}

func TestOrderSink_StockNeverNegative(t *testing.T) {
	pool := setupTestPool(t)
	seedProduct(t, pool, "sku-1", "Wool Sweater", 10000, 2, true)
	ctx := context.Background()

	o := &order.Order{
		ID:            uuid.New().String(),
		SessionID:     "cs_1",
		CustomerEmail: "kari@example.no",
		TotalAmount:   50000,
		Currency:      "NOK",
		Status:        order.StatusPaid,
		Items: []order.Item{
			{SKU: "sku-1", Quantity: 5, UnitAmount: 10000, Currency: "NOK"},
		},
	}

	_, err := NewOrderSink(pool).Persist(ctx, o)
	require.NoError(t, err)

	var stock int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT stock FROM products WHERE id = 'sku-1'`).Scan(&stock))
	assert.Equal(t, 0, stock)
}

func TestOrderSink_RollsBackOnItemFailure(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	o := &order.Order{
		ID:            uuid.New().String(),
		SessionID:     "cs_1",
		CustomerEmail: "kari@example.no",
		TotalAmount:   10000,
		Currency:      "NOK",
		Status:        order.StatusPaid,
		Items: []order.Item{
			// Negative quantity violates the order_items check constraint.
			{SKU: "sku-1", Quantity: -1, UnitAmount: 10000, Currency: "NOK"},
		},
	}

	_, err := NewOrderSink(pool).Persist(ctx, o)
	require.Error(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE id = $1`, o.ID).Scan(&count))
	assert.Zero(t, count, "order row must not survive a failed item insert")
}
