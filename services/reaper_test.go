package services

import (
	"context"
	"testing"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaper_ExpiresStaleOrders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Papaya", "65", 10)
	orders := NewOrderService(db, nil, &fakeGateway{}, testCheckoutConfig, nil)

	stale, err := orders.PlaceOrder(ctx, customer.ID, p.ID, 3)
	require.NoError(t, err)
	paid, err := orders.PlaceOrder(ctx, customer.ID, p.ID, 2)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", paid.ID).Update("status", models.OrderStatusPaid).Error)
	assert.Equal(t, 5, stockOf(t, db, p.ID))

	reaper := NewReaper(db, nil, time.Hour, nil)
	reaper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	expired, err := reaper.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, models.OrderStatusCancelled, loadOrder(t, db, stale.ID).Status)
	assert.Equal(t, models.OrderStatusPaid, loadOrder(t, db, paid.ID).Status)
	assert.Equal(t, 8, stockOf(t, db, p.ID))

	expired, err = reaper.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, 8, stockOf(t, db, p.ID))
}

func TestReaper_LeavesFreshOrders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Melon", "85", 10)
	orders := NewOrderService(db, nil, &fakeGateway{}, testCheckoutConfig, nil)

	order, err := orders.PlaceOrder(ctx, customer.ID, p.ID, 1)
	require.NoError(t, err)

	expired, err := NewReaper(db, nil, time.Hour, nil).ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, models.OrderStatusPending, loadOrder(t, db, order.ID).Status)
}

func TestReaper_WaitsForPaymentPageExpiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Guava", "40", 6)
	gateway := &fakeGateway{}
	cfg := testCheckoutConfig
	cfg.ReservationTTL = 10 * time.Minute
	orders := NewOrderService(db, nil, gateway, cfg, nil)

	result, err := orders.Checkout(ctx, sessionFor(customer), []models.CheckoutItem{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)
	pageExpiry := gateway.lastRequest().ExpiresAt
	require.True(t, pageExpiry.After(time.Now().Add(11*time.Minute)))

	reaper := NewReaper(db, nil, cfg.ReservationTTL, nil)
	reaper.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	// The TTL has passed but the customer can still pay.
	expired, err := reaper.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, models.OrderStatusPending, loadOrder(t, db, result.OrderID).Status)
	assert.Equal(t, 4, stockOf(t, db, p.ID))

	reaper.now = func() time.Time { return pageExpiry.Add(paymentGrace + time.Minute) }
	expired, err = reaper.ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, models.OrderStatusCancelled, loadOrder(t, db, result.OrderID).Status)
	assert.Equal(t, 6, stockOf(t, db, p.ID))
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	reaper := NewReaper(newTestDB(t), nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reaper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
