package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_ReservesStock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Carrots", "35.50", 10)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.OrderSourceDirect, order.Source)
	assert.Equal(t, "106.5", order.TotalAmount.String())
	assert.True(t, order.ShippingFee.IsZero())
	require.Len(t, order.OrderItems, 1)
	assert.Equal(t, "35.5", order.OrderItems[0].UnitPrice.String())
	assert.Equal(t, 7, stockOf(t, db, p.ID))
}

func TestPlaceOrder_Errors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Beans", "50", 2)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	_, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.PlaceOrder(ctx, customer.ID, 9999, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.PlaceOrder(ctx, 0, p.ID, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.PlaceOrder(ctx, customer.ID, p.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var orders int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders, "nothing is persisted when the reservation fails")
	assert.Equal(t, 2, stockOf(t, db, p.ID))
}

func TestPlaceOrder_LastUnitGoesToOneBuyer(t *testing.T) {
	db := newTestDB(t)
	farmer := seedUser(t, db, models.RoleFarmer)
	p := seedProduct(t, db, farmer.ID, "Saffron", "900", 1)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	buyers := []models.User{seedUser(t, db, models.RoleCustomer), seedUser(t, db, models.RoleCustomer)}
	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, buyer models.User) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), buyer.ID, p.ID, 1)
		}(i, buyer)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Zero(t, stockOf(t, db, p.ID))
}

func TestCancelOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	stranger := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Peas", "80", 5)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stockOf(t, db, p.ID))

	_, err = svc.CancelOrder(ctx, stranger.ID, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.CancelOrder(ctx, customer.ID, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, err := svc.CancelOrder(ctx, customer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, stockOf(t, db, p.ID), "cancellation restores stock")

	_, err = svc.CancelOrder(ctx, customer.ID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 5, stockOf(t, db, p.ID))
}

func TestCancelOrder_OnlyPending(t *testing.T) {
	for _, status := range []string{
		models.OrderStatusPaid,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
	} {
		t.Run(status, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()
			farmer := seedUser(t, db, models.RoleFarmer)
			customer := seedUser(t, db, models.RoleCustomer)
			p := seedProduct(t, db, farmer.ID, "Rice", "60", 5)
			svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

			order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 1)
			require.NoError(t, err)
			require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", status).Error)

			_, err = svc.CancelOrder(ctx, customer.ID, order.ID)
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.Equal(t, status, loadOrder(t, db, order.ID).Status)
			assert.Equal(t, 4, stockOf(t, db, p.ID))
		})
	}
}

func TestListCustomerOrders_NewestFirstWithDeletedProducts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	first := seedProduct(t, db, farmer.ID, "Wheat", "40", 5)
	second := seedProduct(t, db, farmer.ID, "Barley", "45", 5)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	older, err := svc.PlaceOrder(ctx, customer.ID, first.ID, 1)
	require.NoError(t, err)
	newer, err := svc.PlaceOrder(ctx, customer.ID, second.ID, 1)
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Product{}, first.ID).Error)

	orders, err := svc.ListCustomerOrders(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)
	require.NotNil(t, orders[1].OrderItems[0].Product)
	assert.Equal(t, "Wheat", orders[1].OrderItems[0].Product.Name)
}

func TestUpdateOrderStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	otherFarmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Ginger", "120", 5)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 1)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, "LOST")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.UpdateOrderStatus(ctx, farmer.ID, 9999, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateOrderStatus(ctx, otherFarmer.ID, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	assert.Equal(t, models.OrderStatusShipped, loadOrder(t, db, order.ID).Status)
}

func TestUpdateOrderStatus_CancelPendingReleasesStock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Turmeric", "150", 4)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, stockOf(t, db, p.ID))

	updated, err := svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
	assert.Equal(t, 4, stockOf(t, db, p.ID))
}

func TestUpdateOrderStatus_CancelledIsTerminal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Okra", "30", 5)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 2)
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, db, p.ID))
	assert.False(t, loadOrder(t, db, order.ID).StockReserved)

	for _, status := range []string{models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusDelivered} {
		_, err = svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, status)
		assert.ErrorIs(t, err, ErrInvalidState, status)
	}
	assert.Equal(t, models.OrderStatusCancelled, loadOrder(t, db, order.ID).Status)

	_, err = svc.CancelOrder(ctx, customer.ID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 5, stockOf(t, db, p.ID))
}

func TestUpdateOrderStatus_PaidCannotReturnToPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	p := seedProduct(t, db, farmer.ID, "Beetroot", "35", 5)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	order, err := svc.PlaceOrder(ctx, customer.ID, p.ID, 2)
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, models.OrderStatusPaid)
	require.NoError(t, err)

	_, err = svc.UpdateOrderStatus(ctx, farmer.ID, order.ID, models.OrderStatusPending)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.OrderStatusPaid, loadOrder(t, db, order.ID).Status)

	expired, err := NewReaper(db, nil, time.Nanosecond, nil).ExpirePendingOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Equal(t, 3, stockOf(t, db, p.ID))
}

func TestFarmerViews(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	farmer := seedUser(t, db, models.RoleFarmer)
	otherFarmer := seedUser(t, db, models.RoleFarmer)
	customer := seedUser(t, db, models.RoleCustomer)
	mine := seedProduct(t, db, farmer.ID, "Apples", "150", 50)
	seedProduct(t, db, farmer.ID, "Pears", "170", 50)
	theirs := seedProduct(t, db, otherFarmer.ID, "Plums", "90", 50)
	svc := NewOrderService(db, nil, &fakeGateway{}, CheckoutConfig{}, nil)

	for i := 0; i < 6; i++ {
		_, err := svc.PlaceOrder(ctx, customer.ID, mine.ID, 1)
		require.NoError(t, err)
	}
	_, err := svc.PlaceOrder(ctx, customer.ID, theirs.ID, 1)
	require.NoError(t, err)

	orders, err := svc.ListFarmerOrders(ctx, farmer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 6)

	recent, err := svc.FarmerRecentOrders(ctx, farmer.ID, 0)
	require.NoError(t, err)
	require.Len(t, recent, FarmerRecentOrdersLimit)
	assert.Equal(t, orders[0].ID, recent[0].ID)
	require.Len(t, recent[0].Items, 1)
	assert.Equal(t, "Apples", recent[0].Items[0].ProductName)
	assert.Equal(t, "150", recent[0].Items[0].Amount.String())

	dashboard, err := svc.FarmerDashboard(ctx, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dashboard.ProductsCount)
	assert.Equal(t, int64(6), dashboard.OrdersCount)

	dashboard, err = svc.FarmerDashboard(ctx, otherFarmer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dashboard.ProductsCount)
	assert.Equal(t, int64(1), dashboard.OrdersCount)
}
