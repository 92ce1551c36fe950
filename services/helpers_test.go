package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Kariqs/farmmarket-api/initializers"
	"github.com/Kariqs/farmmarket-api/models"
	"github.com/Kariqs/farmmarket-api/payments"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, initializers.SyncDatabase(db))
	return db
}

var userSeq atomic.Int64

func seedUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	n := userSeq.Add(1)
	user := models.User{
		Name:                  fmt.Sprintf("user %d", n),
		Email:                 fmt.Sprintf("user%d@example.com", n),
		Role:                  role,
		AuthProvider:          models.AuthProviderCredentials,
		SetupStatus:           models.SetupComplete,
		ProfileSetupCompleted: true,
	}
	if role == models.RoleFarmer {
		farm, location := "Green Acres", "Nashik"
		user.FarmName, user.FarmLocation = &farm, &location
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, farmerID uint, name, price string, qty int) models.Product {
	t.Helper()
	product := models.Product{
		Name:        name,
		Description: "Freshly harvested " + name,
		Category:    "vegetables",
		Price:       decimal.RequireFromString(price),
		Quantity:    qty,
		FarmerID:    farmerID,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func stockOf(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var product models.Product
	require.NoError(t, db.Unscoped().First(&product, productID).Error)
	return product.Quantity
}

func loadOrder(t *testing.T, db *gorm.DB, orderID uint) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.Preload("OrderItems").First(&order, orderID).Error)
	return order
}

func sessionFor(user models.User) models.Session {
	return models.Session{ID: user.ID, Role: user.Role, Name: user.Name, Email: user.Email}
}

type fakeGateway struct {
	mu         sync.Mutex
	requests   []payments.CheckoutSessionRequest
	ensureErr  error
	sessionErr error
	event      payments.WebhookEvent
	parseErr   error
}

func (g *fakeGateway) EnsureCustomer(context.Context, string, string) (string, error) {
	if g.ensureErr != nil {
		return "", g.ensureErr
	}
	return "cus_test", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.sessionErr != nil {
		return payments.CheckoutSession{}, g.sessionErr
	}
	id := fmt.Sprintf("cs_test_%d", len(g.requests))
	return payments.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) ParseWebhook(_ []byte, signature string) (payments.WebhookEvent, error) {
	if signature == "bad" {
		return payments.WebhookEvent{}, fmt.Errorf("%w: no valid signature", payments.ErrInvalidSignature)
	}
	if g.parseErr != nil {
		return payments.WebhookEvent{}, g.parseErr
	}
	return g.event, nil
}

func (g *fakeGateway) lastRequest() payments.CheckoutSessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

func completedEvent(id string, orderID uint) payments.WebhookEvent {
	return payments.WebhookEvent{
		ID:              id,
		Type:            payments.EventCheckoutCompleted,
		SessionID:       "cs_test_1",
		PaymentIntentID: "pi_test_1",
		Metadata:        map[string]string{"orderId": fmt.Sprint(orderID)},
		Raw:             []byte(`{"id":"` + id + `"}`),
	}
}

type fakeNotifier struct {
	mu      sync.Mutex
	orders  []models.Order
	to      []string
	err     error
	release chan struct{}
}

func (n *fakeNotifier) OrderPaid(_ context.Context, customer models.User, order models.Order) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
	n.to = append(n.to, customer.Email)
	return n.err
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
