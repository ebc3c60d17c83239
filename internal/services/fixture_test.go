package services_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"storefront/internal/events"
	"storefront/internal/inventory"
	"storefront/internal/models"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ctx       context.Context
	store     repositories.Store
	machine   *services.StateMachine
	orders    *services.OrderService
	payments  *services.PaymentService
	publisher *recordingPublisher
	owner     services.Caller
	stranger  services.Caller
	admin     services.Caller
}

func newFixture(t *testing.T, table models.TransitionTable, providers ...payments.Provider) *fixture {
	t.Helper()
	return newFixtureOn(t, repositories.NewMemoryStore(), table, providers...)
}

// newSQLiteFixture runs the services on the GORM store over an in-memory SQLite database.
func newSQLiteFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repositories.AutoMigrate(db))
	return newFixtureOn(t, repositories.NewGORMStore(db), nil)
}

func newFixtureOn(t *testing.T, store repositories.Store, table models.TransitionTable, providers ...payments.Provider) *fixture {
	t.Helper()
	ledger := inventory.NewLedger()
	machine := services.NewStateMachine(table, ledger, nil)
	publisher := &recordingPublisher{}
	f := &fixture{
		ctx:       context.Background(),
		store:     store,
		machine:   machine,
		orders:    services.NewOrderService(store, machine, pricing.NewCalculator(pricing.DefaultConfig()), ledger, publisher),
		payments:  services.NewPaymentService(store, machine, payments.NewRegistry(providers...), publisher, nil),
		publisher: publisher,
	}
	f.owner = f.user(t, "owner", models.RoleUser)
	f.stranger = f.user(t, "stranger", models.RoleUser)
	f.admin = f.user(t, "admin", models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) services.Caller {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, f.store.Repositories().Users.Create(f.ctx, u))
	return services.Caller{UserID: u.ID, Role: role}
}

func (f *fixture) product(t *testing.T, price string, discount, stock int) string {
	t.Helper()
	p := &models.Product{
		Name:            "Product " + price,
		Price:           decimal.RequireFromString(price),
		DiscountPercent: discount,
		Stock:           stock,
	}
	require.NoError(t, f.store.Repositories().Products.Create(f.ctx, p))
	return p.ID
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Repositories().Products.GetByID(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) status(t *testing.T, orderID string) models.OrderStatus {
	t.Helper()
	o, err := f.store.Repositories().Orders.GetByID(f.ctx, orderID)
	require.NoError(t, err)
	return o.Status
}

// order creates a PENDING order for the owner with one line of qty units.
func (f *fixture) order(t *testing.T, productID string, qty int) *models.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(f.ctx, f.owner.UserID, []services.ItemRequest{{ProductID: productID, Quantity: qty}})
	require.NoError(t, err)
	return o
}

// forceStatus stores an order directly in the given status, bypassing the state machine.
func (f *fixture) forceStatus(t *testing.T, orderID string, status models.OrderStatus) {
	t.Helper()
	repos := f.store.Repositories()
	o, err := repos.Orders.GetByID(f.ctx, orderID)
	require.NoError(t, err)
	o.Status = status
	require.NoError(t, repos.Orders.Save(f.ctx, o))
}
