package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/computers-backend/internal/inventory"
	"github.com/angelmondragon/computers-backend/internal/payments"
	"github.com/angelmondragon/computers-backend/pkg/db"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/types"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type stubGateway struct {
	createLink *payments.PaymentLink
	createErr  error
	creates    int

	capture    *payments.CaptureResult
	captureErr error
	captures   int

	refund      *payments.RefundResult
	refundErr   error
	refundSales []string

	saleForPayment string
	saleLookups    int
}

func (g *stubGateway) CreatePayment(context.Context, *models.Order) (*payments.PaymentLink, error) {
	g.creates++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createLink, nil
}

func (g *stubGateway) CapturePayment(context.Context, string, string) (*payments.CaptureResult, error) {
	g.captures++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return g.capture, nil
}

func (g *stubGateway) Refund(_ context.Context, saleID string, _ *decimal.Decimal, _ string) (*payments.RefundResult, error) {
	g.refundSales = append(g.refundSales, saleID)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return g.refund, nil
}

func (g *stubGateway) SaleIDForPayment(context.Context, string) (string, error) {
	g.saleLookups++
	return g.saleForPayment, nil
}

type stubLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func (l *stubLocker) Acquire(_ context.Context, orderID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[uuid.UUID]bool{}
	}
	if l.held[orderID] {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is being modified by another request")
	}
	l.held[orderID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, orderID)
	}, nil
}

type testEnv struct {
	db      *gorm.DB
	gateway *stubGateway
	locker  *stubLocker
	svc     Service
	buyer   Actor
	admin   Actor
	cpu     uuid.UUID
	ram     uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:      conn,
		gateway: &stubGateway{},
		locker:  &stubLocker{},
		buyer:   Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer},
		admin:   Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
	env.cpu = env.seedComponent(t, "Ryzen 5 7600", 5, "7500.00")
	env.ram = env.seedComponent(t, "DDR5 16GB", 10, "1800.00")

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      db.NewFromConn(conn),
		Ledger:  inventory.NewLedger(conn),
		Gateway: env.gateway,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Locker:  env.locker,
		Metrics: metrics.NewOrderMetrics(nil),
		Logger:  logger.Nop(),
		Clock:   func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	env.svc = svc
	return env
}

func (e *testEnv) seedComponent(t *testing.T, name string, qty int, price string) uuid.UUID {
	t.Helper()
	component := models.Component{Type: "PART", Name: name, MPN: "MPN-" + name, IsActive: true}
	if err := e.db.Create(&component).Error; err != nil {
		t.Fatalf("seed component: %v", err)
	}
	item := models.InventoryItem{ProductID: component.ID, Quantity: qty, Price: decimal.RequireFromString(price)}
	if err := e.db.Create(&item).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return component.ID
}

type orderSeed struct {
	method         enums.PaymentMethod
	status         enums.OrderStatus
	payment        enums.PaymentStatus
	committed      bool
	details        types.PaymentDetails
	shipping       *types.ShippingDetails
	lines          []models.OrderLineItem
	userID         uuid.UUID
	createdAtShift time.Duration
}

// seedOrder stores one CPU order for the env buyer unless the seed overrides it.
func (e *testEnv) seedOrder(t *testing.T, seed orderSeed) *models.Order {
	t.Helper()
	if seed.method == "" {
		seed.method = enums.PaymentMethodPayPal
	}
	if seed.status == "" {
		seed.status = enums.OrderStatusPendingPayment
	}
	if seed.payment == "" {
		seed.payment = enums.PaymentStatusPending
	}
	if seed.userID == uuid.Nil {
		seed.userID = e.buyer.UserID
	}
	if seed.lines == nil {
		seed.lines = []models.OrderLineItem{{
			Position:  0,
			ItemType:  enums.LineItemTypeComponent,
			ProductID: e.cpu,
			Name:      "Ryzen 5 7600",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("7500.00"),
		}}
	}
	subtotal := decimal.Zero
	for _, line := range seed.lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	tax := subtotal.Mul(decimal.RequireFromString("0.07")).Round(2)
	seed.details.Method = seed.method

	order := models.Order{
		UserID:          seed.userID,
		Email:           "buyer@example.com",
		ShippingAddress: types.Address{ContactName: "Somchai", Line1: "99 Sukhumvit Rd", Province: "Bangkok", ZipCode: "10110", Country: "Thailand"},
		Currency:        "THB",
		SubtotalAmount:  subtotal,
		TaxAmount:       tax,
		TotalAmount:     subtotal.Add(tax),
		OrderStatus:     seed.status,
		PaymentStatus:   seed.payment,
		PaymentDetails:  seed.details,
		ShippingDetails: seed.shipping,
		StockCommitted:  seed.committed,
		LineItems:       seed.lines,
		CreatedAt:       fixedNow.Add(seed.createdAtShift),
	}
	if err := e.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	order, err := NewRepository(e.db).FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

func (e *testEnv) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var item models.InventoryItem
	if err := e.db.First(&item, "product_id = ?", id).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item.Quantity
}

func (e *testEnv) countRows(t *testing.T, model any, column string, id uuid.UUID) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Where(column+" = ?", id).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (e *testEnv) transitions(t *testing.T, id uuid.UUID) int64 {
	return e.countRows(t, &models.OrderTransition{}, "order_id", id)
}

func (e *testEnv) outboxEvents(t *testing.T, id uuid.UUID) int64 {
	return e.countRows(t, &models.OutboxEvent{}, "aggregate_id", id)
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if !pkgerrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
