package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	businessDomain "github.com/allisson/notifier/internal/business/domain"
	apperrors "github.com/allisson/notifier/internal/errors"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// MockAlertRepository is a mock implementation of AlertRepository
type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *alertDomain.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertRepository) FindLive(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (*alertDomain.Alert, error) {
	args := m.Called(ctx, alertType, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alertDomain.Alert), args.Error(1)
}

func (m *MockAlertRepository) ExistsAny(
	ctx context.Context,
	alertType alertDomain.AlertType,
	refID uuid.UUID,
) (bool, error) {
	args := m.Called(ctx, alertType, refID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAlertRepository) ListUndelivered(
	ctx context.Context,
	offset, limit int,
) ([]*alertDomain.Alert, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*alertDomain.Alert), args.Error(1)
}

func (m *MockAlertRepository) CountUndelivered(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAlertRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAlertRepository) MarkAllDelivered(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageEnqueuer is a mock implementation of MessageEnqueuer
type MockMessageEnqueuer struct {
	mock.Mock
}

func (m *MockMessageEnqueuer) Enqueue(
	ctx context.Context,
	channel messageDomain.Channel,
	toPhone string,
	template string,
	payload messageDomain.Payload,
	toClientID *uuid.UUID,
) (*messageDomain.OutboundMessage, error) {
	args := m.Called(ctx, channel, toPhone, template, payload, toClientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageDomain.OutboundMessage), args.Error(1)
}

// MockProductSource is a mock implementation of ProductSource
type MockProductSource struct {
	mock.Mock
}

func (m *MockProductSource) ListLowStock(
	ctx context.Context,
	threshold int,
) ([]*businessDomain.Product, error) {
	args := m.Called(ctx, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*businessDomain.Product), args.Error(1)
}

// MockOrderSource is a mock implementation of OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) ListOverdueDeliveries(
	ctx context.Context,
	now time.Time,
) ([]*businessDomain.Order, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*businessDomain.Order), args.Error(1)
}

func (m *MockOrderSource) ListStaleReservations(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Order, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*businessDomain.Order), args.Error(1)
}

func (m *MockOrderSource) ListRecentOrders(
	ctx context.Context,
	limit int,
) ([]*businessDomain.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*businessDomain.Order), args.Error(1)
}

// MockClientSource is a mock implementation of ClientSource
type MockClientSource struct {
	mock.Mock
}

func (m *MockClientSource) ListOverdueDebtors(
	ctx context.Context,
	cutoff time.Time,
) ([]*businessDomain.Client, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*businessDomain.Client), args.Error(1)
}

func testEngineConfig() Config {
	return Config{
		LowStockThreshold:    5,
		OverdueGraceDays:     7,
		StaleReservationDays: 3,
		AdminPhone:           "+5511999999999",
	}
}

// emptySources sets every rule source to return no rows.
func emptySources(products *MockProductSource, orders *MockOrderSource, clients *MockClientSource) {
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return([]*businessDomain.Product{}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)
}

func newTestEngine(
	alertRepo *MockAlertRepository,
	enqueuer *MockMessageEnqueuer,
	products *MockProductSource,
	orders *MockOrderSource,
	clients *MockClientSource,
) *Engine {
	return NewEngine(testEngineConfig(), alertRepo, enqueuer, products, orders, clients, nil)
}

func TestEngine_RunScan_NoCandidates(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}
	emptySources(products, orders, clients)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Empty(t, result.Failed)
	for _, alertType := range alertDomain.AlertTypes {
		assert.Equal(t, 0, result.Created[alertType])
	}
	alertRepo.AssertNotCalled(t, "Create")
}

func TestEngine_RunScan_LowStockCreatesAlert(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	productID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, 5).Return([]*businessDomain.Product{
		{ID: productID, Name: "Widget", Stock: 2},
	}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	alertRepo.On("FindLive", mock.Anything, alertDomain.AlertTypeLowStock, productID).
		Return(nil, alertDomain.ErrAlertNotFound)
	alertRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *alertDomain.Alert) bool {
		return a.Type == alertDomain.AlertTypeLowStock &&
			a.RefID == productID &&
			a.Severity == alertDomain.SeverityWarning &&
			!a.Delivered
	})).Return(nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Created[alertDomain.AlertTypeLowStock])
	alertRepo.AssertExpectations(t)
}

func TestEngine_RunScan_IsIdempotent(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	productID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, 5).Return([]*businessDomain.Product{
		{ID: productID, Name: "Widget", Stock: 2},
	}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	// A live alert already exists, so the scan must not create another.
	existing := alertDomain.NewAlert(
		alertDomain.AlertTypeLowStock, productID, "low", alertDomain.SeverityWarning,
	)
	alertRepo.On("FindLive", mock.Anything, alertDomain.AlertTypeLowStock, productID).
		Return(existing, nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	alertRepo.AssertNotCalled(t, "Create")
}

func TestEngine_RunScan_AcknowledgedAlertRetriggers(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	productID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, 5).Return([]*businessDomain.Product{
		{ID: productID, Name: "Widget", Stock: 2},
	}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	// The previous alert was acknowledged, so no live alert exists and the
	// still-true condition fires a fresh one.
	alertRepo.On("FindLive", mock.Anything, alertDomain.AlertTypeLowStock, productID).
		Return(nil, alertDomain.ErrAlertNotFound)
	alertRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created[alertDomain.AlertTypeLowStock])
	alertRepo.AssertExpectations(t)
}

func TestEngine_RunScan_NewOrderDoesNotRetriggerAfterAck(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	orderID := uuid.Must(uuid.NewV7())
	clientID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return([]*businessDomain.Product{}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{
			{ID: orderID, ClientID: clientID, ClientName: "Maria", Total: 100},
		}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	// An acknowledged new_order alert still counts as "already alerted".
	alertRepo.On("ExistsAny", mock.Anything, alertDomain.AlertTypeNewOrder, orderID).
		Return(true, nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	alertRepo.AssertNotCalled(t, "Create")
	enqueuer.AssertNotCalled(t, "Enqueue")
}

func TestEngine_RunScan_NewOrderEnqueuesAdminMessage(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	orderID := uuid.Must(uuid.NewV7())
	clientID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return([]*businessDomain.Product{}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{
			{ID: orderID, ClientID: clientID, ClientName: "Maria", Total: 150.50},
		}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	alertRepo.On("ExistsAny", mock.Anything, alertDomain.AlertTypeNewOrder, orderID).
		Return(false, nil)
	alertRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *alertDomain.Alert) bool {
		return a.Type == alertDomain.AlertTypeNewOrder && a.RefID == orderID
	})).Return(nil)

	message := messageDomain.NewOutboundMessage(
		messageDomain.ChannelWhatsApp,
		"+5511999999999",
		messageDomain.TemplateAdminNewOrder,
		messageDomain.Payload{},
		nil,
	)
	enqueuer.On(
		"Enqueue",
		mock.Anything,
		messageDomain.ChannelWhatsApp,
		"+5511999999999",
		messageDomain.TemplateAdminNewOrder,
		mock.MatchedBy(func(p messageDomain.Payload) bool {
			return p["order_id"] == orderID.String() && p["client_name"] == "Maria"
		}),
		(*uuid.UUID)(nil),
	).Return(message, nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created[alertDomain.AlertTypeNewOrder])
	enqueuer.AssertExpectations(t)
}

func TestEngine_RunScan_EnqueueFailureDoesNotFailScan(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	orderID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return([]*businessDomain.Product{}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{
			{ID: orderID, ClientName: "Maria", Total: 10},
		}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	alertRepo.On("ExistsAny", mock.Anything, alertDomain.AlertTypeNewOrder, orderID).
		Return(false, nil)
	alertRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	enqueuer.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("queue unavailable"))

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	// The alert still counts as created even though the message was lost.
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Created[alertDomain.AlertTypeNewOrder])
	assert.Empty(t, result.Failed)
}

func TestEngine_RunScan_RuleFailureIsIsolated(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	clientID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return(nil, errors.New("products table unavailable"))
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{
			{ID: clientID, Name: "Maria", Debt: 500},
		}, nil)

	alertRepo.On("FindLive", mock.Anything, alertDomain.AlertTypeOverduePayment, clientID).
		Return(nil, alertDomain.ErrAlertNotFound)
	alertRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *alertDomain.Alert) bool {
		return a.Type == alertDomain.AlertTypeOverduePayment &&
			a.Severity == alertDomain.SeverityCritical
	})).Return(nil)

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	// The failed rule is reported, the other rules still ran.
	assert.NoError(t, err)
	assert.Equal(t, []string{string(alertDomain.AlertTypeLowStock)}, result.Failed)
	assert.Equal(t, 1, result.Created[alertDomain.AlertTypeOverduePayment])
	alertRepo.AssertExpectations(t)
}

func TestEngine_RunScan_ConcurrentInsertConflictIsNoOp(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	enqueuer := &MockMessageEnqueuer{}
	products := &MockProductSource{}
	orders := &MockOrderSource{}
	clients := &MockClientSource{}

	productID := uuid.Must(uuid.NewV7())
	products.On("ListLowStock", mock.Anything, mock.Anything).
		Return([]*businessDomain.Product{
			{ID: productID, Name: "Widget", Stock: 1},
		}, nil)
	orders.On("ListOverdueDeliveries", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListStaleReservations", mock.Anything, mock.Anything).
		Return([]*businessDomain.Order{}, nil)
	orders.On("ListRecentOrders", mock.Anything, recentOrderWindow).
		Return([]*businessDomain.Order{}, nil)
	clients.On("ListOverdueDebtors", mock.Anything, mock.Anything).
		Return([]*businessDomain.Client{}, nil)

	// Another scan won the race between the existence check and the insert.
	alertRepo.On("FindLive", mock.Anything, alertDomain.AlertTypeLowStock, productID).
		Return(nil, alertDomain.ErrAlertNotFound)
	alertRepo.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.Wrap(apperrors.ErrConflict, "alert already exists"))

	engine := newTestEngine(alertRepo, enqueuer, products, orders, clients)

	result, err := engine.RunScan(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestEngine_CountUndelivered(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	alertRepo.On("CountUndelivered", mock.Anything).Return(int64(7), nil)

	engine := newTestEngine(alertRepo, &MockMessageEnqueuer{}, &MockProductSource{}, &MockOrderSource{}, &MockClientSource{})

	count, err := engine.CountUndelivered(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestEngine_MarkDelivered(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	alertID := uuid.Must(uuid.NewV7())
	alertRepo.On("MarkDelivered", mock.Anything, alertID).Return(nil)

	engine := newTestEngine(alertRepo, &MockMessageEnqueuer{}, &MockProductSource{}, &MockOrderSource{}, &MockClientSource{})

	err := engine.MarkDelivered(context.Background(), alertID)

	assert.NoError(t, err)
	alertRepo.AssertExpectations(t)
}

func TestEngine_MarkDelivered_NotFound(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	alertID := uuid.Must(uuid.NewV7())
	alertRepo.On("MarkDelivered", mock.Anything, alertID).Return(alertDomain.ErrAlertNotFound)

	engine := newTestEngine(alertRepo, &MockMessageEnqueuer{}, &MockProductSource{}, &MockOrderSource{}, &MockClientSource{})

	err := engine.MarkDelivered(context.Background(), alertID)

	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestEngine_MarkAllDelivered(t *testing.T) {
	alertRepo := &MockAlertRepository{}
	alertRepo.On("MarkAllDelivered", mock.Anything).Return(int64(3), nil)

	engine := newTestEngine(alertRepo, &MockMessageEnqueuer{}, &MockProductSource{}, &MockOrderSource{}, &MockClientSource{})

	count, err := engine.MarkAllDelivered(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
