package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/notification"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/order"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/store"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendOrderNotification(ctx context.Context, n models.OrderNotification) models.NotificationResult {
	args := m.Called(ctx, n)
	return args.Get(0).(models.NotificationResult)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seed(t *testing.T) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	s.PutClient(models.Client{ID: 1, Name: "Alice", Email: "alice@example.com", Address: "1 Main St"})
	s.PutProduct(models.Product{ID: 1, Name: "Keyboard", Price: price("10.00"), StockQuantity: 50})
	s.PutProduct(models.Product{ID: 2, Name: "Mouse", Price: price("5.50"), StockQuantity: 5})
	return s
}

func stockOf(t *testing.T, s *store.Memory, id int64) int {
	t.Helper()
	p, err := s.Product(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func okNotifier() *mockNotifier {
	n := &mockNotifier{}
	n.On("SendOrderNotification", mock.Anything, mock.Anything).
		Return(models.NotificationResult{Success: true, Message: "ok", NotificationID: "n-1"})
	return n
}

func TestCreateOrderEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	history := notification.NewMemoryHistory()
	engine := order.NewEngine(s, notification.NewDispatcher(history))

	o, err := engine.CreateOrder(ctx, 1, "1 Main St", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, o.Status)
	assert.True(t, price("20.00").Equal(o.TotalAmount))
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Keyboard", o.Items[0].ProductName)
	assert.True(t, price("10.00").Equal(o.Items[0].Price))
	assert.Equal(t, 48, stockOf(t, s, 1))

	records, err := history.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, o.ID, records[0].OrderID)
	assert.Equal(t, "Order #1 has been created with total amount $20.00", records[0].Message)
	assert.Equal(t, models.NotificationStatusSent, records[0].Status)
	assert.NotEmpty(t, records[0].NotificationID)
}

func TestCreateOrderSendsNotificationDetails(t *testing.T) {
	s := seed(t)
	n := okNotifier()
	engine := order.NewEngine(s, n)

	o, err := engine.CreateOrder(context.Background(), 1, "", []models.CreateOrderItemRequest{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 2},
	})
	require.NoError(t, err)
	assert.True(t, price("21.00").Equal(o.TotalAmount))

	n.AssertNumberOfCalls(t, "SendOrderNotification", 1)
	sent := n.Calls[0].Arguments.Get(1).(models.OrderNotification)
	assert.Equal(t, o.ID, sent.OrderID)
	assert.Equal(t, int64(1), sent.ClientID)
	assert.Equal(t, "Alice", sent.ClientName)
	assert.Equal(t, "alice@example.com", sent.ClientEmail)
	assert.Equal(t, string(models.StatusPending), sent.Status)
	assert.True(t, o.TotalAmount.Equal(sent.TotalAmount))
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name     string
		clientID int64
		items    []models.CreateOrderItemRequest
		want     error
	}{
		{"unknown client", 99, []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}}, models.ErrClientNotFound},
		{"no items", 1, nil, models.ErrInvalidOrder},
		{"zero quantity", 1, []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 0}}, models.ErrValidation},
		{"negative quantity", 1, []models.CreateOrderItemRequest{{ProductID: 1, Quantity: -3}}, models.ErrValidation},
		{"unknown product", 1, []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}, {ProductID: 42, Quantity: 1}}, models.ErrProductNotFound},
		{"insufficient stock", 1, []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 6}}, models.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t)
			n := &mockNotifier{}
			engine := order.NewEngine(s, n)

			_, err := engine.CreateOrder(context.Background(), tt.clientID, "", tt.items)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, 50, stockOf(t, s, 1), "no partial reservation")
			assert.Equal(t, 5, stockOf(t, s, 2))
			orders, err := engine.GetAllOrders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, orders)
			n.AssertNotCalled(t, "SendOrderNotification", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrderRepeatedProductUsesRunningStock(t *testing.T) {
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	_, err := engine.CreateOrder(context.Background(), 1, "", []models.CreateOrderItemRequest{
		{ProductID: 2, Quantity: 3},
		{ProductID: 2, Quantity: 3},
	})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Equal(t, 5, stockOf(t, s, 2))

	o, err := engine.CreateOrder(context.Background(), 1, "", []models.CreateOrderItemRequest{
		{ProductID: 2, Quantity: 2},
		{ProductID: 2, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Len(t, o.Items, 2)
	assert.Equal(t, 0, stockOf(t, s, 2))
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.CreateOrder(context.Background(), 1, "", []models.CreateOrderItemRequest{{ProductID: 2, Quantity: 3}})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, stockOf(t, s, 2))
}

func TestConcurrentOrdersOppositeItemOrder(t *testing.T) {
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		items := []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}}
		if i%2 == 1 {
			items[0], items[1] = items[1], items[0]
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.CreateOrder(context.Background(), 1, "", items)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orders with overlapping products deadlocked")
	}

	orders, err := engine.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 5)
	assert.Equal(t, 0, stockOf(t, s, 2))
	assert.Equal(t, 45, stockOf(t, s, 1))
}

func TestFailedNotificationStillCommits(t *testing.T) {
	s := seed(t)
	n := &mockNotifier{}
	n.On("SendOrderNotification", mock.Anything, mock.Anything).
		Return(models.NotificationResult{Success: false, Message: "Failed to send notification: unavailable"})
	engine := order.NewEngine(s, n)

	o, err := engine.CreateOrder(context.Background(), 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 4}})
	require.NoError(t, err)

	stored, err := engine.GetOrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, 46, stockOf(t, s, 1))
	n.AssertExpectations(t)
}

func TestTotalIsFrozenAtCreation(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)

	s.PutProduct(models.Product{ID: 1, Name: "Keyboard", Price: price("99.99"), StockQuantity: 47})

	total, err := engine.CalculateOrderTotal(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, price("30.00").Equal(total))

	stored, err := engine.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, price("10.00").Equal(stored.Items[0].Price))

	_, err = engine.CalculateOrderTotal(ctx, 404)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	pub := &recordingPublisher{}
	engine := order.NewEngine(s, okNotifier(), order.WithPublisher(pub))

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)

	updated, err := engine.UpdateOrderStatus(ctx, o.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, updated.Status)

	_, err = engine.UpdateOrderStatus(ctx, o.ID, "LOST")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = engine.UpdateOrderStatus(ctx, 404, models.StatusShipped)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	_, err = engine.UpdateOrderStatus(ctx, o.ID, models.StatusDelivered)
	require.NoError(t, err)
	_, err = engine.UpdateOrderStatus(ctx, o.ID, models.StatusPending)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := engine.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Equal(t, 48, stockOf(t, s, 1), "status updates never touch stock")

	require.Len(t, pub.events, 3)
	assert.Equal(t, models.OrderCreated, pub.events[0].Type)
	assert.Equal(t, models.OrderStatusChanged, pub.events[1].Type)
	assert.Equal(t, models.StatusPending, pub.events[1].PreviousStatus)
	assert.Equal(t, models.StatusShipped, pub.events[1].Status)
	assert.Equal(t, "alice@example.com", pub.events[1].ClientEmail)
}

func TestUpdateToCancelledDoesNotRestock(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 5}})
	require.NoError(t, err)

	_, err = engine.UpdateOrderStatus(ctx, o.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 45, stockOf(t, s, 1))

	_, err = engine.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	pub := &recordingPublisher{}
	engine := order.NewEngine(s, okNotifier(), order.WithPublisher(pub))

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{
		{ProductID: 1, Quantity: 10},
		{ProductID: 2, Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, stockOf(t, s, 1))
	assert.Equal(t, 0, stockOf(t, s, 2))

	cancelled, err := engine.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, 50, stockOf(t, s, 1))
	assert.Equal(t, 5, stockOf(t, s, 2))

	_, err = engine.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 50, stockOf(t, s, 1), "second cancel must not restock again")

	_, err = engine.CancelOrder(ctx, 404)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, models.OrderCancelled, last.Type)
	assert.Equal(t, []models.OrderItemEvent{{ProductID: 1, Quantity: 10}, {ProductID: 2, Quantity: 5}}, last.Items)
}

func TestCancelDeliveredOrder(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	engine := order.NewEngine(s, okNotifier())

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	_, err = engine.UpdateOrderStatus(ctx, o.ID, models.StatusDelivered)
	require.NoError(t, err)

	_, err = engine.CancelOrder(ctx, o.ID)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "cannot cancel a delivered order")
	assert.Equal(t, 49, stockOf(t, s, 1))
}

func TestOrderQueries(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	s.PutClient(models.Client{ID: 2, Name: "Bob", Email: "bob@example.com"})
	engine := order.NewEngine(s, okNotifier())

	empty, err := engine.GetOrdersByClientID(ctx, 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	second, err := engine.CreateOrder(ctx, 2, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	third, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 2, Quantity: 1}})
	require.NoError(t, err)

	mine, err := engine.GetOrdersByClientID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first.ID, mine[0].ID)
	assert.Equal(t, third.ID, mine[1].ID)

	all, err := engine.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, second.ID, all[1].ID)

	_, err = engine.GetOrderByID(ctx, 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreationMessage(t *testing.T) {
	o := models.Order{ID: 7, TotalAmount: price("1234.5")}
	assert.Equal(t, "Order #7 has been created with total amount $1234.50", order.CreationMessage(o))
}

func TestConcurrentCancelAndDeliverSerialize(t *testing.T) {
	for round := 0; round < 50; round++ {
		ctx := context.Background()
		s := seed(t)
		engine := order.NewEngine(s, okNotifier())

		o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{
			{ProductID: 1, Quantity: 4},
			{ProductID: 2, Quantity: 2},
		})
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					_, errs[i] = engine.CancelOrder(ctx, o.ID)
				} else {
					_, errs[i] = engine.UpdateOrderStatus(ctx, o.ID, models.StatusDelivered)
				}
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		}
		require.Equal(t, 1, succeeded, "round %d", round)

		stored, err := engine.GetOrderByID(ctx, o.ID)
		require.NoError(t, err)
		switch stored.Status {
		case models.StatusCancelled:
			assert.Equal(t, 50, stockOf(t, s, 1))
			assert.Equal(t, 5, stockOf(t, s, 2))
		case models.StatusDelivered:
			assert.Equal(t, 46, stockOf(t, s, 1))
			assert.Equal(t, 3, stockOf(t, s, 2))
		default:
			t.Fatalf("unexpected status %s", stored.Status)
		}
	}
}

type ctxCheckingNotifier struct {
	err error
}

func (n *ctxCheckingNotifier) SendOrderNotification(ctx context.Context, _ models.OrderNotification) models.NotificationResult {
	n.err = ctx.Err()
	return models.NotificationResult{Success: true, Message: "ok", NotificationID: "n-1"}
}

func TestNotificationOutlivesCallerCancellation(t *testing.T) {
	s := seed(t)
	n := &ctxCheckingNotifier{}
	engine := order.NewEngine(s, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.NoError(t, n.err)
}

func TestEventsUseEngineClock(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	pub := &recordingPublisher{}
	engine := order.NewEngine(seed(t), okNotifier(), order.WithPublisher(pub), order.WithClock(func() time.Time { return at }))

	o, err := engine.CreateOrder(ctx, 1, "", []models.CreateOrderItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, at, o.OrderDate)
	_, err = engine.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	for _, event := range pub.events {
		assert.Equal(t, at, event.OccurredAt)
	}
}
