package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akbarsho/storefront-backend/internal/identity"
	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/types"
)

type fixture struct {
	store    docstore.Store
	registry registry.Service
	orders   Service
	pub      *stubPublisher
}

type stubPublisher struct {
	events [][]byte
	err    error
}

func (p *stubPublisher) Publish(_ context.Context, data []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, data)
	return "msg-1", nil
}

// failingStore fails writes to a single (userID, collection) target.
type failingStore struct {
	docstore.Store
	failUserID     string
	failCollection string
}

func (f *failingStore) Write(ctx context.Context, userID, collection, docID string, fields map[string]any) (string, error) {
	if userID == f.failUserID && collection == f.failCollection {
		return "", errors.New("store unavailable")
	}
	return f.Store.Write(ctx, userID, collection, docID, fields)
}

func newFixture(t *testing.T, store docstore.Store) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test"})

	reg, err := registry.NewService(registry.ServiceParams{
		Store:  store,
		Logger: logg,
	})
	require.NoError(t, err)

	pub := &stubPublisher{}
	svc, err := NewService(ServiceParams{
		Store:     store,
		Registry:  reg,
		Publisher: pub,
		Logger:    logg,
	})
	require.NoError(t, err)

	return &fixture{store: store, registry: reg, orders: svc, pub: pub}
}

func testUser() identity.User {
	return identity.User{
		ID:        "user-1",
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "Doe",
	}
}

func testShipping() types.ShippingInfo {
	return types.ShippingInfo{
		FirstName:  "Jo",
		LastName:   "Doe",
		Email:      "jo@example.com",
		Phone:      "+1-555-0100",
		Address:    "1 Main St",
		City:       "Springfield",
		PostalCode: "00001",
		Country:    "US",
	}
}

func TestPlaceOrderEndToEnd(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	ctx := context.Background()

	line, err := f.registry.Upsert(ctx, "user-1", registry.Candidate{
		ProductID:  "p-1",
		VariantKey: "size:M",
		Quantity:   3,
		UnitPrice:  1000,
		Title:      "Premium Hoodie — M",
	})
	require.NoError(t, err)

	snapshot, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)

	orderID, err := f.orders.PlaceOrder(ctx, testUser(), PlaceOrderInput{
		ShippingInfo:  testShipping(),
		PaymentMethod: "card",
		Lines:         snapshot,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	// order readable with the computed total
	order, err := f.orders.GetOrder(ctx, "user-1", orderID)
	require.NoError(t, err)
	require.EqualValues(t, 3000, order.TotalPrice)
	require.Equal(t, StatusPending, order.Status)
	require.Len(t, order.Lines, 1)
	require.Equal(t, line.LineID, order.Lines[0].LineID)

	// cart emptied
	lines, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)

	// global mirror with denormalized owner fields
	mirrored, err := f.store.ReadAll(ctx, "", "orders")
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	require.Equal(t, "user-1", mirrored[0].String("userId"))
	require.Equal(t, "jo@example.com", mirrored[0].String("userEmail"))
	require.Equal(t, "Jo Doe", mirrored[0].String("userName"))
	require.Equal(t, orderID, mirrored[0].String("userOrderId"))

	// event published
	require.Len(t, f.pub.events, 1)
	var event OrderPlacedEvent
	require.NoError(t, json.Unmarshal(f.pub.events[0], &event))
	require.Equal(t, orderID, event.OrderID)
	require.EqualValues(t, 3000, event.TotalPrice)
}

func TestPlaceOrderEmptyLinesRejectedBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	ctx := context.Background()

	_, err := f.orders.PlaceOrder(ctx, testUser(), PlaceOrderInput{
		ShippingInfo:  testShipping(),
		PaymentMethod: "card",
	})
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeValidation, coded.Code())

	orders, err := f.orders.ListOrders(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, orders)
	mirrored, err := f.store.ReadAll(ctx, "", "orders")
	require.NoError(t, err)
	require.Empty(t, mirrored)
}

func TestPlaceOrderIncompleteShippingRejected(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())

	shipping := testShipping()
	shipping.City = "   "
	_, err := f.orders.PlaceOrder(context.Background(), testUser(), PlaceOrderInput{
		ShippingInfo:  shipping,
		PaymentMethod: "card",
		Lines:         []registry.CartLine{{LineID: "l1", ProductID: "p-1", Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeValidation, coded.Code())
}

func TestPlaceOrderStoreFailureLeavesCartIntact(t *testing.T) {
	mem := docstore.NewMemoryStore()
	f := newFixture(t, &failingStore{Store: mem, failUserID: "user-1", failCollection: "orders"})
	ctx := context.Background()

	_, err := f.registry.Upsert(ctx, "user-1", registry.Candidate{
		ProductID: "p-1",
		Quantity:  2,
		UnitPrice: 500,
		Title:     "Mug",
	})
	require.NoError(t, err)

	snapshot, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, testUser(), PlaceOrderInput{
		ShippingInfo:  testShipping(),
		PaymentMethod: "card",
		Lines:         snapshot,
	})
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeDependency, coded.Code())
	require.True(t, pkgerrors.IsRetryable(err))

	lines, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1, "failed checkout must not consume cart lines")
}

func TestPlaceOrderPublisherFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	f.pub.err = errors.New("broker down")
	ctx := context.Background()

	_, err := f.registry.Upsert(ctx, "user-1", registry.Candidate{
		ProductID: "p-1",
		Quantity:  1,
		UnitPrice: 100,
		Title:     "Mug",
	})
	require.NoError(t, err)
	snapshot, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)

	orderID, err := f.orders.PlaceOrder(ctx, testUser(), PlaceOrderInput{
		ShippingInfo:  testShipping(),
		PaymentMethod: "cash_on_delivery",
		Lines:         snapshot,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	lines, err := f.registry.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestListOrdersNewestFirst(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	ctx := context.Background()
	user := testUser()

	for range 2 {
		_, err := f.registry.Upsert(ctx, user.ID, registry.Candidate{
			ProductID: "p-1",
			Quantity:  1,
			UnitPrice: 100,
			Title:     "Mug",
		})
		require.NoError(t, err)
		snapshot, err := f.registry.List(ctx, user.ID)
		require.NoError(t, err)
		_, err = f.orders.PlaceOrder(ctx, user, PlaceOrderInput{
			ShippingInfo:  testShipping(),
			PaymentMethod: "card",
			Lines:         snapshot,
		})
		require.NoError(t, err)
	}

	orders, err := f.orders.ListOrders(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.False(t, orders[0].CreatedAt.Before(orders[1].CreatedAt))
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())

	_, err := f.orders.GetOrder(context.Background(), "user-1", "missing")
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeNotFound, coded.Code())
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	ctx := context.Background()
	user := testUser()

	_, err := f.registry.Upsert(ctx, user.ID, registry.Candidate{
		ProductID: "p-1",
		Quantity:  1,
		UnitPrice: 100,
		Title:     "Mug",
	})
	require.NoError(t, err)
	snapshot, err := f.registry.List(ctx, user.ID)
	require.NoError(t, err)
	orderID, err := f.orders.PlaceOrder(ctx, user, PlaceOrderInput{
		ShippingInfo:  testShipping(),
		PaymentMethod: "card",
		Lines:         snapshot,
	})
	require.NoError(t, err)

	require.NoError(t, f.orders.UpdateStatus(ctx, user.ID, orderID, StatusProcessing))
	require.NoError(t, f.orders.UpdateStatus(ctx, user.ID, orderID, StatusCompleted))

	// completed is terminal
	err = f.orders.UpdateStatus(ctx, user.ID, orderID, StatusCancelled)
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeConflict, coded.Code())

	order, err := f.orders.GetOrder(ctx, user.ID, orderID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, order.Status)
}

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
