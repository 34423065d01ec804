package orders

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/akbarsho/storefront-backend/internal/identity"
	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/metrics"
)

// Publisher is the slice of the Pub/Sub client the assembler needs.
type Publisher interface {
	Publish(ctx context.Context, data []byte) (string, error)
}

// ServiceParams groups dependencies for the order assembler.
type ServiceParams struct {
	Store     docstore.Store
	Registry  registry.Service
	Publisher Publisher
	Logger    *logger.Logger
	Metrics   *metrics.OpMetrics
}

// Service assembles and reads orders. The user-namespace order record is the
// source of truth for "did the customer complete checkout"; the global mirror
// and the consumed-line removals are best effort after that point.
type Service interface {
	PlaceOrder(ctx context.Context, user identity.User, input PlaceOrderInput) (string, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, userID, orderID string, status Status) error
}

type service struct {
	store     docstore.Store
	registry  registry.Service
	publisher Publisher
	logg      *logger.Logger
	metrics   *metrics.OpMetrics
}

// NewService builds the order assembler with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "registry is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		store:     params.Store,
		registry:  params.Registry,
		publisher: params.Publisher,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// PlaceOrder validates the snapshot, persists the order, then mirrors,
// publishes and empties the consumed lines. Only the user-namespace write can
// fail the call; everything after it is logged, never rolled back.
func (s *service) PlaceOrder(ctx context.Context, user identity.User, input PlaceOrderInput) (string, error) {
	start := time.Now()
	orderID, err := s.placeOrder(ctx, user, input)
	s.metrics.ObserveDuration("order_place", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("order_place")
	} else {
		s.metrics.IncSuccess("order_place")
	}
	return orderID, err
}

func (s *service) placeOrder(ctx context.Context, user identity.User, input PlaceOrderInput) (string, error) {
	if user.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Lines) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}
	shipping := input.ShippingInfo.Sanitized()
	if !shipping.Complete() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipping info is incomplete")
	}
	if input.PaymentMethod == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	for _, line := range input.Lines {
		if line.Quantity < 1 {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
		}
	}

	var total int64
	for _, line := range input.Lines {
		total += line.UnitPrice * line.Quantity
	}

	order := Order{
		Lines:         input.Lines,
		ShippingInfo:  shipping,
		PaymentMethod: input.PaymentMethod,
		TotalPrice:    total,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	orderID, err := s.store.Write(ctx, user.ID, ordersCollection, "", orderFields(order))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order")
	}
	order.OrderID = orderID

	ctx = s.logg.WithOrderID(s.logg.WithUserID(ctx, user.ID), orderID)
	s.logg.Info(ctx, "order placed")

	s.mirrorOrder(ctx, user, order)
	s.publishPlaced(ctx, user, order)
	s.removeConsumedLines(ctx, user.ID, input.Lines)

	return orderID, nil
}

// mirrorOrder copies the order into the global index with denormalized owner
// fields for operational visibility. Failure never unwinds the placed order.
func (s *service) mirrorOrder(ctx context.Context, user identity.User, order Order) {
	fields := orderFields(order)
	fields["userId"] = user.ID
	fields["userEmail"] = user.Email
	fields["userName"] = user.DisplayName()
	fields["userOrderId"] = order.OrderID

	if _, err := s.store.Write(ctx, "", ordersCollection, "", fields); err != nil {
		s.logg.Warn(ctx, "global order mirror failed")
	}
}

func (s *service) publishPlaced(ctx context.Context, user identity.User, order Order) {
	if s.publisher == nil {
		return
	}
	event := OrderPlacedEvent{
		OrderID:       order.OrderID,
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.DisplayName(),
		TotalPrice:    order.TotalPrice,
		PaymentMethod: order.PaymentMethod,
		LineCount:     len(order.Lines),
		CreatedAt:     order.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logg.Error(ctx, "encoding order event", err)
		return
	}
	if _, err := s.publisher.Publish(ctx, data); err != nil {
		s.logg.Warn(ctx, "publishing order event failed")
	}
}

// removeConsumedLines empties the snapshot out of the cart, line by line.
// A line id is preferred; productId+variantKey is the fallback for snapshots
// captured before the id existed.
func (s *service) removeConsumedLines(ctx context.Context, userID string, lines []registry.CartLine) {
	for _, line := range lines {
		identifier := line.LineID
		if identifier == "" {
			identifier = line.ProductID
		}
		if err := s.registry.Remove(ctx, userID, identifier, line.VariantKey); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "line_id", identifier), "removing consumed cart line failed")
		}
	}
}

// ListOrders returns the user's order history, newest first.
func (s *service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	docs, err := s.store.ReadAll(ctx, userID, ordersCollection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading orders")
	}
	out := make([]Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, orderFromDocument(doc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetOrder returns one order or a NOT_FOUND error.
func (s *service) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	if userID == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if orderID == "" {
		return Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	doc, err := s.store.ReadOne(ctx, userID, ordersCollection, orderID)
	if err != nil {
		return Order{}, err
	}
	return orderFromDocument(*doc), nil
}

// UpdateStatus moves an order through its lifecycle, rejecting transitions
// out of terminal states.
func (s *service) UpdateStatus(ctx context.Context, userID, orderID string, status Status) error {
	if !status.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status "+string(status))
	}
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if order.Status == status {
		return nil
	}
	if !CanTransition(order.Status, status) {
		return pkgerrors.New(pkgerrors.CodeConflict,
			"cannot move order from "+string(order.Status)+" to "+string(status))
	}

	order.Status = status
	if _, err := s.store.Write(ctx, userID, ordersCollection, orderID, orderFields(order)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating order status")
	}
	return nil
}
