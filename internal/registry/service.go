package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/metrics"
)

// ServiceParams groups dependencies for the line registry.
type ServiceParams struct {
	Store   docstore.Store
	Logger  *logger.Logger
	Metrics *metrics.OpMetrics
}

// Service owns cart lines and favorites for every user. Writes go through the
// document store; observers see a change only after the store confirms it.
type Service interface {
	Upsert(ctx context.Context, userID string, candidate Candidate) (CartLine, error)
	Remove(ctx context.Context, userID, identifier, variantKey string) error
	SetQuantity(ctx context.Context, userID, identifier string, quantity int64, variantKey string) error
	List(ctx context.Context, userID string) ([]CartLine, error)
	Clear(ctx context.Context, userID string) error
	Subscribe(ctx context.Context, userID string, onChange func([]CartLine)) (docstore.CancelFunc, error)

	AddFavorite(ctx context.Context, userID string, fav Favorite) (Favorite, error)
	RemoveFavorite(ctx context.Context, userID, productID string) error
	IsFavorite(ctx context.Context, userID, productID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]Favorite, error)
	SubscribeFavorites(ctx context.Context, userID string, onChange func([]Favorite)) (docstore.CancelFunc, error)
}

type service struct {
	store   docstore.Store
	logg    *logger.Logger
	metrics *metrics.OpMetrics
}

// NewService builds the registry with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document store is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Upsert merges a candidate into the cart: additive quantity, last-write-wins
// price and title on an existing (productId, variantKey) line, fresh line
// otherwise. Exactly one line per key survives the call.
func (s *service) Upsert(ctx context.Context, userID string, candidate Candidate) (CartLine, error) {
	start := time.Now()
	line, err := s.upsert(ctx, userID, candidate)
	s.observe("cart_upsert", start, err)
	return line, err
}

func (s *service) upsert(ctx context.Context, userID string, candidate Candidate) (CartLine, error) {
	if userID == "" {
		return CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if candidate.ProductID == "" {
		return CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if candidate.Quantity < 1 {
		return CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if candidate.UnitPrice < 0 {
		return CartLine{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}

	docs, err := s.store.ReadAll(ctx, userID, cartCollection)
	if err != nil {
		return CartLine{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart")
	}

	for _, doc := range docs {
		existing := lineFromDocument(doc)
		if existing.ProductID != candidate.ProductID || existing.VariantKey != candidate.VariantKey {
			continue
		}
		existing.Quantity += candidate.Quantity
		existing.UnitPrice = candidate.UnitPrice
		existing.Title = candidate.Title
		existing.Image = candidate.Image
		if _, err := s.store.Write(ctx, userID, cartCollection, existing.LineID, lineFields(existing)); err != nil {
			return CartLine{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merging cart line")
		}
		return existing, nil
	}

	line := CartLine{
		ProductID:  candidate.ProductID,
		VariantKey: candidate.VariantKey,
		Quantity:   candidate.Quantity,
		UnitPrice:  candidate.UnitPrice,
		Title:      candidate.Title,
		Image:      candidate.Image,
		AddedAt:    time.Now().UTC(),
	}
	id, err := s.store.Write(ctx, userID, cartCollection, "", lineFields(line))
	if err != nil {
		return CartLine{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating cart line")
	}
	line.LineID = id
	return line, nil
}

// Remove drops at most one line. The identifier is a line id (exact match,
// variantKey ignored) or a product id paired with variantKey, where the empty
// key matches only variant-less lines. Absent lines are a successful no-op.
func (s *service) Remove(ctx context.Context, userID, identifier, variantKey string) error {
	start := time.Now()
	err := s.remove(ctx, userID, identifier, variantKey)
	s.observe("cart_remove", start, err)
	return err
}

func (s *service) remove(ctx context.Context, userID, identifier, variantKey string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if identifier == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}

	match, err := s.findLine(ctx, userID, identifier, variantKey)
	if err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	if err := s.store.Delete(ctx, userID, cartCollection, match.LineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing cart line")
	}
	return nil
}

// SetQuantity rewrites a line's quantity using the same matching rule as
// Remove. A target of zero or less removes the line instead of persisting a
// non-positive quantity.
func (s *service) SetQuantity(ctx context.Context, userID, identifier string, quantity int64, variantKey string) error {
	start := time.Now()
	err := s.setQuantity(ctx, userID, identifier, quantity, variantKey)
	s.observe("cart_set_quantity", start, err)
	return err
}

func (s *service) setQuantity(ctx context.Context, userID, identifier string, quantity int64, variantKey string) error {
	if quantity <= 0 {
		return s.remove(ctx, userID, identifier, variantKey)
	}
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if identifier == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "identifier is required")
	}

	match, err := s.findLine(ctx, userID, identifier, variantKey)
	if err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	match.Quantity = quantity
	if _, err := s.store.Write(ctx, userID, cartCollection, match.LineID, lineFields(*match)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating cart quantity")
	}
	return nil
}

// List returns the user's cart lines in insertion order.
func (s *service) List(ctx context.Context, userID string) ([]CartLine, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	docs, err := s.store.ReadAll(ctx, userID, cartCollection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart")
	}
	return linesFromDocuments(docs), nil
}

// Clear removes every line in the user's cart. Per-line failures are
// aggregated so a partial clear is still reported.
func (s *service) Clear(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.clear(ctx, userID)
	s.observe("cart_clear", start, err)
	return err
}

func (s *service) clear(ctx context.Context, userID string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	docs, err := s.store.ReadAll(ctx, userID, cartCollection)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart")
	}
	var errs error
	for _, doc := range docs {
		if err := s.store.Delete(ctx, userID, cartCollection, doc.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "clearing cart")
	}
	return nil
}

// Subscribe delivers the current line set immediately, then again after every
// confirmed write by any session. Cancelling stops further callbacks.
func (s *service) Subscribe(ctx context.Context, userID string, onChange func([]CartLine)) (docstore.CancelFunc, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if onChange == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "onChange callback is required")
	}

	// The watch registers before the snapshot read so no write can land
	// unseen between the two; mu holds watch deliveries back until the
	// snapshot has gone out, keeping old-before-new ordering.
	var mu sync.Mutex
	mu.Lock()
	cancel, err := s.store.Watch(ctx, userID, cartCollection, func(docs []docstore.Document) {
		mu.Lock()
		defer mu.Unlock()
		onChange(linesFromDocuments(docs))
	})
	if err != nil {
		mu.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watching cart")
	}

	docs, err := s.store.ReadAll(ctx, userID, cartCollection)
	if err != nil {
		mu.Unlock()
		cancel()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart")
	}

	onChange(linesFromDocuments(docs))
	mu.Unlock()
	s.metrics.SubscriberOpened(cartCollection)
	return func() {
		cancel()
		s.metrics.SubscriberClosed(cartCollection)
	}, nil
}

// AddFavorite stores a liked product. Favorites are unique per product id;
// re-adding an existing one fails with a conflict.
func (s *service) AddFavorite(ctx context.Context, userID string, fav Favorite) (Favorite, error) {
	start := time.Now()
	out, err := s.addFavorite(ctx, userID, fav)
	s.observe("favorites_add", start, err)
	return out, err
}

func (s *service) addFavorite(ctx context.Context, userID string, fav Favorite) (Favorite, error) {
	if userID == "" {
		return Favorite{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if fav.ProductID == "" {
		return Favorite{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	existing, err := s.store.ReadOne(ctx, userID, favoritesCollection, fav.ProductID)
	if err != nil {
		if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
			return Favorite{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading favorite")
		}
	}
	if existing != nil {
		return Favorite{}, pkgerrors.New(pkgerrors.CodeConflict, "product is already a favorite")
	}

	fav.AddedAt = time.Now().UTC()
	if _, err := s.store.Write(ctx, userID, favoritesCollection, fav.ProductID, favoriteFields(fav)); err != nil {
		return Favorite{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing favorite")
	}
	return fav, nil
}

// RemoveFavorite drops the entry regardless of prior state.
func (s *service) RemoveFavorite(ctx context.Context, userID, productID string) error {
	start := time.Now()
	err := s.removeFavorite(ctx, userID, productID)
	s.observe("favorites_remove", start, err)
	return err
}

func (s *service) removeFavorite(ctx context.Context, userID, productID string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.store.Delete(ctx, userID, favoritesCollection, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "removing favorite")
	}
	return nil
}

// IsFavorite reports whether the product is in the user's favorites.
func (s *service) IsFavorite(ctx context.Context, userID, productID string) (bool, error) {
	if userID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	_, err := s.store.ReadOne(ctx, userID, favoritesCollection, productID)
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading favorite")
	}
	return true, nil
}

// ListFavorites returns the user's favorites in insertion order.
func (s *service) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	docs, err := s.store.ReadAll(ctx, userID, favoritesCollection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading favorites")
	}
	return favoritesFromDocuments(docs), nil
}

// SubscribeFavorites mirrors Subscribe for the favorites collection.
func (s *service) SubscribeFavorites(ctx context.Context, userID string, onChange func([]Favorite)) (docstore.CancelFunc, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if onChange == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "onChange callback is required")
	}

	var mu sync.Mutex
	mu.Lock()
	cancel, err := s.store.Watch(ctx, userID, favoritesCollection, func(docs []docstore.Document) {
		mu.Lock()
		defer mu.Unlock()
		onChange(favoritesFromDocuments(docs))
	})
	if err != nil {
		mu.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "watching favorites")
	}

	docs, err := s.store.ReadAll(ctx, userID, favoritesCollection)
	if err != nil {
		mu.Unlock()
		cancel()
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading favorites")
	}

	onChange(favoritesFromDocuments(docs))
	mu.Unlock()
	s.metrics.SubscriberOpened(favoritesCollection)
	return func() {
		cancel()
		s.metrics.SubscriberClosed(favoritesCollection)
	}, nil
}

// findLine locates at most one line by id or by (productId, variantKey).
func (s *service) findLine(ctx context.Context, userID, identifier, variantKey string) (*CartLine, error) {
	docs, err := s.store.ReadAll(ctx, userID, cartCollection)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart")
	}

	lines := linesFromDocuments(docs)
	for i := range lines {
		if lines[i].LineID == identifier {
			return &lines[i], nil
		}
	}
	for i := range lines {
		if lines[i].ProductID == identifier && lines[i].VariantKey == variantKey {
			return &lines[i], nil
		}
	}
	return nil, nil
}

func (s *service) observe(op string, start time.Time, err error) {
	s.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(op)
		return
	}
	s.metrics.IncSuccess(op)
}
