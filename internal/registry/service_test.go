package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akbarsho/storefront-backend/pkg/docstore"
	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store:  docstore.NewMemoryStore(),
		Logger: logger.New(logger.Options{ServiceName: "registry-test"}),
	})
	require.NoError(t, err)
	return svc
}

func hoodie(qty int64) Candidate {
	return Candidate{
		ProductID:  "p-1",
		VariantKey: "color:Black|size:M",
		Quantity:   qty,
		UnitPrice:  1700,
		Title:      "Premium Hoodie — M / Black",
		Image:      "https://cdn.example.com/hoodie.png",
	}
}

func TestUpsertMergesOnSameKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, "user-1", hoodie(2))
	require.NoError(t, err)
	require.NotEmpty(t, first.LineID)

	repeat := hoodie(3)
	repeat.UnitPrice = 1800
	repeat.Title = "Premium Hoodie v2"
	merged, err := svc.Upsert(ctx, "user-1", repeat)
	require.NoError(t, err)

	require.Equal(t, first.LineID, merged.LineID)
	require.EqualValues(t, 5, merged.Quantity)
	require.EqualValues(t, 1800, merged.UnitPrice)
	require.Equal(t, "Premium Hoodie v2", merged.Title)

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.EqualValues(t, 5, lines[0].Quantity)
}

func TestUpsertDifferentVariantCreatesNewLine(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	other := hoodie(1)
	other.VariantKey = "color:White|size:S"
	_, err = svc.Upsert(ctx, "user-1", other)
	require.NoError(t, err)

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestUpsertEmptyVariantKeyIsDistinct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plain := hoodie(1)
	plain.VariantKey = ""
	_, err := svc.Upsert(ctx, "user-1", plain)
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestUpsertValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		userID    string
		candidate Candidate
	}{
		{"missing user", "", hoodie(1)},
		{"missing product", "user-1", Candidate{Quantity: 1, Title: "x"}},
		{"zero quantity", "user-1", hoodie(0)},
		{"negative price", "user-1", func() Candidate {
			c := hoodie(1)
			c.UnitPrice = -1
			return c
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tc.userID, tc.candidate)
			require.Error(t, err)
			coded := pkgerrors.As(err)
			require.NotNil(t, coded)
			require.Equal(t, pkgerrors.CodeValidation, coded.Code())
		})
	}
}

func TestRemoveByLineID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "user-1", line.LineID, "ignored"))

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestRemoveByProductAndVariant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	plain := hoodie(1)
	plain.VariantKey = ""
	_, err = svc.Upsert(ctx, "user-1", plain)
	require.NoError(t, err)

	// empty variantKey must match only the variant-less line
	require.NoError(t, svc.Remove(ctx, "user-1", "p-1", ""))

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "color:Black|size:M", lines[0].VariantKey)
}

func TestRemoveMissingLineIsNoop(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Remove(context.Background(), "user-1", "nothing-here", ""))
}

func TestSetQuantityRewritesOnlyQuantity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.Upsert(ctx, "user-1", hoodie(2))
	require.NoError(t, err)

	require.NoError(t, svc.SetQuantity(ctx, "user-1", line.LineID, 7, ""))

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.EqualValues(t, 7, lines[0].Quantity)
	require.EqualValues(t, 1700, lines[0].UnitPrice)
	require.Equal(t, line.Title, lines[0].Title)
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	line, err := svc.Upsert(ctx, "user-1", hoodie(2))
	require.NoError(t, err)

	require.NoError(t, svc.SetQuantity(ctx, "user-1", line.LineID, 0, ""))

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestClearRemovesEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)
	other := hoodie(1)
	other.ProductID = "p-2"
	_, err = svc.Upsert(ctx, "user-1", other)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "user-1"))

	lines, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestUsersAreIsolated(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	lines, err := svc.List(ctx, "user-2")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSubscribeDeliversImmediatelyAndOnChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	var deliveries [][]CartLine
	cancel, err := svc.Subscribe(ctx, "user-1", func(lines []CartLine) {
		deliveries = append(deliveries, lines)
	})
	require.NoError(t, err)
	defer cancel()

	require.Len(t, deliveries, 1)
	require.Len(t, deliveries[0], 1)

	_, err = svc.Upsert(ctx, "user-1", hoodie(2))
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	require.EqualValues(t, 3, deliveries[1][0].Quantity)

	cancel()
	_, err = svc.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
}

// snapshotHookStore runs a one-shot hook just before a ReadAll, opening the
// window between watch registration and the snapshot read.
type snapshotHookStore struct {
	docstore.Store
	hook func()
}

func (s *snapshotHookStore) ReadAll(ctx context.Context, userID, collection string) ([]docstore.Document, error) {
	if fn := s.hook; fn != nil {
		s.hook = nil
		fn()
	}
	return s.Store.ReadAll(ctx, userID, collection)
}

func TestSubscribeDoesNotMissWriteDuringSnapshot(t *testing.T) {
	mem := docstore.NewMemoryStore()
	logg := logger.New(logger.Options{ServiceName: "registry-test"})

	writer, err := NewService(ServiceParams{Store: mem, Logger: logg})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = writer.Upsert(ctx, "user-1", hoodie(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	hooked := &snapshotHookStore{Store: mem}
	hooked.hook = func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extra := hoodie(1)
			extra.ProductID = "p-2"
			if _, err := writer.Upsert(ctx, "user-1", extra); err != nil {
				t.Error(err)
			}
		}()
	}

	svc, err := NewService(ServiceParams{Store: hooked, Logger: logg})
	require.NoError(t, err)

	var mu sync.Mutex
	var deliveries [][]CartLine
	cancel, err := svc.Subscribe(ctx, "user-1", func(lines []CartLine) {
		mu.Lock()
		defer mu.Unlock()
		deliveries = append(deliveries, lines)
	})
	require.NoError(t, err)
	defer cancel()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, deliveries)

	last := deliveries[len(deliveries)-1]
	ids := make([]string, 0, len(last))
	for _, line := range last {
		ids = append(ids, line.ProductID)
	}
	require.Contains(t, ids, "p-2")
}

func TestFavoritesDuplicateAddConflicts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	fav := Favorite{ProductID: "p-1", Title: "Premium Hoodie", UnitPrice: 1000}
	_, err := svc.AddFavorite(ctx, "user-1", fav)
	require.NoError(t, err)

	_, err = svc.AddFavorite(ctx, "user-1", fav)
	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeConflict, coded.Code())
}

func TestFavoritesRemoveThenReAdd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	fav := Favorite{ProductID: "p-1", Title: "Premium Hoodie"}
	_, err := svc.AddFavorite(ctx, "user-1", fav)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveFavorite(ctx, "user-1", "p-1"))
	// idempotent
	require.NoError(t, svc.RemoveFavorite(ctx, "user-1", "p-1"))

	ok, err := svc.IsFavorite(ctx, "user-1", "p-1")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.AddFavorite(ctx, "user-1", fav)
	require.NoError(t, err)

	ok, err = svc.IsFavorite(ctx, "user-1", "p-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestListFavoritesKeepsInsertionOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"p-3", "p-1", "p-2"} {
		_, err := svc.AddFavorite(ctx, "user-1", Favorite{ProductID: id, Title: "Item " + id})
		require.NoError(t, err)
	}

	favorites, err := svc.ListFavorites(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, favorites, 3)
	require.Equal(t, "p-3", favorites[0].ProductID)
	require.Equal(t, "p-1", favorites[1].ProductID)
	require.Equal(t, "p-2", favorites[2].ProductID)
}

func TestSubscribeFavorites(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var deliveries [][]Favorite
	cancel, err := svc.SubscribeFavorites(ctx, "user-1", func(favs []Favorite) {
		deliveries = append(deliveries, favs)
	})
	require.NoError(t, err)
	defer cancel()

	require.Len(t, deliveries, 1)
	require.Empty(t, deliveries[0])

	_, err = svc.AddFavorite(ctx, "user-1", Favorite{ProductID: "p-9", Title: "Cap"})
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	require.Equal(t, "p-9", deliveries[1][0].ProductID)
}
