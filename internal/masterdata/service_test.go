package masterdata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

type memoryStore struct {
	warehouses []Warehouse
	products   []Product
	loads      atomic.Int32
}

func (m *memoryStore) ListWarehouses(context.Context) ([]Warehouse, error) {
	return m.warehouses, nil
}

func (m *memoryStore) GetWarehouse(_ context.Context, id int64) (Warehouse, error) {
	for _, w := range m.warehouses {
		if w.ID == id {
			return w, nil
		}
	}
	return Warehouse{}, ErrWarehouseNotFound
}

func (m *memoryStore) ListProducts(_ context.Context, category ledger.Category) ([]Product, error) {
	m.loads.Add(1)
	var out []Product
	for _, p := range m.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func newStore() *memoryStore {
	return &memoryStore{
		warehouses: []Warehouse{{ID: 1, Code: "MAIN", Name: "Main"}},
		products: []Product{
			{Category: ledger.CategoryReagent, ID: 1, Code: "R-1", Name: "Ethanol", Unit: "l"},
			{Category: ledger.CategoryConsumable, ID: 1, Code: "C-1", Name: "Gloves", Unit: "box"},
		},
	}
}

func newCache(t *testing.T) (*CatalogCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCatalogCache(client, time.Minute, nil), mr
}

func TestListProductsServesFromCache(t *testing.T) {
	store := newStore()
	cache, _ := newCache(t)
	svc := NewService(store, cache, nil)
	ctx := context.Background()

	first, err := svc.ListProducts(ctx, ledger.CategoryReagent)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ListProducts(ctx, ledger.CategoryReagent)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, store.loads.Load())

	all, err := svc.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.EqualValues(t, 2, store.loads.Load())
}

func TestInvalidateCatalogForcesReload(t *testing.T) {
	store := newStore()
	cache, mr := newCache(t)
	svc := NewService(store, cache, nil)
	ctx := context.Background()

	_, err := svc.Catalog(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateCatalog(ctx))

	ver, err := mr.Get(catalogVersionKey)
	require.NoError(t, err)
	require.Equal(t, "2", ver)

	_, err = svc.Catalog(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, store.loads.Load())
}

func TestCacheTTLExpiry(t *testing.T) {
	store := newStore()
	cache, mr := newCache(t)
	svc := NewService(store, cache, nil)
	ctx := context.Background()

	_, err := svc.Catalog(ctx)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.Catalog(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, store.loads.Load())
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	store := newStore()
	cache, _ := newCache(t)
	ctx := context.Background()

	gate := make(chan struct{})
	var wg sync.WaitGroup
	results := make([][]Product, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			products, err := cache.Products(ctx, "all", func(ctx context.Context) ([]Product, error) {
				<-gate
				return store.ListProducts(ctx, "")
			})
			require.NoError(t, err)
			results[i] = products
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.EqualValues(t, 1, store.loads.Load())
	for _, r := range results {
		require.Len(t, r, 2)
	}
}

func TestCatalogSurvivesRedisFailure(t *testing.T) {
	store := newStore()
	cache, mr := newCache(t)
	svc := NewService(store, cache, nil)
	ctx := context.Background()

	mr.SetError("LOADING redis is loading the dataset")
	all, err := svc.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	reagents, err := svc.ListProducts(ctx, ledger.CategoryReagent)
	require.NoError(t, err)
	require.Len(t, reagents, 1)
	require.EqualValues(t, 2, store.loads.Load())

	mr.SetError("")
	_, err = svc.Catalog(ctx)
	require.NoError(t, err)
	_, err = svc.Catalog(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, store.loads.Load())
}

func TestNilCacheReadsThrough(t *testing.T) {
	store := newStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Catalog(ctx)
	require.NoError(t, err)
	_, err = svc.Catalog(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, store.loads.Load())
	require.NoError(t, svc.InvalidateCatalog(ctx))
}

func TestListProductsRejectsUnknownCategory(t *testing.T) {
	svc := NewService(newStore(), nil, nil)
	_, err := svc.ListProducts(context.Background(), ledger.Category("solvent"))
	require.ErrorIs(t, err, ledger.ErrInvalidCategory)
}

func TestGetWarehouse(t *testing.T) {
	svc := NewService(newStore(), nil, nil)
	w, err := svc.GetWarehouse(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "MAIN", w.Code)

	_, err = svc.GetWarehouse(context.Background(), 0)
	require.ErrorIs(t, err, ErrWarehouseNotFound)
}
