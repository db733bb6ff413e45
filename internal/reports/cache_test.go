package reports

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ams/internal/shared"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Hour, nil), mr
}

func TestExportIsCached(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, repo := newTestService(t, cache)
	repo.seed("income", "credit", "120", day(6, 1))
	rep, err := svc.Generate(context.Background(), Input{Type: TypeIncome, StartDate: day(6, 1), EndDate: day(6, 30), Format: FormatExcel})
	require.NoError(t, err)

	first, err := svc.Export(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Equal(t, FormatExcel, first.Format)
	require.Equal(t, "120.00", first.Data["income_total"])
	require.Equal(t, "/api/reports/1/export/excel", first.DownloadURL)
	require.True(t, mr.Exists(exportKey(rep.ID)))
	require.Equal(t, time.Hour, mr.TTL(exportKey(rep.ID)))

	second, err := svc.Export(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.getCalls())
}

func TestExportMissingReportIsNotCached(t *testing.T) {
	cache, mr := newTestCache(t)
	svc, _ := newTestService(t, cache)

	_, err := svc.Export(context.Background(), 77)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.False(t, mr.Exists(exportKey(77)))
}

func TestConcurrentMissesShareLoader(t *testing.T) {
	cache, _ := newTestCache(t)
	var (
		mu    sync.Mutex
		calls int
	)
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return map[string]string{"k": "v"}, nil
	}

	var wg sync.WaitGroup
	results := make([]map[string]string, 4)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = cache.FetchJSON(context.Background(), "ams:test", &results[i], loader)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, 1, calls)
	for i, r := range results {
		require.NoError(t, errs[i])
		require.Equal(t, "v", r["k"])
	}
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	cache, mr := newTestCache(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	loader := func(ctx context.Context) (any, error) {
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]string{"k": "v"}, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		var out map[string]string
		leaderErr <- cache.FetchJSON(leaderCtx, "ams:test", &out, loader)
	}()
	<-entered

	var out map[string]string
	followerErr := make(chan error, 1)
	go func() {
		followerErr <- cache.FetchJSON(context.Background(), "ams:test", &out, loader)
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	require.NoError(t, <-followerErr)
	require.Equal(t, "v", out["k"])
	require.True(t, mr.Exists("ams:test"))
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	var out map[string]int
	require.NoError(t, c.FetchJSON(context.Background(), "x", &out, func(context.Context) (any, error) {
		return map[string]int{"n": 1}, nil
	}))
	require.Equal(t, 1, out["n"])
}
