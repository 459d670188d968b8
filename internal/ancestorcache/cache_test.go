package ancestorcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
)

type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var pairs = []concept.AncestorPair{
	{AncestorID: 1, DescendantID: 10},
	{AncestorID: 2, DescendantID: 10},
	{AncestorID: 1, DescendantID: 11},
}

func countingLoader(calls *atomic.Int64) Loader {
	return func(context.Context) ([]concept.AncestorPair, error) {
		calls.Add(1)
		return pairs, nil
	}
}

func TestGetOrLoadCachesResult(t *testing.T) {
	kv := newMemKV()
	c := New(kv, time.Hour)
	var calls atomic.Int64
	ctx := context.Background()

	m, hit, err := c.GetOrLoad(ctx, "cdm", countingLoader(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
	got, ok := m.Ancestors(10)
	require.True(t, ok)
	assert.ElementsMatch(t, []int64{1, 2}, got)

	m, hit, err = c.GetOrLoad(ctx, "cdm", countingLoader(&calls))
	require.NoError(t, err)
	assert.True(t, hit)
	got, ok = m.Ancestors(11)
	require.True(t, ok)
	assert.Equal(t, []int64{1}, got)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, time.Hour, kv.ttls[buildKey("cdm")])
}

func TestScopesAreIndependent(t *testing.T) {
	c := New(newMemKV(), time.Minute)
	var calls atomic.Int64
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "a", countingLoader(&calls))
	require.NoError(t, err)
	_, _, err = c.GetOrLoad(ctx, "b", countingLoader(&calls))
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
	assert.NotEqual(t, buildKey("a"), buildKey("b"))
	assert.True(t, strings.HasPrefix(buildKey("a"), keyPrefix))
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	c := New(newMemKV(), time.Minute)
	var calls atomic.Int64
	release := make(chan struct{})
	load := func(ctx context.Context) ([]concept.AncestorPair, error) {
		calls.Add(1)
		<-release
		return pairs, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrLoad(context.Background(), "cdm", load)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
}

func TestCacheErrorFallsThroughToLoader(t *testing.T) {
	kv := newMemKV()
	kv.getErr = errors.New("redis down")
	c := New(kv, time.Minute)
	var calls atomic.Int64

	m, hit, err := c.GetOrLoad(context.Background(), "cdm", countingLoader(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
	_, ok := m.Ancestors(10)
	assert.True(t, ok)
	_, misses := c.Stats()
	assert.Positive(t, misses)
}

func TestLoaderErrorIsReturned(t *testing.T) {
	c := New(newMemKV(), time.Minute)
	_, _, err := c.GetOrLoad(context.Background(), "cdm", func(context.Context) ([]concept.AncestorPair, error) {
		return nil, errors.New("relation does not exist")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestInvalidate(t *testing.T) {
	kv := newMemKV()
	c := New(kv, time.Minute)
	var calls atomic.Int64
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "cdm", countingLoader(&calls))
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	_, hit, err := c.GetOrLoad(ctx, "cdm", countingLoader(&calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(2), calls.Load())
}
