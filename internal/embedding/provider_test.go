package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-fit/internal/metrics"
)

type fakeEncoder struct {
	mu     sync.Mutex
	calls  []string
	encode func(ctx context.Context, text string) ([]float32, error)

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.encode != nil {
		return f.encode(ctx, text)
	}
	return []float32{3, 4}, nil
}

func (f *fakeEncoder) Dimension() int { return 2 }
func (f *fakeEncoder) Model() string  { return "fake-model" }
func (f *fakeEncoder) Close() error   { return nil }

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedNormalizesAndCaches(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	p := NewProvider(Ready("fake", enc), Config{})

	v1, err := p.Embed(context.Background(), "  Senior Go   Engineer ")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(v1), 1e-6)
	assert.InDelta(t, 0.6, v1[0], 1e-6)
	assert.InDelta(t, 0.8, v1[1], 1e-6)

	v2, err := p.Embed(context.Background(), "senior go engineer")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, enc.callCount())

	_, err = p.Embed(context.Background(), "staff rust engineer")
	require.NoError(t, err)
	assert.Equal(t, 2, enc.callCount())
	assert.Equal(t, 2, p.Stats().CacheEntries)
}

func TestEmbedReturnsCopies(t *testing.T) {
	t.Parallel()

	p := NewProvider(Ready("fake", &fakeEncoder{}), Config{})

	v1, err := p.Embed(context.Background(), "golang")
	require.NoError(t, err)
	v1[0] = 42

	v2, err := p.Embed(context.Background(), "golang")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v2[0], 1e-6)
}

func TestEmbedAveragesChunks(t *testing.T) {
	t.Parallel()

	words := make([]string, 25)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}

	enc := &fakeEncoder{encode: func(_ context.Context, text string) ([]float32, error) {
		if strings.HasPrefix(text, "w0 ") {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	}}
	p := NewProvider(Ready("fake", enc), Config{ChunkWords: 10, ChunkOverlap: 2, Workers: 2})

	v, err := p.Embed(context.Background(), strings.Join(words, " "))
	require.NoError(t, err)
	assert.Equal(t, 3, enc.callCount())
	assert.InDelta(t, 1/math.Sqrt(5), v[0], 1e-6)
	assert.InDelta(t, 2/math.Sqrt(5), v[1], 1e-6)
}

func TestEmbedBoundsConcurrentModelCalls(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{encode: func(context.Context, string) ([]float32, error) {
		time.Sleep(5 * time.Millisecond)
		return []float32{1, 1}, nil
	}}
	p := NewProvider(Ready("fake", enc), Config{ChunkWords: 5, ChunkOverlap: 0, Workers: 1})

	_, err := p.Embed(context.Background(), strings.Repeat("word ", 40))
	require.NoError(t, err)
	assert.Equal(t, 8, enc.callCount())
	assert.Equal(t, int32(1), enc.maxActive.Load())
}

func TestEmbedEmptyInput(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{}
	p := NewProvider(Ready("fake", enc), Config{})

	for _, text := range []string{"", "   \n\t", "@@@ ###"} {
		_, err := p.Embed(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyInput, "text=%q", text)
	}
	assert.Zero(t, enc.callCount())
}

func TestEmbedZeroNormIsUnavailable(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{encode: func(context.Context, string) ([]float32, error) {
		return []float32{0, 0}, nil
	}}
	p := NewProvider(Ready("fake", enc), Config{})

	_, err := p.Embed(context.Background(), "anything")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, p.Stats().CacheEntries)
}

func TestEmbedWrapsModelFailure(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{encode: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("onnx session crashed")
	}}
	p := NewProvider(Ready("fake", enc), Config{})

	_, err := p.Embed(context.Background(), "anything")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "onnx session crashed")
}

func TestEmbedHonoursCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	enc := &fakeEncoder{encode: func(context.Context, string) ([]float32, error) {
		<-release
		return []float32{1, 0}, nil
	}}
	p := NewProvider(Ready("fake", enc), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Embed(ctx, "blocked text")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLazyRetriesFailedLoad(t *testing.T) {
	t.Parallel()

	var attempts int
	lazy := NewLazy("fake", "fake-model", func(context.Context) (Encoder, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("download failed")
		}
		return &fakeEncoder{}, nil
	}, nil)
	p := NewProvider(lazy, Config{})

	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, p.Stats().Loaded)

	_, err = p.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	stats := p.Stats()
	assert.True(t, stats.Loaded)
	assert.Equal(t, "fake", stats.Provider)
	assert.Equal(t, 2, stats.Dimension)
}

func TestLazyLoadsOnce(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	lazy := NewLazy("fake", "fake-model", func(context.Context) (Encoder, error) {
		loads.Add(1)
		return &fakeEncoder{}, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Get(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	require.NoError(t, lazy.Close())
	_, ok := lazy.Loaded()
	assert.False(t, ok)
}

func TestLazyGetDoesNotWaitPastDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var loads atomic.Int32
	lazy := NewLazy("fake", "fake-model", func(context.Context) (Encoder, error) {
		loads.Add(1)
		<-release
		return &fakeEncoder{}, nil
	}, nil)

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		start := time.Now()
		_, err := lazy.Get(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	}

	_, ok := lazy.Loaded()
	assert.False(t, ok)

	close(release)
	enc, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fake-model", enc.Model())
	assert.Equal(t, int32(1), loads.Load())
}

func TestLazyCloseDuringLoad(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	lazy := NewLazy("fake", "fake-model", func(context.Context) (Encoder, error) {
		<-release
		return &fakeEncoder{}, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := lazy.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, lazy.Close())
	close(release)

	require.Eventually(t, func() bool {
		_, err := lazy.Get(context.Background())
		return err == nil
	}, time.Second, 5*time.Millisecond)
}

func TestProviderMetricsAndClearCache(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	enc := &fakeEncoder{}
	p := NewProvider(Ready("fake", enc), Config{}, WithMetrics(m), WithCache(NewMemoryCache(2, 0)))

	for _, text := range []string{"one", "one", "two"} {
		_, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, enc.callCount())

	p.ClearCache(context.Background())
	assert.Zero(t, p.Stats().CacheEntries)

	_, err := p.Embed(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, 3, enc.callCount())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	c.Add(ctx, "a", Vector{1})
	c.Add(ctx, "b", Vector{2})
	_, _ = c.Get(ctx, "a")
	c.Add(ctx, "c", Vector{3})

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCacheExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewMemoryCache(4, 10*time.Millisecond)
	c.Add(ctx, "a", Vector{1})

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestChainBackfillsUpperTier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := NewMemoryCache(4, 0)
	shared := NewMemoryCache(4, 0)
	shared.Add(ctx, "k", Vector{0.5})

	chain := Chain{local, shared}
	v, ok := chain.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, Vector{0.5}, v)

	_, ok = local.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, 1, chain.Len())

	chain.Purge(ctx)
	assert.Zero(t, shared.Len())
}

func TestRedisCacheDegradesToMiss(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheWithClient(client, "fake-model:", time.Minute, zap.New(core))
	defer c.Close()

	_, ok := c.Get(context.Background(), "key")
	assert.False(t, ok)
	c.Add(context.Background(), "key", Vector{1, 2})
	assert.GreaterOrEqual(t, logs.Len(), 2)
}

func TestVectorCodec(t *testing.T) {
	t.Parallel()

	in := Vector{0.25, -1, float32(math.Pi)}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	require.Error(t, err)
}
