package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource 可控的数据源
type fakeSource struct {
	mu          sync.Mutex
	records     []map[string]any
	err         error
	gate        chan struct{}
	loads       atomic.Int32
	invalidates atomic.Int32
}

func (s *fakeSource) Name() string { return "fake" }

// Load 先读取数据再等待gate，模拟读到旧缓存后才返回的慢加载
func (s *fakeSource) Load(ctx context.Context) ([]map[string]any, error) {
	s.mu.Lock()
	records, err, gate := s.records, s.err, s.gate
	s.mu.Unlock()

	s.loads.Add(1)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *fakeSource) setRecords(records []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func (s *fakeSource) Invalidate(context.Context) error {
	s.invalidates.Add(1)
	return nil
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestCachedIndexProviderTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{records: seedDataset()}
	p := NewCachedIndexProvider(src, time.Hour, clock)
	ctx := context.Background()

	first, err := p.Get(ctx)
	require.NoError(t, err)
	second, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.loads.Load())
	assert.Equal(t, clock.Now(), p.LastBuilt())

	clock.Advance(time.Hour + time.Minute)
	third, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestCachedIndexProviderCoalescesRebuilds(t *testing.T) {
	src := &fakeSource{records: seedDataset(), gate: make(chan struct{})}
	p := NewCachedIndexProvider(src, time.Hour, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	indexes := make([]*Index, 10)
	for i := range indexes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := p.Get(context.Background())
			assert.NoError(t, err)
			indexes[i] = idx
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.loads.Load())
	for _, idx := range indexes {
		assert.Same(t, indexes[0], idx)
	}
}

func TestCachedIndexProviderServesStaleIndex(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSource{records: seedDataset()}
	p := NewCachedIndexProvider(src, time.Hour, clock)
	ctx := context.Background()

	first, err := p.Get(ctx)
	require.NoError(t, err)

	src.fail(errors.New("conferenceranks offline"))
	clock.Advance(2 * time.Hour)

	stale, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, stale)
	assert.Equal(t, int32(2), src.loads.Load())
}

func TestCachedIndexProviderNoDataset(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	p := NewCachedIndexProvider(src, time.Hour, clockwork.NewFakeClock())

	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, ErrNoDataset)
	assert.Equal(t, 0, p.Stats().Venues)
}

func TestCachedIndexProviderInvalidate(t *testing.T) {
	src := &fakeSource{records: seedDataset()}
	p := NewCachedIndexProvider(src, time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	_, err := p.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Invalidate(ctx))
	assert.Equal(t, int32(1), src.invalidates.Load())

	_, err = p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.loads.Load())

	stats := p.Stats()
	assert.Equal(t, 6, stats.Venues)
	assert.NotEmpty(t, stats.LastBuilt)
}

func TestCachedIndexProviderRebuildOutlivesCancelledCaller(t *testing.T) {
	src := &fakeSource{records: seedDataset(), gate: make(chan struct{})}
	p := NewCachedIndexProvider(src, time.Hour, clockwork.NewFakeClock())

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := p.Get(ctxA)
		errA <- err
	}()
	require.Eventually(t, func() bool { return src.loads.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		idx *Index
		err error
	}
	resB := make(chan result, 1)
	go func() {
		idx, err := p.Get(context.Background())
		resB <- result{idx, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(src.gate)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 6, b.idx.Stats().Venues)
	assert.Equal(t, int32(1), src.loads.Load())
}

func TestCachedIndexProviderInvalidateDuringRebuild(t *testing.T) {
	src := &fakeSource{records: seedDataset(), gate: make(chan struct{})}
	p := NewCachedIndexProvider(src, time.Hour, clockwork.NewFakeClock())
	ctx := context.Background()

	done := make(chan *Index, 1)
	go func() {
		idx, err := p.Get(ctx)
		assert.NoError(t, err)
		done <- idx
	}()
	require.Eventually(t, func() bool { return src.loads.Load() == 1 }, time.Second, time.Millisecond)

	// 首次加载已读到旧数据，此时重置
	src.setRecords(seedDataset()[:2])
	require.NoError(t, p.Invalidate(ctx))
	close(src.gate)

	idx := <-done
	assert.Equal(t, 2, idx.Stats().Venues)
	assert.Equal(t, int32(2), src.loads.Load())

	again, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, idx, again)
	assert.Equal(t, 2, p.Stats().Venues)
}
