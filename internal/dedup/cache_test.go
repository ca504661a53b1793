package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestPipelineWindow(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock))
	key := PipelineKey("42", 1001)

	assert.False(t, c.SeenRecently(key))
	c.MarkProcessed(key)
	assert.True(t, c.SeenRecently(key))

	clock.Advance(9*time.Minute + 59*time.Second)
	assert.True(t, c.SeenRecently(key))

	clock.Advance(time.Second)
	assert.False(t, c.SeenRecently(key))
}

func TestTryMarkProcessed(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock))

	assert.True(t, c.TryMarkProcessed("p"))
	assert.False(t, c.TryMarkProcessed("p"))

	clock.Advance(DefaultPipelineCooldown)
	assert.True(t, c.TryMarkProcessed("p"))
}

func TestTryMarkProcessedConcurrent(t *testing.T) {
	c := New()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryMarkProcessed("same") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestFixWindow(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock))

	_, ok := c.ExistingFix("k")
	assert.False(t, ok)

	c.RecordFix("k", "https://gitlab.example.com/g/p/-/merge_requests/7")
	ref, ok := c.ExistingFix("k")
	require.True(t, ok)
	assert.Equal(t, "https://gitlab.example.com/g/p/-/merge_requests/7", ref)

	clock.Advance(59 * time.Minute)
	_, ok = c.ExistingFix("k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = c.ExistingFix("k")
	assert.False(t, ok)
}

func TestReserveFix(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock))

	_, ok := c.TryReserveFix("k")
	require.True(t, ok)

	existing, ok := c.TryReserveFix("k")
	assert.False(t, ok, "second attempt while the first is in flight")
	assert.Empty(t, existing)

	c.ReleaseFix("k")
	_, ok = c.TryReserveFix("k")
	require.True(t, ok, "released reservations can be retried")

	c.RecordFix("k", "mr-1")
	existing, ok = c.TryReserveFix("k")
	assert.False(t, ok)
	assert.Equal(t, "mr-1", existing)
}

func TestReserveFixConcurrent(t *testing.T) {
	c := New()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TryReserveFix("fp"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock), WithPipelineCooldown(time.Minute), WithFixCooldown(time.Hour))

	c.MarkProcessed("old")
	c.RecordFix("fix", "ref")
	clock.Advance(2 * time.Minute)
	c.MarkProcessed("new")

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, Stats{Pipelines: 1, Fixes: 1}, c.Stats())
	assert.True(t, c.SeenRecently("new"))

	clock.Advance(time.Hour)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestRestoreFixKeepsOriginalTime(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock))

	c.RestoreFix("42:dependency:abc", "https://mr/1", clock.Now().Add(-50*time.Minute))
	c.RestoreFix("42:timeout:def", "https://mr/2", clock.Now().Add(-2*time.Hour))

	ref, ok := c.ExistingFix("42:dependency:abc")
	require.True(t, ok)
	assert.Equal(t, "https://mr/1", ref)
	_, ok = c.ExistingFix("42:timeout:def")
	assert.False(t, ok)

	clock.Advance(11 * time.Minute)
	_, ok = c.ExistingFix("42:dependency:abc")
	assert.False(t, ok)
	assert.Equal(t, time.Hour, c.FixCooldown())
}
