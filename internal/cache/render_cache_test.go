package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testKey(v0 float64, kind chart.Kind) Key {
	return Key{
		Params: kinematics.LaunchParameters{H0: 0, V0: v0, Angle: 45},
		Kind:   kind,
		Format: chart.FormatPNG,
	}
}

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func testCache(cfg Config) (*RenderCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	c := New(cfg, testLogger())
	c.now = clock.Now
	return c, clock
}

// TestRenderCache tests basic cache operations: put, get, stats.
func TestRenderCache(t *testing.T) {
	c, _ := testCache(Config{TTL: time.Minute, MaxEntries: 10})

	if _, ok := c.Get(testKey(50, chart.KindSpeed)); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(testKey(50, chart.KindSpeed), []byte("speed"))

	got, ok := c.Get(testKey(50, chart.KindSpeed))
	if !ok || string(got) != "speed" {
		t.Fatalf("Get = %q, %v; want speed, true", got, ok)
	}

	// Different kind or parameters are different entries.
	if _, ok := c.Get(testKey(50, chart.KindTrajectory)); ok {
		t.Error("kind must be part of the key")
	}
	if _, ok := c.Get(testKey(51, chart.KindSpeed)); ok {
		t.Error("params must be part of the key")
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("entries: got %d, want 1", stats.Entries)
	}
	if stats.SizeBytes != int64(len("speed")) {
		t.Errorf("size: got %d, want %d", stats.SizeBytes, len("speed"))
	}
	if stats.Hits != 1 || stats.Misses != 3 {
		t.Errorf("hits/misses = %d/%d, want 1/3", stats.Hits, stats.Misses)
	}
}

// TestRenderCacheExpiry verifies entries stop being served after the TTL and
// are removed by the sweep.
func TestRenderCacheExpiry(t *testing.T) {
	c, clock := testCache(Config{TTL: time.Minute, MaxEntries: 10})
	c.Put(testKey(1, chart.KindSpeed), []byte("a"))

	clock.Advance(30 * time.Second)
	c.Put(testKey(2, chart.KindSpeed), []byte("bb"))

	clock.Advance(45 * time.Second)
	if _, ok := c.Get(testKey(1, chart.KindSpeed)); ok {
		t.Error("expired entry served")
	}
	if _, ok := c.Get(testKey(2, chart.KindSpeed)); !ok {
		t.Error("fresh entry not served")
	}

	if n := c.evictExpired(); n != 1 {
		t.Errorf("evictExpired removed %d, want 1", n)
	}
	stats := c.Stats()
	if stats.Entries != 1 || stats.SizeBytes != 2 || stats.Evictions != 1 {
		t.Errorf("stats after sweep = %+v", stats)
	}
}

// TestRenderCacheMaxEntries verifies the oldest entry is evicted first.
func TestRenderCacheMaxEntries(t *testing.T) {
	c, clock := testCache(Config{TTL: time.Hour, MaxEntries: 2})

	c.Put(testKey(1, chart.KindSpeed), []byte("1"))
	clock.Advance(time.Second)
	c.Put(testKey(2, chart.KindSpeed), []byte("2"))
	clock.Advance(time.Second)
	c.Put(testKey(3, chart.KindSpeed), []byte("3"))

	if _, ok := c.Get(testKey(1, chart.KindSpeed)); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, v0 := range []float64{2, 3} {
		if _, ok := c.Get(testKey(v0, chart.KindSpeed)); !ok {
			t.Errorf("entry v0=%g missing", v0)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("evictions = %d, want 1", got)
	}
}

func TestRenderCacheReplaceKeepsSize(t *testing.T) {
	c, _ := testCache(Config{})
	c.Put(testKey(1, chart.KindSpeed), []byte("1234"))
	c.Put(testKey(1, chart.KindSpeed), []byte("12"))
	if got := c.Stats(); got.Entries != 1 || got.SizeBytes != 2 {
		t.Errorf("stats = %+v, want 1 entry of 2 bytes", got)
	}
}

func TestGetOrRender(t *testing.T) {
	c, _ := testCache(Config{})
	calls := 0
	render := func() ([]byte, error) {
		calls++
		return []byte("png"), nil
	}

	for i := 0; i < 3; i++ {
		data, hit, err := c.GetOrRender(testKey(5, chart.KindCoordinates), render)
		if err != nil || string(data) != "png" {
			t.Fatalf("GetOrRender = %q, %v", data, err)
		}
		if hit != (i > 0) {
			t.Errorf("call %d: hit = %v", i, hit)
		}
	}
	if calls != 1 {
		t.Errorf("render called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	_, _, err := c.GetOrRender(testKey(6, chart.KindCoordinates), func() ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if c.Stats().Entries != 1 {
		t.Error("failed render must not be cached")
	}
}

// TestStartStopsOnCancel verifies the background worker exits with its context.
func TestStartStopsOnCancel(t *testing.T) {
	c, _ := testCache(Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
