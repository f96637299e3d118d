package forecast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource counts upstream calls and can be made to fail.
type fakeSource struct {
	mu           sync.Mutex
	resolveCalls int
	propsCalls   int
	resolveErr   error
	propsErr     error
	props        GridProperties
}

func (f *fakeSource) ResolveGridpoint(_ context.Context, lat, lon float64) (GridEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.resolveErr != nil {
		return GridEndpoint{}, f.resolveErr
	}
	return GridEndpoint{Office: "SEW", GridX: 127, GridY: 75}, nil
}

func (f *fakeSource) GetGridProperties(_ context.Context, _ GridEndpoint) (GridProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.propsCalls++
	if f.propsErr != nil {
		return GridProperties{}, f.propsErr
	}
	return f.props, nil
}

func (f *fakeSource) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls, f.propsCalls
}

type sinkEvent struct {
	instanceID string
	payload    *Payload
	errMsg     string
}

// fakeSink records deliveries on a channel so tests can wait for the
// asynchronous fetch kicked off by Configure.
type fakeSink struct {
	events chan sinkEvent
}

func newFakeSink() *fakeSink {
	return &fakeSink{events: make(chan sinkEvent, 16)}
}

func (f *fakeSink) Deliver(cfg InstanceConfig, p Payload) {
	f.events <- sinkEvent{instanceID: cfg.InstanceID, payload: &p}
}

func (f *fakeSink) DeliverError(cfg InstanceConfig, errMsg string) {
	f.events <- sinkEvent{instanceID: cfg.InstanceID, errMsg: errMsg}
}

func (f *fakeSink) next(t *testing.T) sinkEvent {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return sinkEvent{}
	}
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Duration
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Duration)}
}

func (f *fakeScheduler) Schedule(tag string, interval time.Duration, _ func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[tag] = interval
	return nil
}

func (f *fakeScheduler) Cancel(tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheduled[tag]; !ok {
		return errors.New("no job with tag")
	}
	delete(f.scheduled, tag)
	f.cancelled = append(f.cancelled, tag)
	return nil
}

func newTestService(source GridSource, sink Sink, sched JobScheduler) *Service {
	s := NewService(source, sink, sched, ServiceConfig{
		Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	s.now = func() time.Time { return t0.Add(10 * time.Minute) }
	return s
}

func testInstance(id string) InstanceConfig {
	return InstanceConfig{
		InstanceID:  id,
		Latitude:    47.6062,
		Longitude:   -122.3321,
		Units:       UnitsImperial,
		HoursToShow: 12,
	}
}

func TestGridCacheResolvesOnce(t *testing.T) {
	source := &fakeSource{props: testProps()}
	svc := newTestService(source, newFakeSink(), newFakeScheduler())
	cfg := svc.applyDefaults(testInstance("a"))

	_, err := svc.fetchOnce(context.Background(), cfg)
	require.NoError(t, err)
	_, err = svc.fetchOnce(context.Background(), cfg)
	require.NoError(t, err)

	resolves, props := source.calls()
	assert.Equal(t, 1, resolves, "grid resolution must be cached")
	assert.Equal(t, 2, props, "properties are fetched every time")
}

func TestFailedResolutionIsNotCached(t *testing.T) {
	source := &fakeSource{resolveErr: errors.New("boom"), props: testProps()}
	svc := newTestService(source, newFakeSink(), newFakeScheduler())
	cfg := svc.applyDefaults(testInstance("a"))

	_, err := svc.fetchOnce(context.Background(), cfg)
	require.Error(t, err)

	source.mu.Lock()
	source.resolveErr = nil
	source.mu.Unlock()

	_, err = svc.fetchOnce(context.Background(), cfg)
	require.NoError(t, err)

	resolves, _ := source.calls()
	assert.Equal(t, 2, resolves)
}

func TestRetryExhaustionDeliversOneError(t *testing.T) {
	source := &fakeSource{propsErr: errors.New("upstream down")}
	sink := newFakeSink()
	svc := newTestService(source, sink, newFakeScheduler())
	cfg := svc.applyDefaults(testInstance("a"))

	svc.refreshInstance(cfg)

	ev := sink.next(t)
	assert.Nil(t, ev.payload)
	assert.Contains(t, ev.errMsg, "upstream down")

	_, props := source.calls()
	assert.Equal(t, 3, props, "one attempt per retry up to the ceiling")

	select {
	case extra := <-sink.events:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	default:
	}

	// The data cache is untouched by the failure.
	_, err := svc.LatestFor("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryRecoversMidInvocation(t *testing.T) {
	source := &failingOnceSource{inner: &fakeSource{props: testProps()}}
	sink := newFakeSink()
	svc := newTestService(source, sink, newFakeScheduler())
	cfg := svc.applyDefaults(testInstance("a"))

	svc.refreshInstance(cfg)

	ev := sink.next(t)
	require.NotNil(t, ev.payload)
	assert.Len(t, ev.payload.Hourly, 12)
}

// failingOnceSource fails the first properties fetch, then delegates.
type failingOnceSource struct {
	inner  *fakeSource
	mu     sync.Mutex
	failed bool
}

func (f *failingOnceSource) ResolveGridpoint(ctx context.Context, lat, lon float64) (GridEndpoint, error) {
	return f.inner.ResolveGridpoint(ctx, lat, lon)
}

func (f *failingOnceSource) GetGridProperties(ctx context.Context, ep GridEndpoint) (GridProperties, error) {
	f.mu.Lock()
	if !f.failed {
		f.failed = true
		f.mu.Unlock()
		return GridProperties{}, errors.New("transient")
	}
	f.mu.Unlock()
	return f.inner.GetGridProperties(ctx, ep)
}

func TestConfigureIsIdempotent(t *testing.T) {
	source := &fakeSource{props: testProps()}
	sink := newFakeSink()
	sched := newFakeScheduler()
	svc := newTestService(source, sink, sched)

	require.NoError(t, svc.Configure(testInstance("a")))
	ev := sink.next(t) // immediate fetch result
	require.NotNil(t, ev.payload)

	require.NoError(t, svc.Configure(testInstance("a")))

	sched.mu.Lock()
	assert.Len(t, sched.scheduled, 1)
	sched.mu.Unlock()

	select {
	case extra := <-sink.events:
		t.Fatalf("re-registration must be a no-op, got %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConfigureServesCachedPayloadToNewInstance(t *testing.T) {
	source := &fakeSource{props: testProps()}
	sink := newFakeSink()
	svc := newTestService(source, sink, newFakeScheduler())

	require.NoError(t, svc.Configure(testInstance("a")))
	first := sink.next(t)
	require.NotNil(t, first.payload)

	// A second instance at the same coordinates sees the cached payload
	// immediately, before its own fetch completes.
	require.NoError(t, svc.Configure(testInstance("b")))
	cached := sink.next(t)
	assert.Equal(t, "b", cached.instanceID)
	require.NotNil(t, cached.payload)
	assert.Equal(t, first.payload.Hourly, cached.payload.Hourly)
}

func TestConfigureAppliesDefaults(t *testing.T) {
	svc := newTestService(&fakeSource{}, newFakeSink(), newFakeScheduler())

	cfg := svc.applyDefaults(InstanceConfig{InstanceID: "a"})
	assert.Equal(t, UnitsImperial, cfg.Units)
	assert.Equal(t, 10*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, 24, cfg.HoursToShow)

	cfg = svc.applyDefaults(InstanceConfig{InstanceID: "a", HoursToShow: 100})
	assert.Equal(t, MaxWindowHours, cfg.HoursToShow)
}

func TestUnregisterCancelsRefresh(t *testing.T) {
	source := &fakeSource{props: testProps()}
	sink := newFakeSink()
	sched := newFakeScheduler()
	svc := newTestService(source, sink, sched)

	require.NoError(t, svc.Configure(testInstance("a")))
	sink.next(t)

	require.NoError(t, svc.Unregister("a"))
	assert.Equal(t, []string{"a"}, sched.cancelled)

	assert.ErrorIs(t, svc.Unregister("a"), ErrNotFound)
	_, err := svc.LatestFor("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestFor(t *testing.T) {
	source := &fakeSource{props: testProps()}
	sink := newFakeSink()
	svc := newTestService(source, sink, newFakeScheduler())

	_, err := svc.LatestFor("a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Configure(testInstance("a")))
	ev := sink.next(t)
	require.NotNil(t, ev.payload)

	got, err := svc.LatestFor("a")
	require.NoError(t, err)
	assert.Equal(t, ev.payload.Hourly, got.Hourly)
}
