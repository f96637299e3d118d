package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotFound is returned when no data or no instance exists for a key.
var ErrNotFound = errors.New("not found")

// JobScheduler owns the recurring refresh jobs, one per instance, addressed
// by tag so teardown can cancel them.
type JobScheduler interface {
	Schedule(tag string, interval time.Duration, job func()) error
	Cancel(tag string) error
}

// RetryPolicy governs one fetch invocation: up to MaxAttempts tries, with a
// delay that starts at BaseDelay and doubles per attempt. A failed
// scheduled tick exhausts its own retries and waits for the next tick.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// ServiceConfig carries the process-wide defaults applied to instances
// whose configuration messages omit the corresponding field.
type ServiceConfig struct {
	Retry           RetryPolicy
	DefaultInterval time.Duration
	DefaultHours    int
	FetchTimeout    time.Duration
}

// Service is the forecast service object: it owns the grid cache, the data
// cache, and the instance registry, and orchestrates fetches. Both caches
// are process-wide and live for the process lifetime; the grid cache is
// write-once per coordinate pair (grid topology is static), the data cache
// is last-write-wins and serves newly registered instances immediately.
type Service struct {
	source GridSource
	sink   Sink
	sched  JobScheduler
	cfg    ServiceConfig

	now func() time.Time

	mu        sync.RWMutex
	gridCache map[string]GridEndpoint
	dataCache map[string]Payload
	instances map[string]InstanceConfig
}

func NewService(source GridSource, sink Sink, sched JobScheduler, cfg ServiceConfig) *Service {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = 2 * time.Second
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 10 * time.Minute
	}
	if cfg.DefaultHours <= 0 {
		cfg.DefaultHours = 24
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = time.Minute
	}
	return &Service{
		source:    source,
		sink:      sink,
		sched:     sched,
		cfg:       cfg,
		now:       time.Now,
		gridCache: make(map[string]GridEndpoint),
		dataCache: make(map[string]Payload),
		instances: make(map[string]InstanceConfig),
	}
}

// coordKey renders a coordinate pair as a stable cache key.
func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// Configure handles one inbound configuration message. The first message
// for an instance registers it: any cached payload for its coordinates is
// delivered immediately (so a new instance is not blank while its own
// fetch is in flight), an immediate fetch is kicked off, and a recurring
// refresh is scheduled at the instance's interval. Messages for an already
// registered instance are no-ops.
func (s *Service) Configure(cfg InstanceConfig) error {
	cfg = s.applyDefaults(cfg)
	key := coordKey(cfg.Latitude, cfg.Longitude)

	s.mu.Lock()
	if _, ok := s.instances[cfg.InstanceID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.instances[cfg.InstanceID] = cfg
	cached, hasCached := s.dataCache[key]
	s.mu.Unlock()

	if hasCached {
		s.sink.Deliver(cfg, cached)
	}

	if err := s.sched.Schedule(cfg.InstanceID, cfg.UpdateInterval, func() {
		s.refreshInstance(cfg)
	}); err != nil {
		s.mu.Lock()
		delete(s.instances, cfg.InstanceID)
		s.mu.Unlock()
		return fmt.Errorf("schedule refresh for %s: %w", cfg.InstanceID, err)
	}

	go s.refreshInstance(cfg)
	return nil
}

// Unregister is the instance-teardown signal from the host boundary: it
// cancels the recurring refresh and forgets the instance. The caches are
// untouched; they are shared and coordinate-keyed.
func (s *Service) Unregister(instanceID string) error {
	s.mu.Lock()
	_, ok := s.instances[instanceID]
	delete(s.instances, instanceID)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := s.sched.Cancel(instanceID); err != nil {
		slog.Warn("cancel refresh job", slog.String("instance", instanceID), slog.String("error", err.Error()))
	}
	return nil
}

// LatestFor returns the cached normalized payload for a registered
// instance's coordinates.
func (s *Service) LatestFor(instanceID string) (Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.instances[instanceID]
	if !ok {
		return Payload{}, ErrNotFound
	}
	p, ok := s.dataCache[coordKey(cfg.Latitude, cfg.Longitude)]
	if !ok {
		return Payload{}, ErrNotFound
	}
	return p, nil
}

func (s *Service) applyDefaults(cfg InstanceConfig) InstanceConfig {
	if cfg.Units != UnitsMetric {
		cfg.Units = UnitsImperial
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = s.cfg.DefaultInterval
	}
	if cfg.HoursToShow == 0 {
		cfg.HoursToShow = s.cfg.DefaultHours
	}
	cfg.HoursToShow = ClampWindow(cfg.HoursToShow)
	return cfg
}

// refreshInstance runs one fetch invocation for an instance and delivers
// the outcome. Failures here are scoped to this instance's attempt; a
// later successful fetch recovers automatically since the data cache is
// left intact.
func (s *Service) refreshInstance(cfg InstanceConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	defer cancel()

	p, err := s.fetchWithRetry(ctx, cfg)
	if err != nil {
		s.sink.DeliverError(cfg, err.Error())
		return
	}
	s.sink.Deliver(cfg, p)
}

// fetchWithRetry retries the whole resolve-fetch-normalize sequence with a
// doubling delay, so malformed payloads are retried the same as transport
// failures. Retries belong to this invocation only.
func (s *Service) fetchWithRetry(ctx context.Context, cfg InstanceConfig) (Payload, error) {
	delay := s.cfg.Retry.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Payload{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		p, err := s.fetchOnce(ctx, cfg)
		if err == nil {
			return p, nil
		}
		lastErr = err
		slog.Warn("fetch attempt failed",
			slog.String("instance", cfg.InstanceID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return Payload{}, lastErr
}

// fetchOnce performs one resolve + fetch + normalize pass and writes the
// result into the data cache.
func (s *Service) fetchOnce(ctx context.Context, cfg InstanceConfig) (Payload, error) {
	ep, err := s.gridEndpoint(ctx, cfg.Latitude, cfg.Longitude)
	if err != nil {
		return Payload{}, fmt.Errorf("resolve grid endpoint: %w", err)
	}

	props, err := s.source.GetGridProperties(ctx, ep)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch grid properties: %w", err)
	}

	p := Normalize(props, s.now(), cfg.HoursToShow, cfg.Units)

	s.mu.Lock()
	s.dataCache[coordKey(cfg.Latitude, cfg.Longitude)] = p
	s.mu.Unlock()
	return p, nil
}

// gridEndpoint resolves coordinates through the grid cache. Entries are
// never evicted; same-coordinate concurrent fetches may race to resolve,
// in which case the first write wins.
func (s *Service) gridEndpoint(ctx context.Context, lat, lon float64) (GridEndpoint, error) {
	key := coordKey(lat, lon)

	s.mu.RLock()
	ep, ok := s.gridCache[key]
	s.mu.RUnlock()
	if ok {
		return ep, nil
	}

	ep, err := s.source.ResolveGridpoint(ctx, lat, lon)
	if err != nil {
		return GridEndpoint{}, err
	}

	s.mu.Lock()
	if existing, ok := s.gridCache[key]; ok {
		ep = existing
	} else {
		s.gridCache[key] = ep
	}
	s.mu.Unlock()
	return ep, nil
}
