// Package hook captures the host application's cache-read notifications and
// turns them into bucketed counter increments. It runs inline on the request
// path: everything here is cheap in the common case and no failure, however
// exotic, may escape to the host.
package hook

import (
	"context"
	"math/rand"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/Sternrassler/hitwatch/pkg/config"
	"github.com/Sternrassler/hitwatch/pkg/keyspace"
	"github.com/Sternrassler/hitwatch/pkg/store"
)

// Hook subscribes to a cache-read event stream, classifies each event, and
// routes the resulting increments to the bucket store, directly or via the
// request's deferred flush buffer.
type Hook struct {
	cfg     *config.Config
	store   *store.Store
	matcher *keyspace.Matcher
	logger  zerolog.Logger

	installed atomic.Bool
	// monitoredIdentity is the one cache store whose events are counted.
	// Events from any other store are ignored to avoid double counting
	// when several store types coexist.
	monitoredIdentity atomic.String
	unsubscribe       func()

	// Test seams.
	now    func() time.Time
	sample func() float64
}

// New creates a hook over a validated configuration.
func New(cfg *config.Config, st *store.Store, logger zerolog.Logger) *Hook {
	return &Hook{
		cfg:     cfg,
		store:   st,
		matcher: keyspace.NewMatcher(cfg, logger),
		logger:  logger,
		now:     time.Now,
		sample:  rand.Float64,
	}
}

// Install subscribes the hook to the event source and records which store
// identity to monitor. Idempotent: a second call is a no-op, as is any call
// when the configuration disables instrumentation. Persisting the config
// metadata is best-effort; its failure does not abort the install.
func (h *Hook) Install(ctx context.Context, source EventSource, monitoredIdentity string) error {
	if !h.cfg.Enabled {
		h.logger.Debug().Msg("instrumentation disabled by configuration, not installing")
		return nil
	}
	if h.installed.Swap(true) {
		return nil
	}

	h.monitoredIdentity.Store(monitoredIdentity)

	if err := h.store.StoreMetadata(Suppress(ctx)); err != nil {
		h.logger.Warn().Err(err).Msg("could not persist config metadata")
	}

	h.unsubscribe = source.Subscribe(h.OnEvent)
	h.logger.Info().
		Str("monitored_store", monitoredIdentity).
		Bool("deferred_flush", h.cfg.UseDeferredFlush).
		Float64("sample_rate", h.cfg.SampleRate).
		Msg("cache instrumentation installed")
	return nil
}

// Installed reports whether the hook is currently subscribed.
func (h *Hook) Installed() bool {
	return h.installed.Load()
}

// Reset unsubscribes and clears all hook state. Used between isolated test
// runs and before reconfiguration.
func (h *Hook) Reset() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	h.installed.Store(false)
	h.monitoredIdentity.Store("")
}

// OnEvent handles one cache-read notification. It executes synchronously on
// the delivering goroutine and never panics or returns an error: any
// failure is logged and the event is dropped.
func (h *Hook) OnEvent(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			EventsObserved.WithLabelValues("panic").Inc()
			h.logger.Error().
				Interface("panic", r).
				Bytes("stack", shortStack()).
				Msg("instrumentation failed handling cache event")
		}
	}()

	if !h.installed.Load() {
		return
	}
	if suppressed(ctx) {
		EventsObserved.WithLabelValues("suppressed").Inc()
		return
	}
	if ev.Store != h.monitoredIdentity.Load() {
		EventsObserved.WithLabelValues("foreign_store").Inc()
		return
	}

	key := h.extractKey(ev)
	if key == "" {
		EventsObserved.WithLabelValues("no_key").Inc()
		return
	}
	// Defense in depth: even if the suppression guard was bypassed, never
	// count reads of our own telemetry keys.
	if strings.HasPrefix(key, h.store.KeyPrefix()) {
		EventsObserved.WithLabelValues("own_key").Inc()
		return
	}

	// Per-event keep/drop; an event is never half-counted.
	if h.cfg.SampleRate < 1.0 && h.sample() >= h.cfg.SampleRate {
		EventsObserved.WithLabelValues("sampled_out").Inc()
		return
	}

	bucketTS := h.store.AlignTimestamp(h.now().Unix())
	increments := h.buildIncrements(key, ev.Hit)

	if h.cfg.UseDeferredFlush {
		if buf := BufferFrom(ctx); buf != nil {
			buf.Append(bucketTS, increments)
			EventsObserved.WithLabelValues("buffered").Inc()
			return
		}
		// No buffer on this context (background job, missing middleware):
		// fall through to a direct write rather than losing the event.
	}

	if err := h.store.Increment(Suppress(ctx), bucketTS, increments); err != nil {
		// Telemetry failures are isolated from the host request.
		h.logger.Error().Err(err).Int64("bucket", bucketTS).Msg("increment failed")
		return
	}
	EventsObserved.WithLabelValues("recorded").Inc()
}

// extractKey pulls the accessed cache key out of the event payload, trying
// the configured field names in priority order.
func (h *Hook) extractKey(ev Event) string {
	for _, field := range h.cfg.KeyFields {
		if v, ok := ev.Payload[field]; ok && v != "" {
			return v
		}
	}
	return ""
}

// buildIncrements produces the counter map for one event: the overall pair
// plus a pair per matching keyspace, zero-valued fields dropped.
func (h *Hook) buildIncrements(key string, hit bool) map[string]float64 {
	var hits, misses float64
	if hit {
		hits = 1
	} else {
		misses = 1
	}

	increments := map[string]float64{
		store.FieldOverallHits:   hits,
		store.FieldOverallMisses: misses,
	}
	for _, ks := range h.matcher.Matching(key) {
		increments[ks.Name+":hits"] = hits
		increments[ks.Name+":misses"] = misses
	}

	return dropZeroFields(increments)
}

// shortStack returns a truncated stack trace for failure logs.
func shortStack() []byte {
	stack := debug.Stack()
	const max = 2048
	if len(stack) > max {
		stack = stack[:max]
	}
	return stack
}
