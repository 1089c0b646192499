package hook

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/hitwatch/pkg/store"
)

// DefaultBufferCap bounds how many events one request may buffer before
// the oldest entries start being dropped.
const DefaultBufferCap = 1000

type bufferKey struct{}

// FlushBuffer accumulates increments for one logical request and writes
// them to the bucket store in a single pass at end-of-request, one
// Increment call per distinct bucket timestamp.
//
// A buffer is scoped to one request's context and must never be shared
// across concurrent requests; within that scope no locking is needed.
type FlushBuffer struct {
	entries []bufferedIncrement
	dropped int
	cap     int
	logger  zerolog.Logger
}

type bufferedIncrement struct {
	bucketTS   int64
	increments map[string]float64
}

// NewFlushBuffer creates a buffer with the default cap.
func NewFlushBuffer(logger zerolog.Logger) *FlushBuffer {
	return &FlushBuffer{cap: DefaultBufferCap, logger: logger}
}

// WithBuffer attaches a flush buffer to the request context.
func WithBuffer(ctx context.Context, buf *FlushBuffer) context.Context {
	return context.WithValue(ctx, bufferKey{}, buf)
}

// BufferFrom returns the request's flush buffer, or nil if none is attached.
func BufferFrom(ctx context.Context) *FlushBuffer {
	buf, _ := ctx.Value(bufferKey{}).(*FlushBuffer)
	return buf
}

// Append records one event's increments. When the buffer is full the oldest
// entry is dropped; memory stays bounded at the cost of undercounting.
func (b *FlushBuffer) Append(bucketTS int64, increments map[string]float64) {
	if len(increments) == 0 {
		return
	}
	if len(b.entries) >= b.cap {
		b.entries = b.entries[1:]
		b.dropped++
		BufferDropped.Inc()
	}
	b.entries = append(b.entries, bufferedIncrement{bucketTS: bucketTS, increments: increments})
}

// Len returns the number of buffered events.
func (b *FlushBuffer) Len() int {
	return len(b.entries)
}

// Dropped returns how many events were discarded due to the cap.
func (b *FlushBuffer) Dropped() int {
	return b.dropped
}

// Flush combines the buffered increments by (bucket, field) and issues one
// store write per distinct bucket timestamp, then resets the buffer. Store
// failures are logged and swallowed here: flush runs after the response has
// been produced and must never surface an error into the request lifecycle.
func (b *FlushBuffer) Flush(ctx context.Context, st *store.Store) {
	if b.dropped > 0 {
		b.logger.Warn().
			Int("dropped", b.dropped).
			Int("cap", b.cap).
			Msg("flush buffer overflowed; oldest events were dropped")
	}
	if len(b.entries) == 0 {
		b.reset()
		return
	}

	combined := make(map[int64]map[string]float64)
	for _, e := range b.entries {
		fields := combined[e.bucketTS]
		if fields == nil {
			fields = make(map[string]float64)
			combined[e.bucketTS] = fields
		}
		for field, v := range e.increments {
			fields[field] += v
		}
	}

	timestamps := make([]int64, 0, len(combined))
	for ts := range combined {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	ctx = Suppress(ctx)
	for _, ts := range timestamps {
		increments := dropZeroFields(combined[ts])
		if len(increments) == 0 {
			continue
		}
		if err := st.Increment(ctx, ts, increments); err != nil {
			b.logger.Error().Err(err).Int64("bucket", ts).Msg("deferred flush write failed")
		}
	}

	b.reset()
}

func (b *FlushBuffer) reset() {
	b.entries = nil
	b.dropped = 0
}

// dropZeroFields removes zero-valued counters. Writing them would be
// semantically inert amplification.
func dropZeroFields(increments map[string]float64) map[string]float64 {
	for field, v := range increments {
		if v == 0 {
			delete(increments, field)
		}
	}
	return increments
}
