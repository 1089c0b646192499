package hook

import "context"

type suppressKey struct{}

// Suppress returns a context within which cache-read events are not counted.
// The bucket store's own Redis calls run under a suppressed context so that,
// if they are routed through the monitored cache abstraction, they cannot
// recursively trigger counting.
//
// The guard is scoped by context derivation: the flag exists only on the
// derived context and every exit path (including panics) discards it with
// the context, so no explicit restore is needed.
func Suppress(ctx context.Context) context.Context {
	if suppressed(ctx) {
		return ctx
	}
	return context.WithValue(ctx, suppressKey{}, true)
}

// WithoutInstrumentation runs fn under a suppressed context. Convenience for
// hosts wrapping a block of cache calls rather than threading the derived
// context themselves.
func WithoutInstrumentation(ctx context.Context, fn func(ctx context.Context)) {
	fn(Suppress(ctx))
}

// suppressed reports whether ctx is inside a without-instrumentation scope.
func suppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey{}).(bool)
	return v
}
