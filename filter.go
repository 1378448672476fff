package batchz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Filter observability.
const (
	FilterProcessedTotal = metricz.Key("filter.processed.total")
	FilterItemsTotal     = metricz.Key("filter.items.total")
	FilterSelectedTotal  = metricz.Key("filter.selected.total")
	FilterPassThrough    = metricz.Key("filter.passthrough.total")
)

// Span names for Filter.
const (
	FilterSelectSpan = tracez.Key("filter.select")
)

// Span tags for Filter.
const (
	FilterTagFilter   = tracez.Tag("filter.name")
	FilterTagTotal    = tracez.Tag("filter.total")
	FilterTagSelected = tracez.Tag("filter.selected")

	// Hook event keys.
	FilterEventSelected = hookz.Key("filter.selected")
)

// FilterEvent is emitted via hookz after every selection.
type FilterEvent struct {
	Name        Name      // Filter name
	Total       int       // Items in the input batch
	Selected    int       // Items that met the condition
	PassThrough bool      // No condition was set; the batch was returned whole
	Timestamp   time.Time // When the selection finished
}

// Filter selects the subset of a batch that satisfies a condition.
//
// Selection has no hidden state: the same batch and condition always give
// the same subset, in input order, and the input batch is never modified.
// A Filter without a condition passes the batch through unchanged.
//
// Example:
//
//	hot := batchz.NewFilter(batchz.NewIdentity("hot", "Readings above 30°C"),
//	    func(_ context.Context, r batchz.Record) bool { return r.Float("temp") > 30 },
//	)
//	alerts := hot.Select(ctx, readings)
//
// # Observability
//
// Metrics:
//   - filter.processed.total: Counter of selections
//   - filter.items.total: Counter of items examined
//   - filter.selected.total: Counter of items selected
//   - filter.passthrough.total: Counter of selections without a condition
//
// Traces:
//   - filter.select: Span for each selection
//
// Events (via hooks):
//   - filter.selected: Fired after every selection
type Filter[T any] struct {
	condition func(context.Context, T) bool
	identity  Identity
	clock     clockz.Clock
	mu        sync.RWMutex

	// Observability
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[FilterEvent]
}

// NewFilter creates a Filter. A nil condition selects everything.
func NewFilter[T any](identity Identity, condition func(context.Context, T) bool) *Filter[T] {
	registry := metricz.New()
	registry.Counter(FilterProcessedTotal)
	registry.Counter(FilterItemsTotal)
	registry.Counter(FilterSelectedTotal)
	registry.Counter(FilterPassThrough)

	return &Filter[T]{
		identity:  identity,
		condition: condition,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[FilterEvent](),
	}
}

// Select returns the items of batch that satisfy the condition.
func (f *Filter[T]) Select(ctx context.Context, batch []T) []T {
	if ctx == nil {
		ctx = context.Background()
	}

	f.mu.RLock()
	condition := f.condition
	clock := f.clock
	f.mu.RUnlock()
	if clock == nil {
		clock = clockz.RealClock
	}

	ctx, span := f.tracer.StartSpan(ctx, FilterSelectSpan)
	defer span.Finish()
	span.SetTag(FilterTagFilter, f.identity.Name())
	span.SetTag(FilterTagTotal, fmt.Sprintf("%d", len(batch)))

	f.metrics.Counter(FilterProcessedTotal).Inc()

	if condition == nil {
		f.metrics.Counter(FilterPassThrough).Inc()
		span.SetTag(FilterTagSelected, fmt.Sprintf("%d", len(batch)))
		_ = f.hooks.Emit(ctx, FilterEventSelected, FilterEvent{ //nolint:errcheck
			Name:        f.identity.Name(),
			Total:       len(batch),
			Selected:    len(batch),
			PassThrough: true,
			Timestamp:   clock.Now(),
		})
		return batch
	}

	selected := make([]T, 0, len(batch))
	for _, item := range batch {
		f.metrics.Counter(FilterItemsTotal).Inc()
		if condition(ctx, item) {
			f.metrics.Counter(FilterSelectedTotal).Inc()
			selected = append(selected, item)
		}
	}

	span.SetTag(FilterTagSelected, fmt.Sprintf("%d", len(selected)))
	_ = f.hooks.Emit(ctx, FilterEventSelected, FilterEvent{ //nolint:errcheck
		Name:      f.identity.Name(),
		Total:     len(batch),
		Selected:  len(selected),
		Timestamp: clock.Now(),
	})
	return selected
}

// SetCondition updates the condition.
func (f *Filter[T]) SetCondition(condition func(context.Context, T) bool) *Filter[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.condition = condition
	return f
}

// Condition returns the current condition function.
func (f *Filter[T]) Condition() func(context.Context, T) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.condition
}

// WithClock sets the clock used for event timestamps.
func (f *Filter[T]) WithClock(clock clockz.Clock) *Filter[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = clock
	return f
}

// Identity returns the identity of this filter.
func (f *Filter[T]) Identity() Identity {
	return f.identity
}

// Metrics returns the metrics registry for this filter.
func (f *Filter[T]) Metrics() *metricz.Registry {
	return f.metrics
}

// Tracer returns the tracer for this filter.
func (f *Filter[T]) Tracer() *tracez.Tracer {
	return f.tracer
}

// Close releases the filter's hooks and tracer.
func (f *Filter[T]) Close() error {
	if f.tracer != nil {
		f.tracer.Close()
	}
	f.hooks.Close()
	return nil
}

// OnSelected registers a handler for every selection.
// The handler is called asynchronously.
func (f *Filter[T]) OnSelected(handler func(context.Context, FilterEvent) error) error {
	_, err := f.hooks.Hook(FilterEventSelected, handler)
	return err
}
