package batchz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// DefaultCapacity is the number of owners a Dispatcher holds when no
// capacity is given.
const DefaultCapacity = 1000

// Observability constants for Dispatcher.
const (
	// Metrics.
	DispatcherRunsTotal       = metricz.Key("dispatcher.runs.total")
	DispatcherDispatchedTotal = metricz.Key("dispatcher.dispatched.total")
	DispatcherFailuresTotal   = metricz.Key("dispatcher.failures.total")
	DispatcherOwners          = metricz.Key("dispatcher.owners")

	// Spans.
	DispatcherRunSpan   = tracez.Key("dispatcher.run")
	DispatcherOwnerSpan = tracez.Key("dispatcher.owner")

	// Tags.
	DispatcherTagOwner   = tracez.Tag("dispatcher.owner")
	DispatcherTagSuccess = tracez.Tag("dispatcher.success")
	DispatcherTagError   = tracez.Tag("dispatcher.error")
)

// Owner is anything a Dispatcher can route input to. Processor, Stream and
// Pipeline implement it.
type Owner interface {
	// ID is the key the owner's input is looked up by.
	ID() string
	// Label names what the owner processes, e.g. "Sensor data".
	Label() string
	// Unit is the noun for counted items, e.g. "readings".
	Unit() string
	// Processed is the item count reported after dispatch.
	Processed() int64
	// Dispatch handles one input and returns the rendered result.
	Dispatch(ctx context.Context, input any) (string, error)
}

// Sink receives the summary lines a Dispatcher produces.
type Sink interface {
	Emit(ctx context.Context, line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, line string)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, line string) {
	f(ctx, line)
}

// WriterSink returns a Sink writing one line per summary to w.
func WriterSink(w io.Writer) Sink {
	var mu sync.Mutex
	return SinkFunc(func(_ context.Context, line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	})
}

// Discard is a Sink that drops every line.
var Discard Sink = SinkFunc(func(context.Context, string) {})

// Dispatcher fans named inputs out to registered owners and reports a
// one-line summary per owner. The dispatcher only routes; what an owner does
// with its input is up to the owner.
//
// A failure in one owner, whether a returned error or a panic, is reported
// as "[ERROR] <id> failed: <err>" and never stops the remaining owners.
//
// Example:
//
//	d := batchz.NewDispatcher(batchz.NewIdentity("nexus", "Batch dispatcher"), batchz.WriterSink(os.Stdout), 0)
//	_ = d.Register(batchz.NewSensorStream("SENSOR_001"))
//	_ = d.Register(batchz.NewJSONPipeline("JSON_PIPELINE"))
//	d.RunAll(ctx, map[string]any{
//	    "SENSOR_001":    []any{batchz.Record{"temp": 22.5}},
//	    "JSON_PIPELINE": batchz.Record{"value": 23.5},
//	})
//	// - Sensor data: 1 readings processed
//	// - JSON pipeline: 1 records processed
type Dispatcher struct {
	identity Identity
	sink     Sink
	owners   []Owner
	failures []error
	ids      map[string]struct{}
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	capacity int
	mu       sync.RWMutex
}

// NewDispatcher creates a Dispatcher. A nil sink discards output and a
// capacity below 1 means DefaultCapacity.
func NewDispatcher(identity Identity, sink Sink, capacity int) *Dispatcher {
	if sink == nil {
		sink = Discard
	}
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	metrics := metricz.New()
	metrics.Counter(DispatcherRunsTotal)
	metrics.Counter(DispatcherDispatchedTotal)
	metrics.Counter(DispatcherFailuresTotal)
	metrics.Gauge(DispatcherOwners)

	return &Dispatcher{
		identity: identity,
		sink:     sink,
		ids:      make(map[string]struct{}),
		metrics:  metrics,
		tracer:   tracez.New(),
		capacity: capacity,
	}
}

// Register adds an owner. Owners run in registration order.
func (d *Dispatcher) Register(owner Owner) error {
	if owner == nil {
		return errors.New("nil owner")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.owners) >= d.capacity {
		return fmt.Errorf("%w: %d owners", ErrCapacity, d.capacity)
	}
	if _, exists := d.ids[owner.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateOwner, owner.ID())
	}

	d.owners = append(d.owners, owner)
	d.ids[owner.ID()] = struct{}{}
	d.metrics.Gauge(DispatcherOwners).Set(float64(len(d.owners)))
	return nil
}

// RunAll hands each owner the input stored under its ID, or nil when there is
// none, and emits one line per owner to the sink.
func (d *Dispatcher) RunAll(ctx context.Context, inputs map[string]any) {
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	owners := slices.Clone(d.owners)
	d.mu.RUnlock()

	d.metrics.Counter(DispatcherRunsTotal).Inc()

	ctx, span := d.tracer.StartSpan(ctx, DispatcherRunSpan)
	defer span.Finish()

	var failures []error
	for _, owner := range owners {
		if err := d.dispatch(ctx, owner, inputs[owner.ID()]); err != nil {
			failures = append(failures, err)
		}
	}

	d.mu.Lock()
	d.failures = failures
	d.mu.Unlock()
}

// Failures returns the owner failures of the most recent RunAll. Each wraps
// ErrOwnerFailure.
func (d *Dispatcher) Failures() []error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.failures)
}

func (d *Dispatcher) dispatch(ctx context.Context, owner Owner, input any) error {
	ctx, span := d.tracer.StartSpan(ctx, DispatcherOwnerSpan)
	span.SetTag(DispatcherTagOwner, owner.ID())
	defer span.Finish()

	result, err := callOwner(ctx, owner, input)
	if err != nil {
		span.SetTag(DispatcherTagSuccess, "false")
		span.SetTag(DispatcherTagError, err.Error())
		d.metrics.Counter(DispatcherFailuresTotal).Inc()
		capitan.Error(ctx, SignalDispatcherOwnerFailed,
			FieldName.Field(d.identity.Name()),
			FieldOwner.Field(owner.ID()),
			FieldError.Field(err.Error()),
		)
		d.sink.Emit(ctx, fmt.Sprintf("[ERROR] %s failed: %v", owner.ID(), err))
		return fmt.Errorf("%w: %s: %w", ErrOwnerFailure, owner.ID(), err)
	}

	span.SetTag(DispatcherTagSuccess, "true")
	d.metrics.Counter(DispatcherDispatchedTotal).Inc()
	capitan.Info(ctx, SignalDispatcherDispatched,
		FieldName.Field(d.identity.Name()),
		FieldOwner.Field(owner.ID()),
		FieldResult.Field(result),
	)
	d.sink.Emit(ctx, fmt.Sprintf("- %s: %d %s processed", owner.Label(), owner.Processed(), owner.Unit()))
	return nil
}

// callOwner runs owner.Dispatch, converting a panic into an error.
func callOwner(ctx context.Context, owner Owner, input any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return owner.Dispatch(ctx, input)
}

// Owners returns the registered owners in registration order.
func (d *Dispatcher) Owners() []Owner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.owners)
}

// Len returns the number of registered owners.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.owners)
}

// Capacity returns the maximum number of owners.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

// Identity returns the identity of this dispatcher.
func (d *Dispatcher) Identity() Identity {
	return d.identity
}

// Metrics returns the metrics registry for this dispatcher.
func (d *Dispatcher) Metrics() *metricz.Registry {
	return d.metrics
}

// Tracer returns the tracer for this dispatcher.
func (d *Dispatcher) Tracer() *tracez.Tracer {
	return d.tracer
}

// Close gracefully shuts down observability components.
func (d *Dispatcher) Close() error {
	if d.tracer != nil {
		d.tracer.Close()
	}
	return nil
}
