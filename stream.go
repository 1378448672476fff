package batchz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Stream.
const (
	// Metrics.
	StreamBatchesTotal = metricz.Key("stream.batches.total")
	StreamItemsTotal   = metricz.Key("stream.items.total")
	StreamAlertsTotal  = metricz.Key("stream.alerts.total")
	StreamInvalidTotal = metricz.Key("stream.invalid.total")
	StreamLastBatch    = metricz.Key("stream.last_batch")

	// Spans.
	StreamProcessSpan = tracez.Key("stream.process")

	// Tags.
	StreamTagKind  = tracez.Tag("stream.kind")
	StreamTagCount = tracez.Tag("stream.count")
	StreamTagAlert = tracez.Tag("stream.alert")
)

// Stats describes a stream and what it has processed.
type Stats struct {
	StreamID       string
	Type           string // Domain label, e.g. "Environmental Data"
	Process        string // Summary label, e.g. "Sensor data"
	Unit           string // Item noun, e.g. "readings"
	ProcessedItems int64  // Items in the most recent batch
	TotalItems     int64  // Items across every batch
}

// Stream analyses batches of sensor readings, transactions or events.
// The StreamKind chosen at construction selects the validator, the
// aggregate, the filter criteria and the labels.
//
//   - Sensor: average temp, or an alert when any reading is outside 0–30°C.
//   - Transaction: net flow, total buy minus total sell.
//   - Event: number of events mentioning "error".
//
// ProcessBatch never fails; a batch of the wrong shape yields an Invalid
// report. ProcessedItems in Stats is the size of the most recent valid
// batch, updated whether or not the batch raised an alert.
//
// Example:
//
//	sensor := batchz.NewSensorStream("SENSOR_001")
//	report := sensor.ProcessBatch(ctx, []any{
//	    batchz.Record{"temp": 40.5},
//	    batchz.Record{"temp": 32.0},
//	})
//	// Sensor analysis: 2 readings processed, ALERT: 2 readings out of range
//	hot := sensor.Filter(ctx, batch, batchz.CriterionHigh)
type Stream struct {
	identity  Identity
	clock     clockz.Clock
	validate  Validator
	filters   map[Criterion]*Filter[any]
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	counters  Counters
	lastBatch atomic.Int64
	kind      StreamKind
	mu        sync.RWMutex
}

// NewSensorStream creates a sensor stream with the given ID.
func NewSensorStream(id string) *Stream {
	return NewStream(NewIdentity(id, "Sensor stream"), StreamSensor)
}

// NewTransactionStream creates a transaction stream with the given ID.
func NewTransactionStream(id string) *Stream {
	return NewStream(NewIdentity(id, "Transaction stream"), StreamTransaction)
}

// NewEventStream creates an event stream with the given ID.
func NewEventStream(id string) *Stream {
	return NewStream(NewIdentity(id, "Event stream"), StreamEvent)
}

// NewStream creates a stream of the given kind. The identity name is the
// stream ID used for dispatch.
func NewStream(identity Identity, kind StreamKind) *Stream {
	metrics := metricz.New()
	metrics.Counter(StreamBatchesTotal)
	metrics.Gauge(StreamItemsTotal)
	metrics.Counter(StreamAlertsTotal)
	metrics.Counter(StreamInvalidTotal)
	metrics.Gauge(StreamLastBatch)

	validate := ValidatorFor(kind.DataKind())
	if validate == nil {
		validate = func(any) bool { return false }
	}

	return &Stream{
		identity: identity,
		kind:     kind,
		validate: validate,
		filters:  make(map[Criterion]*Filter[any]),
		metrics:  metrics,
		tracer:   tracez.New(),
	}
}

// Validate reports whether batch has the shape this stream expects.
func (s *Stream) Validate(batch []any) bool {
	return s.validate(batch)
}

// ProcessBatch analyses batch and returns a report.
func (s *Stream) ProcessBatch(ctx context.Context, batch []any) (report Report) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.metrics.Counter(StreamBatchesTotal).Inc()

	ctx, span := s.tracer.StartSpan(ctx, StreamProcessSpan)
	span.SetTag(StreamTagKind, s.kind.String())
	span.SetTag(StreamTagCount, fmt.Sprintf("%d", len(batch)))
	defer span.Finish()
	defer s.recoverReport(ctx, &report)

	if !s.validate(batch) {
		return s.invalid(ctx, "")
	}

	s.lastBatch.Store(int64(len(batch)))
	s.counters.AddProcessed(len(batch))
	s.metrics.Gauge(StreamItemsTotal).Set(float64(s.counters.Snapshot().Processed))
	s.metrics.Gauge(StreamLastBatch).Set(float64(len(batch)))

	var agg Aggregate
	switch s.kind {
	case StreamSensor:
		summary := analyseSensor(batch)
		if summary.Alert {
			s.metrics.Counter(StreamAlertsTotal).Inc()
			span.SetTag(StreamTagAlert, "true")
			capitan.Warn(ctx, SignalStreamAlert,
				FieldName.Field(s.identity.Name()),
				FieldIdentityID.Field(s.identity.ID().String()),
				FieldCount.Field(summary.Readings),
				FieldOutOfRange.Field(summary.OutOfRange),
			)
		}
		agg = summary
	case StreamTransaction:
		agg = analyseTransactions(batch)
	case StreamEvent:
		agg = analyseEvents(batch)
	default:
		return s.invalid(ctx, "")
	}

	s.counters.IncSuccess()
	report = okReport(s.identity, s.getClock().Now(), agg)
	capitan.Info(ctx, SignalStreamProcessed,
		FieldName.Field(s.identity.Name()),
		FieldKind.Field(s.kind.String()),
		FieldCount.Field(len(batch)),
		FieldSummary.Field(report.String()),
	)
	return report
}

func (s *Stream) invalid(ctx context.Context, cause string) Report {
	s.counters.IncError()
	s.metrics.Counter(StreamInvalidTotal).Inc()
	report := invalidReport(s.identity, s.getClock().Now(), s.kind.DataKind())
	capitan.Warn(ctx, SignalProcessorInvalid,
		FieldName.Field(s.identity.Name()),
		FieldIdentityID.Field(s.identity.ID().String()),
		FieldKind.Field(s.kind.String()),
		FieldReason.Field(report.Reason),
		FieldError.Field(cause),
	)
	return report
}

// recoverReport turns a panic during ProcessBatch into an Invalid report.
func (s *Stream) recoverReport(ctx context.Context, report *Report) {
	if r := recover(); r != nil {
		*report = s.invalid(ctx, fmt.Sprintf("%v", r))
	}
}

// Filter returns the items of batch selected by criterion. A criterion the
// stream does not understand returns batch unchanged.
func (s *Stream) Filter(ctx context.Context, batch []any, criterion Criterion) []any {
	f, ok := s.filterFor(criterion)
	if !ok {
		return batch
	}
	return f.Select(ctx, batch)
}

// filterFor returns the cached Filter for criterion, creating it on first
// use. Unknown criteria get no Filter.
func (s *Stream) filterFor(criterion Criterion) (*Filter[any], bool) {
	s.mu.RLock()
	f, ok := s.filters[criterion]
	s.mu.RUnlock()
	if ok {
		return f, true
	}

	predicate, known := PredicateFor(s.kind, criterion)
	if !known {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.filters[criterion]; ok {
		return f, true
	}
	f = NewFilter(NewIdentity(s.identity.Name()+":"+string(criterion), "Stream filter"),
		func(_ context.Context, item any) bool { return predicate(item) })
	if s.clock != nil {
		f.WithClock(s.clock)
	}
	s.filters[criterion] = f
	return f, true
}

// Stats returns the stream's labels and item counts.
func (s *Stream) Stats() Stats {
	return Stats{
		StreamID:       s.identity.Name(),
		Type:           s.kind.TypeLabel(),
		Process:        s.kind.ProcessLabel(),
		Unit:           s.kind.Unit(),
		ProcessedItems: s.lastBatch.Load(),
		TotalItems:     s.counters.Snapshot().Processed,
	}
}

// Kind returns the stream kind.
func (s *Stream) Kind() StreamKind {
	return s.kind
}

// Identity returns the identity of this stream.
func (s *Stream) Identity() Identity {
	return s.identity
}

// Counters returns a snapshot of the stream's counters.
func (s *Stream) Counters() CounterSnapshot {
	return s.counters.Snapshot()
}

// ID implements Owner.
func (s *Stream) ID() string {
	return s.identity.Name()
}

// Label implements Owner.
func (s *Stream) Label() string {
	return s.kind.ProcessLabel()
}

// Unit implements Owner.
func (s *Stream) Unit() string {
	return s.kind.Unit()
}

// Processed implements Owner.
func (s *Stream) Processed() int64 {
	return s.lastBatch.Load()
}

// Dispatch implements Owner. An absent input is an empty batch; input that is
// not a sequence at all yields an Invalid report.
func (s *Stream) Dispatch(ctx context.Context, input any) (string, error) {
	batch, ok := AsBatch(input)
	if !ok {
		return s.invalid(ctx, "").String(), nil
	}
	return s.ProcessBatch(ctx, batch).String(), nil
}

// WithClock sets a custom clock for report and filter event timestamps.
func (s *Stream) WithClock(clock clockz.Clock) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	for _, f := range s.filters {
		f.WithClock(clock)
	}
	return s
}

func (s *Stream) getClock() clockz.Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clock == nil {
		return clockz.RealClock
	}
	return s.clock
}

// Metrics returns the metrics registry for this stream.
func (s *Stream) Metrics() *metricz.Registry {
	return s.metrics
}

// Tracer returns the tracer for this stream.
func (s *Stream) Tracer() *tracez.Tracer {
	return s.tracer
}

// Close gracefully shuts down observability components, including every
// filter the stream created.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.filters {
		_ = f.Close() //nolint:errcheck
	}
	if s.tracer != nil {
		s.tracer.Close()
	}
	return nil
}
