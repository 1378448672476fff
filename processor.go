package batchz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Processor.
const (
	// Metrics.
	ProcessorProcessedTotal = metricz.Key("processor.processed.total")
	ProcessorOKTotal        = metricz.Key("processor.ok.total")
	ProcessorEmptyTotal     = metricz.Key("processor.empty.total")
	ProcessorInvalidTotal   = metricz.Key("processor.invalid.total")

	// Spans.
	ProcessorProcessSpan = tracez.Key("processor.process")

	// Tags.
	ProcessorTagKind   = tracez.Tag("processor.kind")
	ProcessorTagStatus = tracez.Tag("processor.status")
)

// Processor validates and summarises one kind of data: numeric batches,
// text or log lines. The kind is fixed at construction and selects the
// validator and the summary computed by Process.
//
// Process never fails. Input that does not validate yields an Invalid
// report naming the expected kind, empty input yields an Empty report, and
// a panic during computation is downgraded to an Invalid report.
//
// Example:
//
//	numeric := batchz.NewNumericProcessor()
//	report := numeric.Process(ctx, []int{1, 2, 3, 4, 5})
//	fmt.Println(report.Output())
//	// Output: Processed 5 numeric values, sum=15, avg=3.0
//
// A Processor is safe for concurrent use and also implements Owner, so it
// can be registered with a Dispatcher under its kind name.
type Processor struct {
	identity Identity
	clock    clockz.Clock
	validate Validator
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	counters Counters
	kind     DataKind
	mu       sync.RWMutex
}

// NewNumericProcessor creates a processor for numbers and numeric batches.
func NewNumericProcessor() *Processor {
	return NewProcessor(NewIdentity(KindNumeric.String(), "Sums and averages numeric batches"), KindNumeric)
}

// NewTextProcessor creates a processor for text.
func NewTextProcessor() *Processor {
	return NewProcessor(NewIdentity(KindText.String(), "Counts characters and words"), KindText)
}

// NewLogProcessor creates a processor for log lines.
func NewLogProcessor() *Processor {
	return NewProcessor(NewIdentity(KindLog.String(), "Classifies log lines by level"), KindLog)
}

// NewProcessor creates a processor for kind. Only KindNumeric, KindText and
// KindLog are summarised; any other kind reports every input as invalid.
func NewProcessor(identity Identity, kind DataKind) *Processor {
	metrics := metricz.New()
	metrics.Counter(ProcessorProcessedTotal)
	metrics.Counter(ProcessorOKTotal)
	metrics.Counter(ProcessorEmptyTotal)
	metrics.Counter(ProcessorInvalidTotal)

	validate := ValidatorFor(kind)
	if validate == nil {
		validate = func(any) bool { return false }
	}

	return &Processor{
		identity: identity,
		kind:     kind,
		validate: validate,
		metrics:  metrics,
		tracer:   tracez.New(),
	}
}

// Validate reports whether data has the shape this processor expects.
func (p *Processor) Validate(data any) bool {
	return p.validate(data)
}

// Process validates and summarises data.
func (p *Processor) Process(ctx context.Context, data any) (report Report) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.metrics.Counter(ProcessorProcessedTotal).Inc()

	ctx, span := p.tracer.StartSpan(ctx, ProcessorProcessSpan)
	span.SetTag(ProcessorTagKind, p.kind.String())
	defer func() {
		span.SetTag(ProcessorTagStatus, report.Status.String())
		span.Finish()
	}()
	defer p.recoverReport(ctx, &report)

	now := p.getClock().Now()
	if !p.validate(data) {
		return p.invalid(ctx, now, "")
	}

	switch p.kind {
	case KindNumeric:
		summary, ok := summariseNumeric(data)
		if !ok {
			return p.empty(now)
		}
		p.counters.AddProcessed(summary.Count)
		report = okReport(p.identity, now, summary)
	case KindText, KindLog:
		text, _ := data.(string)
		if text == "" {
			return p.empty(now)
		}
		p.counters.AddProcessed(1)
		if p.kind == KindText {
			report = okReport(p.identity, now, summariseText(text))
		} else {
			report = okReport(p.identity, now, classifyLog(text))
		}
	default:
		return p.invalid(ctx, now, "")
	}

	p.counters.IncSuccess()
	p.metrics.Counter(ProcessorOKTotal).Inc()
	return report
}

func (p *Processor) empty(at time.Time) Report {
	p.metrics.Counter(ProcessorEmptyTotal).Inc()
	return emptyReport(p.identity, at, p.kind)
}

// invalid records and signals an Invalid report. cause is set when the
// report replaces a recovered panic.
func (p *Processor) invalid(ctx context.Context, at time.Time, cause string) Report {
	p.counters.IncError()
	p.metrics.Counter(ProcessorInvalidTotal).Inc()
	report := invalidReport(p.identity, at, p.kind)
	capitan.Warn(ctx, SignalProcessorInvalid,
		FieldName.Field(p.identity.Name()),
		FieldIdentityID.Field(p.identity.ID().String()),
		FieldKind.Field(p.kind.String()),
		FieldReason.Field(report.Reason),
		FieldError.Field(cause),
	)
	return report
}

// recoverReport downgrades a panic to an Invalid report. Must be deferred.
func (p *Processor) recoverReport(ctx context.Context, report *Report) {
	if r := recover(); r != nil {
		*report = p.invalid(ctx, p.getClock().Now(), fmt.Sprintf("%v", r))
	}
}

// Kind returns the data kind this processor handles.
func (p *Processor) Kind() DataKind {
	return p.kind
}

// Identity returns the identity of this processor.
func (p *Processor) Identity() Identity {
	return p.identity
}

// Counters returns a snapshot of the processor's counters. Processed counts
// summarised values; Successes and Errors count OK and Invalid reports.
func (p *Processor) Counters() CounterSnapshot {
	return p.counters.Snapshot()
}

// ID implements Owner.
func (p *Processor) ID() string {
	return p.identity.Name()
}

// Label implements Owner.
func (p *Processor) Label() string {
	switch p.kind {
	case KindNumeric:
		return "Numeric data"
	case KindText:
		return "Text data"
	case KindLog:
		return "Log data"
	default:
		return p.kind.String() + " data"
	}
}

// Unit implements Owner.
func (p *Processor) Unit() string {
	switch p.kind {
	case KindNumeric:
		return "values"
	case KindLog:
		return "entries"
	default:
		return "texts"
	}
}

// Processed implements Owner.
func (p *Processor) Processed() int64 {
	return p.counters.Snapshot().Processed
}

// Dispatch implements Owner. Absent input is reported as empty; invalid
// input is reported, not failed.
func (p *Processor) Dispatch(ctx context.Context, input any) (string, error) {
	if input == nil {
		return p.empty(p.getClock().Now()).Output(), nil
	}
	return p.Process(ctx, input).Output(), nil
}

// WithClock sets a custom clock for report timestamps.
func (p *Processor) WithClock(clock clockz.Clock) *Processor {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

func (p *Processor) getClock() clockz.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// Metrics returns the metrics registry for this processor.
func (p *Processor) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this processor.
func (p *Processor) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close gracefully shuts down observability components.
func (p *Processor) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	return nil
}
