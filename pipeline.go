package batchz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Pipeline.
const (
	// Metrics.
	PipelineProcessedTotal  = metricz.Key("pipeline.processed.total")
	PipelineSuccessesTotal  = metricz.Key("pipeline.successes.total")
	PipelineFailuresTotal   = metricz.Key("pipeline.failures.total")
	PipelineRejectedTotal   = metricz.Key("pipeline.rejected.total")
	PipelineStagesCompleted = metricz.Key("pipeline.stages.completed")
	PipelineStagesTotal     = metricz.Key("pipeline.stages.total")
	PipelineDurationMs      = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineExecuteSpan = tracez.Key("pipeline.execute")
	PipelineStageSpan   = tracez.Key("pipeline.stage")

	// Tags.
	PipelineTagAdapter     = tracez.Tag("pipeline.adapter")
	PipelineTagStageCount  = tracez.Tag("pipeline.stage_count")
	PipelineTagStageNumber = tracez.Tag("pipeline.stage_number")
	PipelineTagStageName   = tracez.Tag("pipeline.stage_name")
	PipelineTagSuccess     = tracez.Tag("pipeline.success")
	PipelineTagError       = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventStageComplete = hookz.Key("pipeline.stage_complete")
	PipelineEventAllComplete   = hookz.Key("pipeline.all_complete")
)

// Adapter is the input shape a Pipeline accepts.
type Adapter int

// Pipeline adapters.
const (
	// AdapterJSON accepts a Record.
	AdapterJSON Adapter = iota + 1
	// AdapterCSV accepts anything.
	AdapterCSV
	// AdapterStream accepts a sequence.
	AdapterStream
)

// String returns the adapter name: JSON, CSV or Stream.
func (a Adapter) String() string {
	switch a {
	case AdapterJSON:
		return "JSON"
	case AdapterCSV:
		return "CSV"
	case AdapterStream:
		return "Stream"
	default:
		return "Unknown"
	}
}

// ParseAdapter maps a configuration name to an Adapter. Matching is
// case-insensitive.
func ParseAdapter(name string) (Adapter, error) {
	for _, a := range []Adapter{AdapterJSON, AdapterCSV, AdapterStream} {
		if strings.EqualFold(name, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown adapter %q", name)
}

// accepts checks the adapter precondition and describes a mismatch.
func (a Adapter) accepts(item any) (string, bool) {
	switch a {
	case AdapterJSON:
		if _, ok := AsRecord(item); !ok {
			return fmt.Sprintf("expected a record, got %s", describe(item)), false
		}
	case AdapterStream:
		if _, ok := AsBatch(item); !ok || item == nil {
			return fmt.Sprintf("expected a sequence, got %s", describe(item)), false
		}
	case AdapterCSV:
	default:
		return "unknown adapter", false
	}
	return "", true
}

// PipelineEvent is emitted via hookz when a stage finishes and when every
// stage has completed.
type PipelineEvent struct {
	Name            Name          // Pipeline name
	Adapter         Adapter       // Pipeline adapter
	StageName       Name          // Name of the stage
	StageNumber     int           // Current stage number (1-based)
	TotalStages     int           // Total number of stages
	Success         bool          // Whether the stage succeeded
	Error           error         // Error if stage failed
	Duration        time.Duration // How long this stage took
	CompletedStages int           // Number of stages completed (for all_complete)
	TotalDuration   time.Duration // Total time for all stages (for all_complete)
	Timestamp       time.Time     // When the event occurred
}

// Pipeline runs an ordered list of Stages over an item whose shape matches
// its Adapter. Each stage receives the output of the previous one.
//
// A stage failure stops the run: the remaining stages are skipped, the error
// counter is incremented and the last value successfully produced is
// returned. Every stage that completes increments stages_executed, and a full
// run increments successes. Input rejected by the adapter never reaches a
// stage and leaves the counters untouched.
//
// Execute never fails. Process runs the same way and additionally returns the
// *Error describing the failure.
//
// # Observability
//
// Metrics:
//   - pipeline.processed.total: Counter of runs that entered the stages
//   - pipeline.successes.total: Counter of full runs
//   - pipeline.failures.total: Counter of runs stopped by a stage
//   - pipeline.rejected.total: Counter of inputs rejected by the adapter
//   - pipeline.stages.completed: Gauge of stages completed in the last run
//   - pipeline.stages.total: Gauge of stages registered
//   - pipeline.duration.ms: Gauge of the last run's duration
//
// Traces:
//   - pipeline.execute: Parent span for a run
//   - pipeline.stage: Child span for each stage
//
// Events (via hooks):
//   - pipeline.stage_complete: Fired as each stage finishes
//   - pipeline.all_complete: Fired when all stages succeed
//
// Example:
//
//	json := batchz.NewJSONPipeline("JSON_PIPELINE")
//	out := json.Execute(ctx, batchz.Record{"sensor": "temp", "value": 23.5, "unit": "C"})
//	// Processed temperature reading: 23.5°C (validated)
type Pipeline struct {
	identity Identity
	clock    clockz.Clock
	stages   []Stage
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[PipelineEvent]
	counters Counters
	adapter  Adapter
	mu       sync.RWMutex
}

// NewJSONPipeline creates a pipeline of the default stages accepting records.
func NewJSONPipeline(id string) *Pipeline {
	return NewPipeline(NewIdentity(id, "JSON pipeline"), AdapterJSON, DefaultStages(DefaultSeparator)...)
}

// NewCSVPipeline creates a pipeline of the default stages accepting any input.
func NewCSVPipeline(id string) *Pipeline {
	return NewPipeline(NewIdentity(id, "CSV pipeline"), AdapterCSV, DefaultStages(DefaultSeparator)...)
}

// NewStreamPipeline creates a pipeline of the default stages accepting
// sequences.
func NewStreamPipeline(id string) *Pipeline {
	return NewPipeline(NewIdentity(id, "Stream pipeline"), AdapterStream, DefaultStages(DefaultSeparator)...)
}

// NewPipeline creates a pipeline with the given adapter and initial stages.
// More stages can be added with Register.
func NewPipeline(identity Identity, adapter Adapter, stages ...Stage) *Pipeline {
	metrics := metricz.New()
	metrics.Counter(PipelineProcessedTotal)
	metrics.Counter(PipelineSuccessesTotal)
	metrics.Counter(PipelineFailuresTotal)
	metrics.Counter(PipelineRejectedTotal)
	metrics.Gauge(PipelineStagesCompleted)
	metrics.Gauge(PipelineStagesTotal)
	metrics.Gauge(PipelineDurationMs)

	return &Pipeline{
		identity: identity,
		adapter:  adapter,
		stages:   slices.Clone(stages),
		metrics:  metrics,
		tracer:   tracez.New(),
		hooks:    hookz.New[PipelineEvent](),
	}
}

// Execute runs the pipeline and returns its output. On rejection the output
// is a rejection message; on a stage failure it is the last good value.
func (p *Pipeline) Execute(ctx context.Context, item any) any {
	result, _ := p.Process(ctx, item)
	return result
}

// Process runs the pipeline. The returned error is nil on a full run and an
// *Error[any] otherwise; the result follows the same rules as Execute.
func (p *Pipeline) Process(ctx context.Context, item any) (result any, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if reason, ok := p.adapter.accepts(item); !ok {
		return p.reject(ctx, item, reason)
	}

	p.mu.RLock()
	stages := slices.Clone(p.stages)
	p.mu.RUnlock()

	clock := p.getClock()
	p.counters.AddProcessed(1)
	p.metrics.Counter(PipelineProcessedTotal).Inc()
	p.metrics.Gauge(PipelineStagesTotal).Set(float64(len(stages)))
	start := clock.Now()

	ctx, span := p.tracer.StartSpan(ctx, PipelineExecuteSpan)
	span.SetTag(PipelineTagAdapter, p.adapter.String())
	span.SetTag(PipelineTagStageCount, fmt.Sprintf("%d", len(stages)))
	defer func() {
		p.metrics.Gauge(PipelineDurationMs).Set(float64(clock.Since(start).Milliseconds()))
		if err == nil {
			span.SetTag(PipelineTagSuccess, "true")
		} else {
			span.SetTag(PipelineTagSuccess, "false")
			span.SetTag(PipelineTagError, err.Error())
		}
		span.Finish()
	}()

	result = item
	completed := 0

	for i, stage := range stages {
		select {
		case <-ctx.Done():
			return result, p.fail(ctx, stage, i+1, len(stages), &Error[any]{
				Err:       ctx.Err(),
				InputData: item,
				Path:      []Identity{p.identity},
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Canceled:  errors.Is(ctx.Err(), context.Canceled),
				Duration:  clock.Since(start),
				Timestamp: clock.Now(),
			})
		default:
		}

		stageCtx, stageSpan := p.tracer.StartSpan(ctx, PipelineStageSpan)
		stageSpan.SetTag(PipelineTagStageNumber, fmt.Sprintf("%d", i+1))
		stageSpan.SetTag(PipelineTagStageName, stage.Identity().Name())

		stageStart := clock.Now()
		out, stageErr := applyStage(stageCtx, clock, stage, result)
		stageDuration := clock.Since(stageStart)
		stageSpan.Finish()

		if stageErr != nil {
			_ = p.hooks.Emit(ctx, PipelineEventStageComplete, PipelineEvent{ //nolint:errcheck
				Name:        p.identity.Name(),
				Adapter:     p.adapter,
				StageName:   stage.Identity().Name(),
				StageNumber: i + 1,
				TotalStages: len(stages),
				Error:       stageErr,
				Duration:    stageDuration,
				Timestamp:   clock.Now(),
			})

			var pipeErr *Error[any]
			if errors.As(stageErr, &pipeErr) {
				pipeErr.Path = append([]Identity{p.identity}, pipeErr.Path...)
				pipeErr.InputData = item
				pipeErr.Duration = clock.Since(start)
			} else {
				pipeErr = &Error[any]{
					Timestamp: clock.Now(),
					InputData: item,
					Err:       stageErr,
					Path:      []Identity{p.identity, stage.Identity()},
					Duration:  clock.Since(start),
				}
			}
			return result, p.fail(ctx, stage, i+1, len(stages), pipeErr)
		}

		result = out
		completed++
		p.counters.IncStage()
		p.metrics.Gauge(PipelineStagesCompleted).Set(float64(completed))

		_ = p.hooks.Emit(ctx, PipelineEventStageComplete, PipelineEvent{ //nolint:errcheck
			Name:        p.identity.Name(),
			Adapter:     p.adapter,
			StageName:   stage.Identity().Name(),
			StageNumber: i + 1,
			TotalStages: len(stages),
			Success:     true,
			Duration:    stageDuration,
			Timestamp:   clock.Now(),
		})
	}

	p.counters.IncSuccess()
	p.metrics.Counter(PipelineSuccessesTotal).Inc()

	total := clock.Since(start)
	_ = p.hooks.Emit(ctx, PipelineEventAllComplete, PipelineEvent{ //nolint:errcheck
		Name:            p.identity.Name(),
		Adapter:         p.adapter,
		TotalStages:     len(stages),
		CompletedStages: completed,
		TotalDuration:   total,
		Success:         true,
		Timestamp:       clock.Now(),
	})
	capitan.Info(ctx, SignalPipelineCompleted,
		FieldName.Field(p.identity.Name()),
		FieldAdapter.Field(p.adapter.String()),
		FieldStageCount.Field(completed),
		FieldDuration.Field(total.Seconds()),
	)

	return result, nil
}

// applyStage runs one stage, converting a panic into an error.
func applyStage(ctx context.Context, clock clockz.Clock, stage Stage, item any) (result any, err error) {
	defer recoverFromPanic(&result, &err, stage.Identity(), item, clock)
	return stage.Apply(ctx, item)
}

// fail records a stage failure and returns err.
func (p *Pipeline) fail(ctx context.Context, stage Stage, number, total int, err *Error[any]) error {
	p.counters.IncError()
	p.metrics.Counter(PipelineFailuresTotal).Inc()
	capitan.Error(ctx, SignalPipelineStageFailed,
		FieldName.Field(p.identity.Name()),
		FieldAdapter.Field(p.adapter.String()),
		FieldStage.Field(stage.Identity().Name()),
		FieldStageNumber.Field(number),
		FieldStageCount.Field(total),
		FieldError.Field(err.Err.Error()),
		FieldDuration.Field(err.Duration.Seconds()),
	)
	return err
}

// reject returns the rejection message for input the adapter does not accept.
func (p *Pipeline) reject(ctx context.Context, item any, reason string) (any, error) {
	p.metrics.Counter(PipelineRejectedTotal).Inc()
	msg := fmt.Sprintf("[ERROR] %s pipeline %s rejected input: %s", p.adapter, p.identity.Name(), reason)
	capitan.Warn(ctx, SignalPipelineRejected,
		FieldName.Field(p.identity.Name()),
		FieldAdapter.Field(p.adapter.String()),
		FieldReason.Field(reason),
	)
	return msg, &Error[any]{
		Timestamp: p.getClock().Now(),
		InputData: item,
		Err:       fmt.Errorf("%w: %s", ErrInvalidInput, reason),
		Path:      []Identity{p.identity},
	}
}

// Register appends stages. Stages run in registration order.
func (p *Pipeline) Register(stages ...Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = append(p.stages, stages...)
}

// Push adds stages to the back of the pipeline (runs last).
func (p *Pipeline) Push(stages ...Stage) {
	p.Register(stages...)
}

// Unshift adds stages to the front of the pipeline (runs first).
func (p *Pipeline) Unshift(stages ...Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = slices.Insert(p.stages, 0, stages...)
}

// Remove removes the first stage with the specified name.
func (p *Pipeline) Remove(name Name) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, stage := range p.stages {
		if stage.Identity().Name() == name {
			p.stages = slices.Delete(p.stages, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrStageNotFound, name)
}

// Replace replaces the first stage with the specified name.
func (p *Pipeline) Replace(name Name, stage Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.stages {
		if s.Identity().Name() == name {
			p.stages[i] = stage
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrStageNotFound, name)
}

// Names returns the names of all stages in order.
func (p *Pipeline) Names() []Name {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]Name, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Identity().Name()
	}
	return names
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stages)
}

// Clear removes all stages.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages = p.stages[:0]
}

// Adapter returns the pipeline's adapter.
func (p *Pipeline) Adapter() Adapter {
	return p.adapter
}

// Identity returns the identity of this pipeline.
func (p *Pipeline) Identity() Identity {
	return p.identity
}

// Counters returns a snapshot of the pipeline's counters.
func (p *Pipeline) Counters() CounterSnapshot {
	return p.counters.Snapshot()
}

// ID implements Owner.
func (p *Pipeline) ID() string {
	return p.identity.Name()
}

// Label implements Owner.
func (p *Pipeline) Label() string {
	return p.adapter.String() + " pipeline"
}

// Unit implements Owner.
func (p *Pipeline) Unit() string {
	return "records"
}

// Processed implements Owner. It counts inputs that entered the stages.
func (p *Pipeline) Processed() int64 {
	return p.counters.Snapshot().Processed
}

// Dispatch implements Owner. Stage failures are absorbed by the pipeline, so
// the error is always nil.
func (p *Pipeline) Dispatch(ctx context.Context, input any) (string, error) {
	return fmt.Sprint(p.Execute(ctx, input)), nil
}

// WithClock sets a custom clock for timing and timestamps.
func (p *Pipeline) WithClock(clock clockz.Clock) *Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}

func (p *Pipeline) getClock() clockz.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close gracefully shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnStageComplete registers a handler for when a stage finishes, whether it
// succeeds or fails. The handler is called asynchronously.
func (p *Pipeline) OnStageComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventStageComplete, handler)
	return err
}

// OnAllComplete registers a handler for when every stage has completed.
// The handler is called asynchronously.
func (p *Pipeline) OnAllComplete(handler func(context.Context, PipelineEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventAllComplete, handler)
	return err
}
