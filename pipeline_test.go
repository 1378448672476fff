package batchz

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// explodingStage panics when applied.
type explodingStage struct{ identity Identity }

func (s explodingStage) Identity() Identity { return s.identity }

func (explodingStage) Apply(context.Context, any) (any, error) { panic("stage exploded") }

func (explodingStage) stage() {}

func TestStages(t *testing.T) {
	ctx := context.Background()

	t.Run("input rejects absent items", func(t *testing.T) {
		if _, err := NewInputStage().Apply(ctx, nil); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
		out, err := NewInputStage().Apply(ctx, "x")
		if err != nil || out != "x" {
			t.Errorf("expected pass-through, got %v %v", out, err)
		}
	})

	t.Run("transform enriches records without mutating them", func(t *testing.T) {
		in := Record{"value": 21.5}
		out, err := NewTransformStage("").Apply(ctx, in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(out, Record{"value": 21.5, "status": "validated"}) {
			t.Errorf("unexpected output %v", out)
		}
		if in.Has(RecordStatus) {
			t.Error("input record was modified")
		}
	})

	t.Run("transform leaves records without value", func(t *testing.T) {
		in := Record{"sensor": "temp"}
		out, _ := NewTransformStage("").Apply(ctx, in)
		if !reflect.DeepEqual(out, in) {
			t.Errorf("expected unchanged record, got %v", out)
		}
	})

	t.Run("transform splits text", func(t *testing.T) {
		out, _ := NewTransformStage(";").Apply(ctx, "user;action; action ;time")
		if !reflect.DeepEqual(out, Record{RecordActions: 2, RecordFields: 4}) {
			t.Errorf("unexpected output %v", out)
		}
	})

	t.Run("transform summarises numeric sequences", func(t *testing.T) {
		out, _ := NewTransformStage("").Apply(ctx, []any{22.0, 21.0, 23.0})
		if !reflect.DeepEqual(out, Record{RecordCount: 3, RecordAvg: 22.0}) {
			t.Errorf("unexpected output %v", out)
		}
	})

	t.Run("transform passes other values", func(t *testing.T) {
		out, _ := NewTransformStage("").Apply(ctx, 42)
		if out != 42 {
			t.Errorf("expected 42, got %v", out)
		}
	})

	t.Run("output phrasing", func(t *testing.T) {
		tests := []struct {
			in   any
			want string
		}{
			{Record{"value": 23.5, "status": "validated"}, "Processed temperature reading: 23.5°C (validated)"},
			{Record{"count": 3, "avg": 22.0}, "Stream summary: 3 readings, avg: 22.0°C"},
			{Record{"actions": 2, "fields": 3}, "User activity logged: 2 actions processed"},
			{Record{"value": 1}, "User activity logged: 0 actions processed"},
			{"plain", "User activity logged: 0 actions processed"},
		}
		for _, tt := range tests {
			out, err := NewOutputStage().Apply(ctx, tt.in)
			if err != nil || out != tt.want {
				t.Errorf("Apply(%v) = %v, %v; want %q", tt.in, out, err, tt.want)
			}
		}
	})
}

func TestPipelineAdapters(t *testing.T) {
	ctx := context.Background()

	t.Run("JSON temperature reading", func(t *testing.T) {
		p := NewJSONPipeline("JSON_PIPELINE")
		defer p.Close()

		out, err := p.Process(ctx, Record{"sensor": "temp", "value": 23.5, "unit": "C"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "Processed temperature reading: 23.5°C (validated)" {
			t.Errorf("unexpected output %v", out)
		}
		want := CounterSnapshot{Processed: 1, StagesExecuted: 3, Successes: 1}
		if got := p.Counters(); got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("CSV activity", func(t *testing.T) {
		p := NewCSVPipeline("CSV_PIPELINE")
		defer p.Close()

		if out := p.Execute(ctx, "user,action,timestamp"); out != "User activity logged: 1 actions processed" {
			t.Errorf("unexpected output %v", out)
		}
	})

	t.Run("Stream summary", func(t *testing.T) {
		p := NewStreamPipeline("STREAM_PIPELINE")
		defer p.Close()

		if out := p.Execute(ctx, []float64{22.0, 21.0, 23.0}); out != "Stream summary: 3 readings, avg: 22.0°C" {
			t.Errorf("unexpected output %v", out)
		}
	})

	t.Run("rejection leaves counters untouched", func(t *testing.T) {
		tests := []struct {
			p    *Pipeline
			in   any
			want string
		}{
			{NewJSONPipeline("J"), 42, "[ERROR] JSON pipeline J rejected input: expected a record, got a number"},
			{NewJSONPipeline("J"), nil, "[ERROR] JSON pipeline J rejected input: expected a record, got nothing"},
			{NewStreamPipeline("S"), "text", "[ERROR] Stream pipeline S rejected input: expected a sequence, got text"},
			{NewStreamPipeline("S"), nil, "[ERROR] Stream pipeline S rejected input: expected a sequence, got nothing"},
		}
		for _, tt := range tests {
			out, err := tt.p.Process(ctx, tt.in)
			if out != tt.want {
				t.Errorf("expected %q, got %v", tt.want, out)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if got := tt.p.Counters(); got != (CounterSnapshot{}) {
				t.Errorf("expected untouched counters, got %+v", got)
			}
			if v := tt.p.Metrics().Counter(PipelineRejectedTotal).Value(); v != 1 {
				t.Errorf("expected 1 rejection, got %f", v)
			}
			tt.p.Close()
		}
	})

	t.Run("ParseAdapter", func(t *testing.T) {
		for name, want := range map[string]Adapter{"JSON": AdapterJSON, "csv": AdapterCSV, "STREAM": AdapterStream} {
			got, err := ParseAdapter(name)
			if err != nil || got != want {
				t.Errorf("ParseAdapter(%q) = %v, %v", name, got, err)
			}
		}
		if _, err := ParseAdapter("xml"); err == nil {
			t.Error("expected error for unknown adapter")
		}
	})
}

func TestPipelineStageFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("absent input aborts at the input stage", func(t *testing.T) {
		p := NewCSVPipeline("CSV_PIPELINE")
		defer p.Close()

		out, err := p.Process(ctx, nil)
		if out != nil {
			t.Errorf("expected nil result, got %v", out)
		}
		if !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("expected ErrInvalidFormat, got %v", err)
		}
		var pipeErr *Error[any]
		if !errors.As(err, &pipeErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if !reflect.DeepEqual(pipeErr.Names(), []string{"CSV_PIPELINE", "input"}) {
			t.Errorf("unexpected path %v", pipeErr.Names())
		}
		want := CounterSnapshot{Processed: 1, Errors: 1}
		if got := p.Counters(); got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("panic returns the last good value", func(t *testing.T) {
		p := NewPipeline(NewIdentity("P", ""), AdapterCSV,
			NewInputStage(),
			NewTransformStage(""),
			explodingStage{identity: NewIdentity("explode", "")},
			NewOutputStage(),
		)
		defer p.Close()

		out, err := p.Process(ctx, "a,action")
		if !errors.Is(err, ErrPanic) {
			t.Fatalf("expected ErrPanic, got %v", err)
		}
		if !reflect.DeepEqual(out, Record{RecordActions: 1, RecordFields: 2}) {
			t.Errorf("expected transform output, got %v", out)
		}
		want := CounterSnapshot{Processed: 1, StagesExecuted: 2, Errors: 1}
		if got := p.Counters(); got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
		if v := p.Metrics().Counter(PipelineFailuresTotal).Value(); v != 1 {
			t.Errorf("expected 1 failure, got %f", v)
		}
	})

	t.Run("panic errors are stamped by the pipeline clock", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		p := NewPipeline(NewIdentity("P", ""), AdapterCSV, explodingStage{identity: NewIdentity("explode", "")}).
			WithClock(clock)
		defer p.Close()

		_, err := p.Process(ctx, "a")
		var pipeErr *Error[any]
		if !errors.As(err, &pipeErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if !pipeErr.Timestamp.Equal(clock.Now()) {
			t.Errorf("expected timestamp %v, got %v", clock.Now(), pipeErr.Timestamp)
		}
	})

	t.Run("canceled context stops before the first stage", func(t *testing.T) {
		p := NewJSONPipeline("J")
		defer p.Close()

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		in := Record{"value": 1.0}
		out, err := p.Process(canceled, in)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		var pipeErr *Error[any]
		if !errors.As(err, &pipeErr) || !pipeErr.IsCanceled() {
			t.Errorf("expected canceled *Error, got %v", err)
		}
		if !reflect.DeepEqual(out, in) {
			t.Errorf("expected input back, got %v", out)
		}
		if p.Counters().StagesExecuted != 0 {
			t.Errorf("expected no stages, got %d", p.Counters().StagesExecuted)
		}
	})
}

func TestPipelineModification(t *testing.T) {
	ctx := context.Background()
	p := NewJSONPipeline("J")
	defer p.Close()

	if !reflect.DeepEqual(p.Names(), []Name{"input", "transform", "output"}) {
		t.Fatalf("unexpected stages %v", p.Names())
	}

	if err := p.Remove(TransformStageName); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if out := p.Execute(ctx, Record{"value": 3.0}); out != "User activity logged: 0 actions processed" {
		t.Errorf("unexpected output without transform %v", out)
	}

	if err := p.Remove("missing"); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}
	if err := p.Replace("missing", NewOutputStage()); !errors.Is(err, ErrStageNotFound) {
		t.Errorf("expected ErrStageNotFound, got %v", err)
	}

	t2 := NewTransformStage("")
	t2.Status = "checked"
	if err := p.Replace(OutputStageName, t2); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	p.Push(NewOutputStage())
	if out := p.Execute(ctx, Record{"value": 3.0}); out != "Processed temperature reading: 3°C (checked)" {
		t.Errorf("unexpected output %v", out)
	}

	p.Unshift(NewInputStage())
	if p.Len() != 4 || p.Names()[0] != InputStageName || p.Names()[1] != InputStageName {
		t.Errorf("unexpected stages after unshift %v", p.Names())
	}

	p.Clear()
	if p.Len() != 0 {
		t.Errorf("expected no stages, got %d", p.Len())
	}
	out, err := p.Process(ctx, Record{"value": 1})
	if err != nil || !reflect.DeepEqual(out, Record{"value": 1}) {
		t.Errorf("expected pass-through with no stages, got %v %v", out, err)
	}
}

func TestPipelineOwner(t *testing.T) {
	ctx := context.Background()
	p := NewStreamPipeline("STREAM_PIPELINE")
	defer p.Close()

	if p.ID() != "STREAM_PIPELINE" || p.Label() != "Stream pipeline" || p.Unit() != "records" {
		t.Errorf("unexpected owner labels %q %q %q", p.ID(), p.Label(), p.Unit())
	}

	out, err := p.Dispatch(ctx, "not a sequence")
	if err != nil {
		t.Fatalf("dispatch must not fail: %v", err)
	}
	if out != "[ERROR] Stream pipeline STREAM_PIPELINE rejected input: expected a sequence, got text" {
		t.Errorf("unexpected output %q", out)
	}
	if p.Processed() != 0 {
		t.Errorf("rejected input must not count, got %d", p.Processed())
	}

	_, _ = p.Dispatch(ctx, []any{1, 2})
	if p.Processed() != 1 {
		t.Errorf("expected 1 processed, got %d", p.Processed())
	}
}

func TestPipelineObservability(t *testing.T) {
	ctx := context.Background()

	t.Run("metrics", func(t *testing.T) {
		p := NewJSONPipeline("metrics")
		defer p.Close()

		_, _ = p.Process(ctx, Record{"value": 1.0})
		if v := p.Metrics().Counter(PipelineProcessedTotal).Value(); v != 1 {
			t.Errorf("expected 1 processed, got %f", v)
		}
		if v := p.Metrics().Counter(PipelineSuccessesTotal).Value(); v != 1 {
			t.Errorf("expected 1 success, got %f", v)
		}
		if v := p.Metrics().Gauge(PipelineStagesCompleted).Value(); v != 3 {
			t.Errorf("expected 3 stages completed, got %f", v)
		}
		if v := p.Metrics().Gauge(PipelineStagesTotal).Value(); v != 3 {
			t.Errorf("expected 3 stages total, got %f", v)
		}
	})

	t.Run("hooks fire on stage events", func(t *testing.T) {
		p := NewJSONPipeline("hooks")
		defer p.Close()

		var mu sync.Mutex
		var stageEvents, allEvents []PipelineEvent
		_ = p.OnStageComplete(func(_ context.Context, e PipelineEvent) error {
			mu.Lock()
			stageEvents = append(stageEvents, e)
			mu.Unlock()
			return nil
		})
		_ = p.OnAllComplete(func(_ context.Context, e PipelineEvent) error {
			mu.Lock()
			allEvents = append(allEvents, e)
			mu.Unlock()
			return nil
		})

		_, _ = p.Process(ctx, Record{"value": 1.0})
		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if len(stageEvents) != 3 {
			t.Fatalf("expected 3 stage events, got %d", len(stageEvents))
		}
		seen := map[Name]bool{}
		for _, e := range stageEvents {
			if !e.Success || e.TotalStages != 3 || e.Adapter != AdapterJSON {
				t.Errorf("unexpected stage event %+v", e)
			}
			seen[e.StageName] = true
		}
		if !seen[InputStageName] || !seen[TransformStageName] || !seen[OutputStageName] {
			t.Errorf("missing stage events: %v", seen)
		}
		if len(allEvents) != 1 || allEvents[0].CompletedStages != 3 {
			t.Errorf("unexpected all-complete events %+v", allEvents)
		}
	})

	t.Run("completed signal", func(t *testing.T) {
		var mu sync.Mutex
		var stageCount int
		listener := capitan.Hook(SignalPipelineCompleted, func(_ context.Context, e *capitan.Event) {
			if name, _ := FieldName.From(e); name != "signal-pipeline" {
				return
			}
			mu.Lock()
			stageCount, _ = FieldStageCount.From(e)
			mu.Unlock()
		})
		defer listener.Close()

		p := NewCSVPipeline("signal-pipeline")
		defer p.Close()
		_ = p.Execute(ctx, "a,b")

		if err := listener.Drain(ctx); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if stageCount != 3 {
			t.Errorf("expected stage_count 3, got %d", stageCount)
		}
	})

	t.Run("stage failed signal", func(t *testing.T) {
		var mu sync.Mutex
		var stage string
		listener := capitan.Hook(SignalPipelineStageFailed, func(_ context.Context, e *capitan.Event) {
			if name, _ := FieldName.From(e); name != "signal-failing" {
				return
			}
			mu.Lock()
			stage, _ = FieldStage.From(e)
			mu.Unlock()
		})
		defer listener.Close()

		p := NewCSVPipeline("signal-failing")
		defer p.Close()
		_ = p.Execute(ctx, nil)

		if err := listener.Drain(ctx); err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if stage != InputStageName {
			t.Errorf("expected failing stage input, got %q", stage)
		}
	})
}
