package batchz

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

func TestProcessorNumeric(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input any
		want  string
		count int64
	}{
		{"integer batch", []any{1, 2, 3, 4, 5}, "Processed 5 numeric values, sum=15, avg=3.0", 5},
		{"typed batch", []int{1, 2, 3, 4, 5}, "Processed 5 numeric values, sum=15, avg=3.0", 5},
		{"float batch", []any{1.5, 2.5}, "Processed 2 numeric values, sum=4.0, avg=2.0", 2},
		{"mixed batch", []any{1, 2.5}, "Processed 2 numeric values, sum=3.5, avg=1.75", 2},
		{"single number", 7, "Processed 1 numeric values, sum=7, avg=7.0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewNumericProcessor()
			defer p.Close()

			report := p.Process(ctx, tt.input)
			if !report.OK() {
				t.Fatalf("expected OK report, got %s", report.Status)
			}
			if report.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, report.String())
			}
			if got := p.Counters().Processed; got != tt.count {
				t.Errorf("expected processed %d, got %d", tt.count, got)
			}
		})
	}

	t.Run("aggregate is typed", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		report := p.Process(ctx, []any{1, 2, 3, 4, 5})
		summary, ok := report.Aggregate.(NumericSummary)
		if !ok {
			t.Fatalf("expected NumericSummary, got %T", report.Aggregate)
		}
		if summary.Count != 5 || summary.Sum != 15 || summary.Average != 3.0 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if report.Output() != "Output: Processed 5 numeric values, sum=15, avg=3.0" {
			t.Errorf("unexpected output %q", report.Output())
		}
	})

	t.Run("integer overflow continues in floating point", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		for _, input := range []any{
			[]int64{math.MaxInt64, 1},
			[]int64{math.MinInt64, -1},
			[]any{uint64(math.MaxUint64)},
		} {
			report := p.Process(ctx, input)
			summary, ok := report.Aggregate.(NumericSummary)
			if !ok {
				t.Fatalf("expected NumericSummary for %v, got %T", input, report.Aggregate)
			}
			if summary.Integral {
				t.Errorf("expected %v to leave the integer path", input)
			}
			if summary.Average != summary.Sum/float64(summary.Count) {
				t.Errorf("average %v is not sum/count for %v", summary.Average, input)
			}
		}

		report := p.Process(ctx, []int64{math.MaxInt64, 1})
		if summary := report.Aggregate.(NumericSummary); summary.Sum <= 0 {
			t.Errorf("expected positive sum, got %v", summary.Sum)
		}
		if strings.Contains(report.String(), "sum=-") {
			t.Errorf("sum wrapped around: %q", report.String())
		}

		exact := p.Process(ctx, []any{int64(math.MaxInt64)})
		if !strings.Contains(exact.String(), "sum=9223372036854775807,") {
			t.Errorf("expected exact integer sum, got %q", exact.String())
		}
	})

	t.Run("booleans are rejected", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		report := p.Process(ctx, []any{1, true})
		if report.Status != StatusInvalid {
			t.Fatalf("expected invalid report, got %s", report.Status)
		}
		if report.String() != "[ALERT] ERROR level detected: invalid numeric data" {
			t.Errorf("unexpected summary %q", report.String())
		}
		if !errors.Is(report.Err(), ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", report.Err())
		}
		counters := p.Counters()
		if counters.Errors != 1 || counters.Processed != 0 {
			t.Errorf("unexpected counters %+v", counters)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		report := p.Process(ctx, []any{})
		if report.Status != StatusEmpty {
			t.Fatalf("expected empty report, got %s", report.Status)
		}
		if report.Output() != "Output: data empty" {
			t.Errorf("unexpected output %q", report.Output())
		}
		if !errors.Is(report.Err(), ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", report.Err())
		}
		if got := p.Metrics().Counter(ProcessorEmptyTotal).Value(); got != 1 {
			t.Errorf("expected 1 empty report, got %f", got)
		}
	})
}

func TestProcessorText(t *testing.T) {
	ctx := context.Background()
	p := NewTextProcessor()
	defer p.Close()

	report := p.Process(ctx, "Hello Nexus World")
	summary, ok := report.Aggregate.(TextSummary)
	if !ok {
		t.Fatalf("expected TextSummary, got %T", report.Aggregate)
	}
	if summary.Characters != 17 || summary.Words != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if report.String() != "Processed text: 17 characters, 3 words" {
		t.Errorf("unexpected summary %q", report.String())
	}

	t.Run("only spaces separate words", func(t *testing.T) {
		got := summariseText("a\tb  c\nd")
		if got.Words != 2 || got.Characters != 8 {
			t.Errorf("unexpected summary %+v", got)
		}
	})

	t.Run("characters are runes", func(t *testing.T) {
		got := summariseText("héllo wörld")
		if got.Characters != 11 || got.Words != 2 {
			t.Errorf("unexpected summary %+v", got)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if r := p.Process(ctx, ""); r.Status != StatusEmpty {
			t.Errorf("expected empty report, got %s", r.Status)
		}
	})

	t.Run("non-text", func(t *testing.T) {
		r := p.Process(ctx, 42)
		if r.String() != "[ALERT] ERROR level detected: invalid text data" {
			t.Errorf("unexpected summary %q", r.String())
		}
	})
}

func TestProcessorLog(t *testing.T) {
	ctx := context.Background()
	p := NewLogProcessor()
	defer p.Close()

	tests := []struct {
		line    string
		level   Level
		message string
		want    string
	}{
		{"ERROR: Connection timeout", LevelAlert, "Connection timeout", "[ALERT] ERROR level detected: Connection timeout"},
		{"WARNING:  disk at 91%  ", LevelWarning, "disk at 91%", "[WARNING] WARNING level detected: disk at 91%"},
		{"INFO: started", LevelInfo, "started", "[INFO] INFO level detected: started"},
		{"  service ready ", LevelInfo, "service ready", "[INFO] INFO level detected: service ready"},
		{"error: lower case is not a prefix", LevelInfo, "error: lower case is not a prefix", "[INFO] INFO level detected: error: lower case is not a prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			report := p.Process(ctx, tt.line)
			summary, ok := report.Aggregate.(LogSummary)
			if !ok {
				t.Fatalf("expected LogSummary, got %T", report.Aggregate)
			}
			if summary.Level != tt.level || summary.Message != tt.message {
				t.Errorf("unexpected summary %+v", summary)
			}
			if report.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, report.String())
			}
		})
	}
}

func TestProcessorOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("labels", func(t *testing.T) {
		for _, tc := range []struct {
			p     *Processor
			id    string
			label string
			unit  string
		}{
			{NewNumericProcessor(), "numeric", "Numeric data", "values"},
			{NewTextProcessor(), "text", "Text data", "texts"},
			{NewLogProcessor(), "log", "Log data", "entries"},
		} {
			if tc.p.ID() != tc.id || tc.p.Label() != tc.label || tc.p.Unit() != tc.unit {
				t.Errorf("unexpected owner labels %q %q %q", tc.p.ID(), tc.p.Label(), tc.p.Unit())
			}
		}
	})

	t.Run("dispatch absent input", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		out, err := p.Dispatch(ctx, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "Output: data empty" {
			t.Errorf("unexpected output %q", out)
		}
		if p.Processed() != 0 {
			t.Errorf("expected nothing processed, got %d", p.Processed())
		}
	})

	t.Run("dispatch counts values", func(t *testing.T) {
		p := NewNumericProcessor()
		defer p.Close()

		out, err := p.Dispatch(ctx, []any{1, 2, 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "Output: Processed 3 numeric values, sum=6, avg=2.0" {
			t.Errorf("unexpected output %q", out)
		}
		if p.Processed() != 3 {
			t.Errorf("expected 3 processed, got %d", p.Processed())
		}
	})
}

func TestProcessorClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	p := NewTextProcessor().WithClock(clock)
	defer p.Close()

	report := p.Process(context.Background(), "tick")
	if !report.Timestamp.Equal(clock.Now()) {
		t.Errorf("expected timestamp %v, got %v", clock.Now(), report.Timestamp)
	}
	if report.Source.Name() != "text" {
		t.Errorf("expected source text, got %q", report.Source.Name())
	}
}

func TestProcessorUnsupportedKind(t *testing.T) {
	p := NewProcessor(NewIdentity("records", "unsupported"), KindRecord)
	defer p.Close()

	report := p.Process(context.Background(), Record{"value": 1})
	if report.Status != StatusInvalid {
		t.Errorf("expected invalid report, got %s", report.Status)
	}
}

func TestProcessorInvalidSignal(t *testing.T) {
	var name, reason string
	listener := capitan.Hook(SignalProcessorInvalid, func(_ context.Context, e *capitan.Event) {
		if n, _ := FieldName.From(e); n == "signal-numeric" {
			name = n
			reason, _ = FieldReason.From(e)
		}
	})
	defer listener.Close()

	p := NewProcessor(NewIdentity("signal-numeric", ""), KindNumeric)
	defer p.Close()
	_ = p.Process(context.Background(), "not numbers")

	if err := listener.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if name != "signal-numeric" {
		t.Errorf("expected signal for signal-numeric, got %q", name)
	}
	if reason != "invalid numeric data" {
		t.Errorf("unexpected reason %q", reason)
	}
}

func TestProcessorPanicBecomesInvalid(t *testing.T) {
	var mu sync.Mutex
	var cause string
	listener := capitan.Hook(SignalProcessorInvalid, func(_ context.Context, e *capitan.Event) {
		if n, _ := FieldName.From(e); n != "panicky-numeric" {
			return
		}
		mu.Lock()
		cause, _ = FieldError.From(e)
		mu.Unlock()
	})
	defer listener.Close()

	p := NewProcessor(NewIdentity("panicky-numeric", ""), KindNumeric)
	defer p.Close()
	// Let a non-numeric batch through so summarising it panics.
	p.validate = func(any) bool { return true }

	report := p.Process(context.Background(), []any{"one", "two"})

	if report.Status != StatusInvalid {
		t.Fatalf("expected invalid report, got %s", report.Status)
	}
	if report.Kind != KindNumeric || report.Reason != "invalid numeric data" {
		t.Errorf("unexpected report %+v", report)
	}
	if got := p.Counters().Errors; got != 1 {
		t.Errorf("expected 1 error, got %d", got)
	}
	if err := listener.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if cause == "" {
		t.Error("expected the panic message in the signal")
	}
}
