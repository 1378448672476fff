package batchz

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// plainLink is a Chainable that returns a plain error.
type plainLink struct {
	identity Identity
	err      error
}

func (l plainLink) Identity() Identity { return l.identity }

func (l plainLink) Process(_ context.Context, item any) (any, error) {
	return item, l.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("feeds each result to the next link", func(t *testing.T) {
		jsonPipe := NewJSONPipeline("A")
		csvPipe := NewCSVPipeline("B")
		defer jsonPipe.Close()
		defer csvPipe.Close()

		chain := NewChain(NewIdentity("ab", ""), jsonPipe, csvPipe)
		out, err := chain.Process(ctx, Record{"value": 21.0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "User activity logged: 0 actions processed" {
			t.Errorf("unexpected output %v", out)
		}
		if chain.Len() != 2 {
			t.Errorf("expected 2 links, got %d", chain.Len())
		}
	})

	t.Run("empty chain returns its input", func(t *testing.T) {
		chain := NewChain(NewIdentity("empty", ""))
		if out := chain.Execute(ctx, 5); out != 5 {
			t.Errorf("expected 5, got %v", out)
		}
	})

	t.Run("stage failure carries the full path", func(t *testing.T) {
		csvPipe := NewCSVPipeline("B")
		defer csvPipe.Close()

		chain := NewChain(NewIdentity("outer", ""), plainLink{identity: NewIdentity("pass", "")}, csvPipe)
		_, err := chain.Process(ctx, nil)

		var chainErr *Error[any]
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if !reflect.DeepEqual(chainErr.Names(), []string{"outer", "B", "input"}) {
			t.Errorf("unexpected path %v", chainErr.Names())
		}
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})

	t.Run("plain errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		chain := NewChain(NewIdentity("outer", ""))
		chain.Add(plainLink{identity: NewIdentity("broken", ""), err: boom})

		out, err := chain.Process(ctx, "x")
		if out != "x" {
			t.Errorf("expected the failing link's result, got %v", out)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		var chainErr *Error[any]
		if !errors.As(err, &chainErr) || !reflect.DeepEqual(chainErr.Names(), []string{"outer", "broken"}) {
			t.Errorf("unexpected error %v", err)
		}
	})
}
