package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/zoobzio/batchz"
)

// processorKinds lists the processors in registration order.
var processorKinds = []batchz.DataKind{batchz.KindNumeric, batchz.KindText, batchz.KindLog}

// runtime holds the components built from a Config.
type runtime struct {
	dispatcher *batchz.Dispatcher
	processors []*batchz.Processor
	streams    map[string]*batchz.Stream
	pipelines  map[string]*batchz.Pipeline
	inputs     map[string]any
}

// build creates every configured component and registers it with a
// dispatcher writing to sink. Components built before a failure are closed.
func build(cfg *Config, sink batchz.Sink) (_ *runtime, err error) {
	rt := &runtime{
		dispatcher: batchz.NewDispatcher(
			batchz.NewIdentity("batchz", "Configured dispatcher"),
			sink,
			cfg.Dispatcher.Capacity,
		),
		streams:   make(map[string]*batchz.Stream, len(cfg.Streams)),
		pipelines: make(map[string]*batchz.Pipeline, len(cfg.Pipelines)),
		inputs:    make(map[string]any),
	}
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	for _, kind := range processorKinds {
		input, ok := cfg.Processors[kind.String()]
		if !ok {
			continue
		}
		p := batchz.NewProcessor(batchz.NewIdentity(kind.String(), kind.String()+" processor"), kind)
		if err := rt.dispatcher.Register(p); err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "register processor %s", kind)
		}
		rt.processors = append(rt.processors, p)
		rt.inputs[p.ID()] = input
	}
	for name := range cfg.Processors {
		if !knownProcessor(name) {
			return nil, errors.WithHint(
				errors.Newf("unknown processor %q", name),
				"processors may be numeric, text or log",
			)
		}
	}

	for _, sc := range cfg.Streams {
		kind, ok := batchz.ParseStreamKind(sc.Kind)
		if !ok {
			return nil, errors.WithHint(
				errors.Newf("stream %s: unknown kind %q", sc.ID, sc.Kind),
				"stream kinds are sensor, transaction or event",
			)
		}
		s := batchz.NewStream(batchz.NewIdentity(sc.ID, kind.TypeLabel()), kind)
		if err := rt.dispatcher.Register(s); err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "register stream %s", sc.ID)
		}
		rt.streams[sc.ID] = s
		rt.inputs[sc.ID] = sc.Batch
	}

	for _, pc := range cfg.Pipelines {
		adapter, err := batchz.ParseAdapter(pc.Adapter)
		if err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(err, "pipeline %s", pc.ID),
				"pipeline adapters are JSON, CSV or Stream",
			)
		}
		p := batchz.NewPipeline(
			batchz.NewIdentity(pc.ID, adapter.String()+" pipeline"),
			adapter,
			batchz.DefaultStages(cfg.Pipeline.Separator)...,
		)
		if err := rt.dispatcher.Register(p); err != nil {
			_ = p.Close()
			return nil, errors.Wrapf(err, "register pipeline %s", pc.ID)
		}
		rt.pipelines[pc.ID] = p
		rt.inputs[pc.ID] = pc.Input
	}

	return rt, nil
}

func knownProcessor(name string) bool {
	for _, kind := range processorKinds {
		if kind.String() == name {
			return true
		}
	}
	return false
}

// close releases every component's metrics and tracers.
func (rt *runtime) close() {
	for _, p := range rt.processors {
		_ = p.Close()
	}
	for _, s := range rt.streams {
		_ = s.Close()
	}
	for _, p := range rt.pipelines {
		_ = p.Close()
	}
	_ = rt.dispatcher.Close()
}

// chain builds the configured chain, or returns nil when none is declared.
func (rt *runtime) chain(cfg *Config) *batchz.Chain {
	if len(cfg.Chain.Pipelines) == 0 {
		return nil
	}
	links := make([]batchz.Chainable, 0, len(cfg.Chain.Pipelines))
	for _, id := range cfg.Chain.Pipelines {
		links = append(links, rt.pipelines[id])
	}
	return batchz.NewChain(batchz.NewIdentity("chain", "Configured chain"), links...)
}

// execute runs the dispatcher, the configured filters and the chain, writing
// results to out.
func execute(ctx context.Context, cfg *Config, out io.Writer, logger *zap.Logger) error {
	rt, err := build(cfg, consoleSink(out, logger))
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Fprintf(out, "Dispatching %d owners\n", rt.dispatcher.Len())
	rt.dispatcher.RunAll(ctx, rt.inputs)

	for _, fc := range cfg.Filters {
		if err := runFilter(ctx, rt, cfg, fc, out); err != nil {
			return err
		}
	}

	if chain := rt.chain(cfg); chain != nil {
		result, err := chain.Process(ctx, cfg.Chain.Input)
		fmt.Fprintln(out, batchz.FormatOutput(fmt.Sprint(result)))
		if err != nil {
			logger.Warn("chain stopped early", zap.Error(err))
		}
	}

	if failures := rt.dispatcher.Failures(); len(failures) > 0 {
		logger.Warn("dispatch finished with failures", zap.Int("failures", len(failures)))
	}
	return nil
}

// runFilter prints the items of a stream's batch selected by a criterion.
func runFilter(ctx context.Context, rt *runtime, cfg *Config, fc FilterConfig, out io.Writer) error {
	sc, ok := cfg.StreamByID(fc.Stream)
	if !ok {
		return errors.Newf("unknown stream %q", fc.Stream)
	}
	selected := rt.streams[sc.ID].Filter(ctx, sc.Batch, batchz.Criterion(fc.Criterion))
	fmt.Fprintf(out, "Filter %s[%s]: %d of %d selected\n", sc.ID, fc.Criterion, len(selected), len(sc.Batch))
	for _, item := range selected {
		fmt.Fprintf(out, "  %v\n", item)
	}
	return nil
}
