// Package batchz provides typed batch processing: validators, data-kind
// processors, analytical streams, staged pipelines and a dispatcher that
// routes each input to its owner and reports a summary line per owner.
//
// # Overview
//
// Every component reduces untyped input (numbers, text, records and
// sequences of them) to a Report or a rendered string. Input that does not
// fit is reported, never thrown: a processor that receives the wrong shape
// returns an Invalid report, a pipeline whose stage fails returns the last
// good value, and a dispatcher whose owner fails writes an error line and
// moves on to the next owner.
//
// # Core Concepts
//
//   - Processor: summarises one input of a DataKind (numeric, text, log)
//   - Stream: analyses a batch of sensor readings, transactions or events
//     and selects subsets of it by Criterion
//   - Stage: one step of a pipeline (input, transform, output)
//   - Pipeline: an adapter precondition (JSON, CSV, Stream) followed by
//     stages run in order
//   - Chain: pipelines run back to back, each consuming the last result
//   - Dispatcher: a bounded registry of Owners run in registration order
//
// # Usage Example
//
//	sink := batchz.WriterSink(os.Stdout)
//	d := batchz.NewDispatcher(batchz.NewIdentity("nexus", "Main dispatcher"), sink, 0)
//
//	_ = d.Register(batchz.NewNumericProcessor())
//	_ = d.Register(batchz.NewSensorStream("SENSOR_001"))
//	_ = d.Register(batchz.NewJSONPipeline("JSON_PIPELINE"))
//
//	d.RunAll(ctx, map[string]any{
//	    "numeric":       []any{1, 2, 3, 4, 5},
//	    "SENSOR_001":    []any{batchz.Record{"temp": 22.5}, batchz.Record{"temp": 65.0}},
//	    "JSON_PIPELINE": batchz.Record{"sensor": "temp", "value": 23.5, "unit": "C"},
//	})
//
//	// - Numeric data: 5 values processed
//	// - Sensor data: 2 readings processed
//	// - JSON pipeline: 1 records processed
//
// # Observability
//
// Components carry a metricz registry and a tracez tracer. Pipelines and
// filters expose hookz hooks for per-stage and per-selection events, and
// every component emits capitan signals (see signals.go) that callers can
// bridge to their logger.
//
// # Errors
//
// Failures are reported as *Error values carrying the path of identities
// from the outermost component to the one that failed. Sentinel errors
// (ErrInvalidInput, ErrInvalidFormat, ErrCapacity and friends) are matched
// with errors.Is.
package batchz
