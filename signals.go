package batchz

import "github.com/zoobzio/capitan"

// Signal definitions for batchz events.
// Signals follow the pattern: <component>.<event>.
var (
	// Processor signals.
	SignalProcessorInvalid = capitan.NewSignal(
		"processor.invalid",
		"Processor rejected input that failed its validator or could not be summarised",
	)

	// Stream signals.
	SignalStreamProcessed = capitan.NewSignal(
		"stream.processed",
		"Stream analysed a batch and produced a report",
	)
	SignalStreamAlert = capitan.NewSignal(
		"stream.alert",
		"Sensor stream found readings outside the accepted range and skipped the average",
	)

	// Pipeline signals.
	SignalPipelineCompleted = capitan.NewSignal(
		"pipeline.completed",
		"Pipeline ran every stage successfully",
	)
	SignalPipelineStageFailed = capitan.NewSignal(
		"pipeline.stage-failed",
		"Pipeline stage failed; remaining stages were skipped and the last good value returned",
	)
	SignalPipelineRejected = capitan.NewSignal(
		"pipeline.rejected",
		"Pipeline adapter rejected input before any stage ran",
	)

	// Dispatcher signals.
	SignalDispatcherDispatched = capitan.NewSignal(
		"dispatcher.dispatched",
		"Dispatcher handed an input to an owner and collected its result",
	)
	SignalDispatcherOwnerFailed = capitan.NewSignal(
		"dispatcher.owner-failed",
		"Dispatcher owner failed; the dispatcher continued with the next owner",
	)
)

// Field keys using capitan primitive types.
var (
	// Common fields.
	FieldName       = capitan.NewStringKey("name")        // Component name
	FieldIdentityID = capitan.NewStringKey("identity_id") // Component identity UUID
	FieldKind       = capitan.NewStringKey("kind")        // Data kind
	FieldError      = capitan.NewStringKey("error")       // Error message
	FieldDuration   = capitan.NewFloat64Key("duration")   // Duration in seconds

	// Processor and stream fields.
	FieldReason     = capitan.NewStringKey("reason")    // Invalid report reason
	FieldStatus     = capitan.NewStringKey("status")    // Report status
	FieldSummary    = capitan.NewStringKey("summary")   // Rendered report
	FieldCount      = capitan.NewIntKey("count")        // Items in the batch
	FieldOutOfRange = capitan.NewIntKey("out_of_range") // Readings outside the accepted range

	// Pipeline fields.
	FieldAdapter     = capitan.NewStringKey("adapter")   // Adapter: JSON/CSV/Stream
	FieldStage       = capitan.NewStringKey("stage")     // Stage name
	FieldStageNumber = capitan.NewIntKey("stage_number") // 1-based stage position
	FieldStageCount  = capitan.NewIntKey("stage_count")  // Stages in the pipeline

	// Dispatcher fields.
	FieldOwner  = capitan.NewStringKey("owner")  // Owner ID
	FieldResult = capitan.NewStringKey("result") // Rendered owner result
)
