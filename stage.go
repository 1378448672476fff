package batchz

import (
	"context"
	"fmt"
	"strings"
)

// Default stage names.
const (
	InputStageName     Name = "input"
	TransformStageName Name = "transform"
	OutputStageName    Name = "output"
)

// Transform defaults.
const (
	DefaultSeparator = ","
	ValidatedStatus  = "validated"
)

// Record fields read and written by the stages.
const (
	RecordValue   = "value"
	RecordStatus  = "status"
	RecordCount   = "count"
	RecordAvg     = "avg"
	RecordActions = "actions"
	RecordFields  = "fields"
)

// Stage is one step of a Pipeline. The set of stages is closed: InputStage,
// TransformStage and OutputStage are the only implementations.
type Stage interface {
	Identity() Identity
	Apply(ctx context.Context, item any) (any, error)
	stage()
}

// InputStage passes items through unchanged and rejects absent ones.
type InputStage struct {
	identity Identity
}

// NewInputStage creates the input validation stage.
func NewInputStage() InputStage {
	return InputStage{identity: NewIdentity(InputStageName, "Input validation and parsing")}
}

// Identity implements Stage.
func (s InputStage) Identity() Identity { return s.identity }

// Apply implements Stage.
func (InputStage) Apply(_ context.Context, item any) (any, error) {
	if item == nil {
		return nil, ErrInvalidFormat
	}
	return item, nil
}

func (InputStage) stage() {}

// TransformStage enriches an item according to its shape:
//
//   - a Record with a value field gets a copy with status set;
//   - a string is split on Separator into {actions, fields}, where actions
//     counts the fields equal to "action";
//   - a numeric sequence becomes {count, avg};
//   - anything else passes through unchanged.
type TransformStage struct {
	identity  Identity
	Separator string
	Status    string
}

// NewTransformStage creates the transform stage. An empty separator means
// DefaultSeparator.
func NewTransformStage(separator string) TransformStage {
	if separator == "" {
		separator = DefaultSeparator
	}
	return TransformStage{
		identity:  NewIdentity(TransformStageName, "Data transformation and enrichment"),
		Separator: separator,
		Status:    ValidatedStatus,
	}
}

// Identity implements Stage.
func (s TransformStage) Identity() Identity { return s.identity }

// Apply implements Stage. The input is never modified.
func (s TransformStage) Apply(_ context.Context, item any) (any, error) {
	if record, ok := AsRecord(item); ok {
		if !record.Has(RecordValue) {
			return item, nil
		}
		enriched := record.Clone()
		enriched[RecordStatus] = s.status()
		return enriched, nil
	}

	if text, ok := item.(string); ok {
		fields := strings.Split(text, s.separator())
		actions := 0
		for _, f := range fields {
			if strings.TrimSpace(f) == "action" {
				actions++
			}
		}
		return Record{RecordActions: actions, RecordFields: len(fields)}, nil
	}

	if batch, ok := AsBatch(item); ok && item != nil && ValidateNumeric(batch) {
		summary, _ := summariseNumeric(batch)
		return Record{RecordCount: summary.Count, RecordAvg: summary.Average}, nil
	}

	return item, nil
}

func (s TransformStage) separator() string {
	if s.Separator == "" {
		return DefaultSeparator
	}
	return s.Separator
}

func (s TransformStage) status() string {
	if s.Status == "" {
		return ValidatedStatus
	}
	return s.Status
}

func (TransformStage) stage() {}

// OutputStage renders the transformed item as a sentence.
type OutputStage struct {
	identity Identity
}

// NewOutputStage creates the output formatting stage.
func NewOutputStage() OutputStage {
	return OutputStage{identity: NewIdentity(OutputStageName, "Output formatting and delivery")}
}

// Identity implements Stage.
func (s OutputStage) Identity() Identity { return s.identity }

// Apply implements Stage.
func (OutputStage) Apply(_ context.Context, item any) (any, error) {
	record, _ := AsRecord(item)
	switch {
	case record.Has(RecordValue) && record.Has(RecordStatus):
		return fmt.Sprintf("Processed temperature reading: %v°C (%v)", record[RecordValue], record[RecordStatus]), nil
	case record.Has(RecordCount) && record.Has(RecordAvg):
		return fmt.Sprintf("Stream summary: %d readings, avg: %s°C", record.Int(RecordCount), formatFloat(record.Float(RecordAvg))), nil
	default:
		return fmt.Sprintf("User activity logged: %d actions processed", record.Int(RecordActions)), nil
	}
}

func (OutputStage) stage() {}

// DefaultStages returns the input, transform and output stages in order.
func DefaultStages(separator string) []Stage {
	return []Stage{NewInputStage(), NewTransformStage(separator), NewOutputStage()}
}
