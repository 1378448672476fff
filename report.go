package batchz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Status is the outcome class of a Report.
type Status int

// Report statuses.
const (
	StatusOK Status = iota
	StatusEmpty
	StatusInvalid
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Aggregate is the computed result carried by an OK report. It is one of
// NumericSummary, TextSummary, LogSummary, SensorSummary,
// TransactionSummary or EventSummary.
type Aggregate interface {
	Kind() DataKind
	render() string
}

// NumericSummary is the result of summarising a numeric batch.
type NumericSummary struct {
	Count   int
	Sum     float64
	Average float64
	// Integral is true when every input was an integer; the sum is then
	// rendered without a fractional part.
	Integral bool

	whole int64
	exact bool
}

// Kind implements Aggregate.
func (NumericSummary) Kind() DataKind { return KindNumeric }

func (s NumericSummary) render() string {
	sum := formatFloat(s.Sum)
	switch {
	case s.exact:
		sum = strconv.FormatInt(s.whole, 10)
	case s.Integral:
		sum = strconv.FormatFloat(s.Sum, 'f', 0, 64)
	}
	return fmt.Sprintf("Processed %d numeric values, sum=%s, avg=%s", s.Count, sum, formatFloat(s.Average))
}

// TextSummary is the result of summarising a text value.
type TextSummary struct {
	Characters int
	Words      int
}

// Kind implements Aggregate.
func (TextSummary) Kind() DataKind { return KindText }

func (s TextSummary) render() string {
	return fmt.Sprintf("Processed text: %d characters, %d words", s.Characters, s.Words)
}

// Level is the severity of a log line.
type Level int

// Log levels.
const (
	LevelInfo Level = iota
	LevelWarning
	LevelAlert
)

// Tag returns the report tag: INFO, WARNING or ALERT.
func (l Level) Tag() string {
	switch l {
	case LevelAlert:
		return "ALERT"
	case LevelWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// Severity returns the source severity name: INFO, WARNING or ERROR.
func (l Level) Severity() string {
	switch l {
	case LevelAlert:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// LogSummary is the result of classifying a log line.
type LogSummary struct {
	Level   Level
	Message string
}

// Kind implements Aggregate.
func (LogSummary) Kind() DataKind { return KindLog }

func (s LogSummary) render() string {
	return fmt.Sprintf("[%s] %s level detected: %s", s.Level.Tag(), s.Level.Severity(), s.Message)
}

// SensorSummary is the result of analysing a sensor batch. When Alert is
// set the average is not computed.
type SensorSummary struct {
	Readings    int
	AverageTemp float64
	Alert       bool
	OutOfRange  int
}

// Kind implements Aggregate.
func (SensorSummary) Kind() DataKind { return KindSensor }

func (s SensorSummary) render() string {
	if s.Alert {
		return fmt.Sprintf("Sensor analysis: %d readings processed, ALERT: %d readings out of range", s.Readings, s.OutOfRange)
	}
	return fmt.Sprintf("Sensor analysis: %d readings processed, avg temp: %s°C", s.Readings, formatFloat(s.AverageTemp))
}

// TransactionSummary is the result of analysing a transaction batch.
type TransactionSummary struct {
	Operations int
	NetFlow    int64
}

// Kind implements Aggregate.
func (TransactionSummary) Kind() DataKind { return KindTransaction }

func (s TransactionSummary) render() string {
	return fmt.Sprintf("Transaction analysis: %d operations, net flow: %s units", s.Operations, signed(s.NetFlow))
}

// EventSummary is the result of analysing an event batch.
type EventSummary struct {
	Events int
	Errors int
}

// Kind implements Aggregate.
func (EventSummary) Kind() DataKind { return KindEvent }

func (s EventSummary) render() string {
	return fmt.Sprintf("Event analysis: %d events, %d error detected", s.Events, s.Errors)
}

// Report is the immutable outcome of one processing call.
type Report struct {
	Timestamp time.Time
	Aggregate Aggregate
	Source    Identity
	Reason    string
	summary   string
	Kind      DataKind
	Status    Status
}

// String returns the rendered summary.
func (r Report) String() string {
	return r.summary
}

// Output returns the summary prefixed for console display.
func (r Report) Output() string {
	return FormatOutput(r.summary)
}

// OK reports whether the report carries an aggregate.
func (r Report) OK() bool {
	return r.Status == StatusOK
}

// Err returns nil for OK reports, otherwise ErrEmptyInput or ErrInvalidInput
// wrapped with the reason.
func (r Report) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusEmpty:
		return fmt.Errorf("%s data: %w", r.Kind, ErrEmptyInput)
	default:
		return fmt.Errorf("%s: %w", r.Reason, ErrInvalidInput)
	}
}

// FormatOutput prefixes a rendered result for console display.
func FormatOutput(result string) string {
	return "Output: " + result
}

func okReport(source Identity, at time.Time, agg Aggregate) Report {
	return Report{
		Timestamp: at,
		Aggregate: agg,
		Source:    source,
		summary:   agg.render(),
		Kind:      agg.Kind(),
		Status:    StatusOK,
	}
}

func emptyReport(source Identity, at time.Time, kind DataKind) Report {
	return Report{
		Timestamp: at,
		Source:    source,
		summary:   "data empty",
		Kind:      kind,
		Status:    StatusEmpty,
	}
}

func invalidReport(source Identity, at time.Time, kind DataKind) Report {
	reason := fmt.Sprintf("invalid %s data", kind)
	return Report{
		Timestamp: at,
		Source:    source,
		Reason:    reason,
		summary:   LogSummary{Level: LevelAlert, Message: reason}.render(),
		Kind:      kind,
		Status:    StatusInvalid,
	}
}

// formatFloat renders a float the way a console user expects to read it:
// shortest round-trip digits, always with a fractional part.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func signed(n int64) string {
	if n >= 0 {
		return "+" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
