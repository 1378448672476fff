package batchz

// Criterion names a filter predicate. Which criteria a stream understands
// depends on its kind; an unknown criterion selects the whole batch.
type Criterion string

// Criteria understood by the built-in streams.
const (
	// Sensor: temp > 30.
	CriterionHigh      Criterion = "high"
	CriterionHighAlert Criterion = "high-alert"
	// Sensor: temp > 15. Transaction: buy or sell > 100.
	CriterionLarge Criterion = "large"
	// Transaction: buy or sell > 200. CriterionHigh is accepted as well.
	CriterionHeight Criterion = "height"
	// Event substring matches.
	CriterionErrors Criterion = "errors"
	CriterionLogin  Criterion = "login"
	CriterionLogout Criterion = "logout"
)

// Predicate reports whether one batch item is selected.
type Predicate func(any) bool

// PredicateFor returns the predicate kind applies for c, or false when the
// criterion is not understood by that kind.
func PredicateFor(kind StreamKind, c Criterion) (Predicate, bool) {
	switch kind {
	case StreamSensor:
		return sensorPredicate(c)
	case StreamTransaction:
		return transactionPredicate(c)
	case StreamEvent:
		return eventPredicate(c)
	}
	return nil, false
}
