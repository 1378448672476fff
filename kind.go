package batchz

// DataKind tags the shape of data a component expects.
type DataKind int

// Data kinds.
const (
	KindUnknown DataKind = iota
	KindNumeric
	KindText
	KindLog
	KindSensor
	KindTransaction
	KindEvent
	KindRecord
)

// String returns the lower-case kind name used in reports.
func (k DataKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindLog:
		return "log"
	case KindSensor:
		return "sensor"
	case KindTransaction:
		return "transaction"
	case KindEvent:
		return "event"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// StreamKind selects the behaviour of a Stream.
type StreamKind int

// Stream kinds.
const (
	StreamSensor StreamKind = iota + 1
	StreamTransaction
	StreamEvent
)

// ParseStreamKind maps "sensor", "transaction" and "event" to a StreamKind.
func ParseStreamKind(s string) (StreamKind, bool) {
	switch s {
	case "sensor":
		return StreamSensor, true
	case "transaction":
		return StreamTransaction, true
	case "event":
		return StreamEvent, true
	}
	return 0, false
}

// DataKind returns the kind of item the stream consumes.
func (k StreamKind) DataKind() DataKind {
	switch k {
	case StreamSensor:
		return KindSensor
	case StreamTransaction:
		return KindTransaction
	case StreamEvent:
		return KindEvent
	default:
		return KindUnknown
	}
}

// String returns the stream kind name.
func (k StreamKind) String() string {
	return k.DataKind().String()
}

// TypeLabel describes the domain of the stream.
func (k StreamKind) TypeLabel() string {
	switch k {
	case StreamSensor:
		return "Environmental Data"
	case StreamTransaction:
		return "Financial Data"
	case StreamEvent:
		return "System Events"
	default:
		return ""
	}
}

// ProcessLabel is the label used in dispatcher summaries.
func (k StreamKind) ProcessLabel() string {
	switch k {
	case StreamSensor:
		return "Sensor data"
	case StreamTransaction:
		return "Transaction data"
	case StreamEvent:
		return "Event data"
	default:
		return ""
	}
}

// Unit names one item of the stream.
func (k StreamKind) Unit() string {
	switch k {
	case StreamSensor:
		return "readings"
	case StreamTransaction:
		return "operations"
	case StreamEvent:
		return "events"
	default:
		return "items"
	}
}
