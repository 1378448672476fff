package batchz

// Accepted sensor temperature range, inclusive, in °C.
const (
	SensorMinTemp = 0.0
	SensorMaxTemp = 30.0
)

const sensorTempField = "temp"

// analyseSensor averages the temp field across the batch. Readings outside
// the accepted range turn the summary into an alert and the average is not
// reported.
func analyseSensor(batch []any) SensorSummary {
	summary := SensorSummary{Readings: len(batch)}
	var total float64
	for _, item := range batch {
		reading, _ := AsRecord(item)
		temp := reading.Float(sensorTempField)
		if temp > SensorMaxTemp || temp < SensorMinTemp {
			summary.OutOfRange++
		}
		total += temp
	}
	if summary.OutOfRange > 0 {
		summary.Alert = true
		return summary
	}
	if len(batch) > 0 {
		summary.AverageTemp = total / float64(len(batch))
	}
	return summary
}

func sensorPredicate(c Criterion) (Predicate, bool) {
	switch c {
	case CriterionHigh, CriterionHighAlert:
		return tempAbove(30), true
	case CriterionLarge:
		return tempAbove(15), true
	}
	return nil, false
}

func tempAbove(limit float64) Predicate {
	return func(item any) bool {
		reading, ok := AsRecord(item)
		return ok && reading.Float(sensorTempField) > limit
	}
}
