package batchz

// summariseNumeric computes count, sum and average. A single number is a
// one-element batch. The average always uses floating point division.
// An integer sum that would overflow int64 continues in floating point.
// The caller has validated the input.
func summariseNumeric(data any) (NumericSummary, bool) {
	var values []any
	if _, ok := toNumber(data); ok {
		values = []any{data}
	} else {
		values, _ = AsBatch(data)
	}
	if len(values) == 0 {
		return NumericSummary{}, false
	}

	var (
		intSum   int64
		floatSum float64
		integral = true
	)
	for _, v := range values {
		n, ok := toNumber(v)
		if !ok {
			panic("non-numeric value in validated batch")
		}
		if n.integral && integral {
			if next, ok := addInt64(intSum, n.i); ok {
				intSum = next
				continue
			}
		}
		if integral {
			floatSum = float64(intSum)
			integral = false
		}
		floatSum += n.float()
	}

	sum := floatSum
	if integral {
		sum = float64(intSum)
	}
	return NumericSummary{
		Count:    len(values),
		Sum:      sum,
		Average:  sum / float64(len(values)),
		Integral: integral,
		whole:    intSum,
		exact:    integral,
	}, true
}

// addInt64 reports false when a+b does not fit in an int64.
func addInt64(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}
