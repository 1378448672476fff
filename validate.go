package batchz

// Validator decides whether an item or batch conforms to the shape a
// component expects. Validators are pure predicates.
type Validator func(any) bool

// ValidateNumeric accepts a single number or a batch in which every element
// is a number. Integers and floats are both numbers; booleans are not.
// An absent value (nil) is not a batch.
func ValidateNumeric(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := toNumber(v); ok {
		return true
	}
	batch, ok := AsBatch(v)
	if !ok {
		return false
	}
	for _, item := range batch {
		if _, ok := toNumber(item); !ok {
			return false
		}
	}
	return true
}

// ValidateText accepts any string, including the empty string.
func ValidateText(v any) bool {
	_, ok := v.(string)
	return ok
}

// ValidateLog accepts any string, including the empty string.
func ValidateLog(v any) bool {
	_, ok := v.(string)
	return ok
}

// ValidateSensor accepts a batch of records.
func ValidateSensor(v any) bool {
	return validateRecords(v)
}

// ValidateTransaction accepts a batch of records.
func ValidateTransaction(v any) bool {
	return validateRecords(v)
}

// ValidateEvent accepts a batch of strings.
func ValidateEvent(v any) bool {
	batch, ok := AsBatch(v)
	if !ok {
		return false
	}
	for _, item := range batch {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// ValidateRecord accepts a single record.
func ValidateRecord(v any) bool {
	_, ok := AsRecord(v)
	return ok
}

func validateRecords(v any) bool {
	batch, ok := AsBatch(v)
	if !ok {
		return false
	}
	for _, item := range batch {
		if _, ok := AsRecord(item); !ok {
			return false
		}
	}
	return true
}

// ValidatorFor returns the validator for a data kind, or nil for KindUnknown.
func ValidatorFor(kind DataKind) Validator {
	switch kind {
	case KindNumeric:
		return ValidateNumeric
	case KindText:
		return ValidateText
	case KindLog:
		return ValidateLog
	case KindSensor:
		return ValidateSensor
	case KindTransaction:
		return ValidateTransaction
	case KindEvent:
		return ValidateEvent
	case KindRecord:
		return ValidateRecord
	default:
		return nil
	}
}
