package batchz

import "strings"

// analyseEvents counts events mentioning "error". Matching is a
// case-sensitive substring match.
func analyseEvents(batch []any) EventSummary {
	errs := 0
	for _, item := range batch {
		if event, _ := item.(string); strings.Contains(event, "error") {
			errs++
		}
	}
	return EventSummary{Events: len(batch), Errors: errs}
}

func eventPredicate(c Criterion) (Predicate, bool) {
	switch c {
	case CriterionErrors:
		return contains("error"), true
	case CriterionLogin:
		return contains("login"), true
	case CriterionLogout:
		return contains("logout"), true
	}
	return nil, false
}

func contains(substr string) Predicate {
	return func(item any) bool {
		event, ok := item.(string)
		return ok && strings.Contains(event, substr)
	}
}
