package batchz

import "strings"

// logPrefixes are matched in order, case-sensitively.
var logPrefixes = []struct {
	prefix string
	level  Level
}{
	{"ERROR:", LevelAlert},
	{"WARNING:", LevelWarning},
	{"INFO:", LevelInfo},
}

// classifyLog strips a known level prefix and trims the remainder. Lines
// without a prefix are INFO messages.
func classifyLog(line string) LogSummary {
	for _, p := range logPrefixes {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return LogSummary{Level: p.level, Message: strings.TrimSpace(rest)}
		}
	}
	return LogSummary{Level: LevelInfo, Message: strings.TrimSpace(line)}
}
