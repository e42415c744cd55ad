package chat

import "strings"

// Bare-word abort triggers, English and German. Matching is exact
// against single words; sentences never trigger an abort.
var abortWords = map[string]bool{
	"stop":      true,
	"abort":     true,
	"cancel":    true,
	"halt":      true,
	"wait":      true,
	"quit":      true,
	"exit":      true,
	"interrupt": true,
	"stopp":     true,
	"warte":     true,
	"abbruch":   true,
	"abbrechen": true,
}

// IsAbortTrigger reports whether text is a single bare-word abort
// trigger.
func IsAbortTrigger(text string) bool {
	stripped := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(stripped, " ") {
		return false
	}
	return abortWords[stripped]
}

// IsAbortMessage reports whether text is the /stop command (exact, no
// arguments) or a bare-word abort trigger.
func IsAbortMessage(text string) bool {
	stripped := strings.TrimSpace(text)
	if strings.EqualFold(stripped, "/stop") {
		return true
	}
	return IsAbortTrigger(stripped)
}
