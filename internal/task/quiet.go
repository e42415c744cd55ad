// Package task is the shared execution path for scheduled and
// webhook-triggered work: quiet-hour evaluation, dependency
// serialization, and the subprocess run itself.
package task

// QuietWindow is an hour-of-day window [Start, End) during which task
// fires are skipped. Start > End wraps across midnight; Start == End
// means the window is empty and nothing is ever quiet.
type QuietWindow struct {
	Start int
	End   int
}

// Contains reports whether the local hour falls inside the window.
func (w QuietWindow) Contains(hour int) bool {
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return hour >= w.Start && hour < w.End
	}
	return hour >= w.Start || hour < w.End
}
