package audithook

import (
	"log/slog"
	"slices"
)

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits the trail to the listed job actions, for example
// only failures and dead letters:
//
//	audithook.New(recorder,
//	    audithook.WithActions(audithook.ActionJobFailed, audithook.ActionJobDeadLettered),
//	)
//
// Names outside [AllActions] are dropped. Without this option every job
// action is recorded.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		known := AllActions()
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			if slices.Contains(known, a) {
				e.enabled[a] = true
			}
		}
	}
}

// WithLogger sets where recorder failures are reported. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
