// Package progress carries human-readable status updates from the loop
// driver to whatever front end is attached (terminal banner, web hub).
// Updates are observational only; they are not part of the driver's
// correctness contract.
package progress

import "strings"

// Update describes one progress message emitted during a run.
type Update struct {
	// Message is the content to deliver.
	Message string
	// AddNewLine appends a newline to Message if one is not already present.
	AddNewLine bool
	// Ephemeral marks the update as transient (should not persist once superseded).
	Ephemeral bool
}

// Callback receives progress updates.
type Callback func(Update) error

// Normalize ensures the update reflects requested formatting.
func Normalize(update Update) Update {
	if update.AddNewLine && update.Message != "" && !strings.HasSuffix(update.Message, "\n") {
		update.Message += "\n"
	}
	return update
}

// Dispatch normalizes and sends the update if the callback is set.
func Dispatch(cb Callback, update Update) error {
	if cb == nil {
		return nil
	}
	return cb(Normalize(update))
}

// Multi fans one update out to several callbacks, returning the first error.
func Multi(cbs ...Callback) Callback {
	return func(u Update) error {
		var firstErr error
		for _, cb := range cbs {
			if cb == nil {
				continue
			}
			if err := cb(u); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
