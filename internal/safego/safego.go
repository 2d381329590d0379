// Package safego starts background goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn on a new goroutine. A panic inside fn is recovered and logged
// with name so one failing notification or shipper cannot take the process down.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "task", name, "panic", r)
			}
		}()
		fn()
	}()
}
