package safe

import (
	"log/slog"
	"runtime/debug"
)

// Run executes fn and turns any panic into an error log with the stack.
func Run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", "safe.Run"),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn()
}

// RunWithLog is Run with an explicit component label for the log entry.
func RunWithLog(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn()
}
