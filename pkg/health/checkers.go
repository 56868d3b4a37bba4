package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks p.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// GoroutineCountCheck fails when more than threshold goroutines run.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// SizeCheck fails when size reports more than threshold, e.g. the number of
// cart stores held in memory.
func SizeCheck(what string, size func() int, threshold int) CheckFunc {
	return func(context.Context) error {
		if n := size(); n > threshold {
			return errors.Errorf("%s %d exceeds threshold %d", what, n, threshold)
		}
		return nil
	}
}
