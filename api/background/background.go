package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs deferred work off the request path. Tasks are not awaited
// by the caller; Shutdown waits for all of them to drain.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Add schedules fn on its own goroutine, recovering and logging panics so a
// bad task cannot take the process down.
func (b *Background) Add(fn func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				trace := debug.Stack()
				b.log.Errorf("background task panic [%v] TRACE[%s]", rec, string(trace))
			}
		}()

		if err := fn(); err != nil {
			b.log.Errorf("background task: %v", err)
		}
	}()
}

// Shutdown blocks until every scheduled task has finished or the context
// expires, whichever comes first.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks did not drain: %w", ctx.Err())
	}
}
