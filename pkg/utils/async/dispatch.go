package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Runner runs background jobs and lets the owner wait for them on shutdown.
// The zero value is ready to use.
type Runner struct {
	wg sync.WaitGroup
}

// Dispatch executes handler in a new goroutine. The handler gets a context
// that keeps the logger of ctx but is not cancelled with it, so a job
// outlives the request that started it. Panics and errors are logged.
func (r *Runner) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"recover", rec,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("error in async handler", "error", err)
		}
	}()
}

// Wait blocks until every dispatched job has returned or ctx is done
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "background jobs still running")
	}
}

func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
