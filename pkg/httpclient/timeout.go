package httpclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout bounds a call when the caller passes a non-positive duration.
const DefaultTimeout = 2000 * time.Millisecond

// ErrTimeout reports that a request was abandoned because its timeout elapsed first.
var ErrTimeout = errors.New("request timed out")

// guard pairs a timer with the cancellation signal scoping one request.
type guard struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newGuard(parent context.Context, timeout time.Duration) *guard {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeoutCause(parent, timeout, ErrTimeout)
	return &guard{ctx: ctx, cancel: cancel}
}

// release stops the timer. Safe to call more than once.
func (g *guard) release() {
	g.once.Do(g.cancel)
}

// expired reports whether the guard's own timer fired, as opposed to the parent being cancelled.
func (g *guard) expired() bool {
	return errors.Is(context.Cause(g.ctx), ErrTimeout)
}

type outcome struct {
	resp Response
	err  error
}

// DoWithTimeout performs req and treats it as failed when no response arrives within
// timeout. The response status is not inspected. The timer is released on every exit
// path, and the in-flight request is cancelled when it loses the race.
func DoWithTimeout(ctx context.Context, client Client, req Request, timeout time.Duration) (Response, error) {
	if client == nil {
		return nil, errors.New("http client is nil")
	}
	return doGuarded(newGuard(ctx, timeout), client, req)
}

func doGuarded(g *guard, client Client, req Request) (Response, error) {
	defer g.release()

	// buffered so the request goroutine never blocks after losing the race
	done := make(chan outcome, 1)
	go func() {
		resp, err := client.Do(g.ctx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, g.classify(req, out.err)
		}
		return out.resp, nil
	case <-g.ctx.Done():
		return nil, g.classify(req, context.Cause(g.ctx))
	}
}

// classify maps errors caused by the guard's own deadline onto ErrTimeout and leaves
// every other transport failure untouched.
func (g *guard) classify(req Request, err error) error {
	if g.expired() && (errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)) {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, ErrTimeout)
	}
	return err
}
