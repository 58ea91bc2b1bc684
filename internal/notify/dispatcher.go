package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// Dispatcher delivers announcements in the background. Failures are logged
// and never retried.
type Dispatcher struct {
	Notifier Notifier
	Timeout  time.Duration

	wg sync.WaitGroup
}

// NewDispatcher returns a Dispatcher for n.
func NewDispatcher(n Notifier, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{Notifier: n, Timeout: timeout}
}

// Dispatch starts delivering b and returns immediately. Delivery outlives the
// request context but not the timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, b model.Borrowing) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		if err := d.Notifier.Notify(ctx, b); err != nil {
			slog.Error("failed to send borrowing notification", "borrowing", b.ID, "error", err)
			return
		}
		slog.Info("borrowing notification sent", "borrowing", b.ID)
	}()
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
