// Package activity records note_view and attachment_open facts without
// ever making the caller wait for, or fail because of, the write.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

// DefaultWriteTimeout bounds a single log write.
const DefaultWriteTimeout = 5 * time.Second

// Writer persists one activity entry.
type Writer interface {
	Insert(ctx context.Context, e *models.ActivityLogEntry) error
}

// Dispatcher runs log writes in the background. Failed writes are logged
// and dropped, never retried.
type Dispatcher struct {
	writer  Writer
	logger  logging.Logger
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(writer Writer, logger logging.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Dispatcher{writer: writer, logger: logger, timeout: timeout}
}

// Dispatch schedules the write and returns immediately. The write is
// detached from ctx cancellation but keeps its values (trace, request id).
// Entries dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, e models.ActivityLogEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn(ctx, "activity dispatcher closed, entry dropped", "action", e.Action, "note_id", e.NoteID)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		defer func() {
			if p := recover(); p != nil {
				d.logger.Warn(wctx, "activity write panicked", "action", e.Action, "note_id", e.NoteID, "panic", p)
			}
		}()

		if err := d.writer.Insert(wctx, &e); err != nil {
			d.logger.Warn(wctx, "failed to log activity", "action", e.Action, "note_id", e.NoteID, "error", err)
		}
	}()
}

// Close stops accepting entries and waits for in-flight writes.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
