package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"job-annotation-service/internal/entity"
)

// Recorder counts notifications by kind. *metrics.Collector implements it.
type Recorder interface {
	RecordNotification(kind string)
}

// Dispatcher is the notification sink. Notify never blocks the caller; a
// fixed set of workers pushes queued notifications to the feed.
type Dispatcher struct {
	feed    Feed
	rec     Recorder
	ch      chan entity.Notification
	workers int
	log     *slog.Logger
}

func NewDispatcher(feed Feed, rec Recorder, workers, buffer int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		feed:    feed,
		rec:     rec,
		ch:      make(chan entity.Notification, buffer),
		workers: workers,
		log:     slog.Default().With("component", "notify"),
	}
}

func (d *Dispatcher) Notify(message string, kind entity.NotificationKind) {
	n := entity.NewNotification(message, kind)
	if d.rec != nil {
		d.rec.RecordNotification(string(kind))
	}
	d.log.Info("notification", "kind", kind, "message", message)

	select {
	case d.ch <- n:
	default:
		d.log.Warn("notification dropped, queue full", "kind", kind, "message", message)
	}
}

// Run delivers until ctx ends, then flushes what is still queued.
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.Info("notification dispatcher started", "workers", d.workers)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item := <-d.ch:
					d.push(ctx, n, item)
				}
			}
		}(i + 1)
	}
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case item := <-d.ch:
			d.push(flushCtx, 0, item)
		default:
			d.log.Info("notification dispatcher stopped")
			return
		}
	}
}

func (d *Dispatcher) push(ctx context.Context, worker int, n entity.Notification) {
	if err := d.feed.Push(ctx, n); err != nil {
		d.log.Error("push notification", "worker", worker, "notification_id", n.ID, "error", err)
	}
}

// Feed exposes the feed for readers.
func (d *Dispatcher) Feed() Feed { return d.feed }
