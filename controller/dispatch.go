package controller

import (
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	// sinkQueueSize is the number of displays buffered per sink.
	sinkQueueSize = 64
	// sinkDrainTimeout bounds how long Close waits for sinks to catch up.
	sinkDrainTimeout = 2 * time.Second
)

// sinkWorker delivers displays to one sink from its own goroutine.
type sinkWorker struct {
	sink    Sink
	queue   chan Display
	dropped atomic.Uint64
	done    chan struct{}
}

func newSinkWorker(s Sink) *sinkWorker {
	w := &sinkWorker{
		sink:  s,
		queue: make(chan Display, sinkQueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *sinkWorker) run() {
	defer close(w.done)
	for d := range w.queue {
		if err := w.sink.Publish(d); err != nil {
			slog.Warn("controller: sink publish failed", "sink", w.sink.Name(), "error", err)
		}
	}
}

// offer queues d without blocking. A full queue loses its oldest display, so
// the newest state always reaches the sink. It requires a single producer,
// which the controller guarantees by calling it under c.mu.
func (w *sinkWorker) offer(d Display) {
	for {
		select {
		case w.queue <- d:
			return
		default:
		}
		select {
		case <-w.queue:
			if w.dropped.Add(1) == 1 {
				slog.Warn("controller: sink falling behind, dropping displays", "sink", w.sink.Name())
			}
		default:
		}
	}
}
