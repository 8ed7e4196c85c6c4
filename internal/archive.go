package internal

import (
	"context"
	"log"
	"time"
)

// Archiver is the slice of the external persistence collaborator the broker
// emits into. The broker never waits on it: delivered chat flows through a
// buffered queue and is dropped, not blocked on, when the queue is full.
type Archiver interface {
	AppendChat(ctx context.Context, roomCode, sender, body string, ts int64) error
}

const archiveQueueSize = 1024

type chatArchiver struct {
	sink    Archiver
	queue   chan ChatMessage
	metrics *Metrics
}

// newChatArchiver returns nil when no sink is configured; a nil archiver is
// safe to enqueue into.
func newChatArchiver(sink Archiver, metrics *Metrics) *chatArchiver {
	if sink == nil {
		return nil
	}
	return &chatArchiver{
		sink:    sink,
		queue:   make(chan ChatMessage, archiveQueueSize),
		metrics: metrics,
	}
}

func (c *chatArchiver) enqueue(msg ChatMessage) {
	if c == nil {
		return
	}
	select {
	case c.queue <- msg:
	default:
		c.metrics.IncArchiveDropped()
	}
}

// run drains the queue until ctx is done. Persistence failures are logged and
// skipped; the live relay already happened.
func (c *chatArchiver) run(ctx context.Context) {
	if c == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.sink.AppendChat(writeCtx, msg.Room, msg.Sender, msg.Text, msg.Ts)
			cancel()
			if err != nil {
				log.Printf("chat archive for %s: %v", msg.Room, err)
				continue
			}
			c.metrics.IncChatArchived()
		}
	}
}
