package masterserver

import (
	"context"
	"sync"

	"github.com/SFTtech/openage-lobbyserver/internal/protocol"
)

// Inbox is the unbounded FIFO mailbox a session's processor consumes.
// Push never blocks, so the registry may enqueue while holding its lock;
// broadcasters enqueue here instead of writing to peer sockets directly.
type Inbox struct {
	mu     sync.Mutex
	queue  []protocol.Message
	wakeup chan struct{}
}

// NewInbox creates an empty mailbox.
func NewInbox() *Inbox {
	return &Inbox{wakeup: make(chan struct{}, 1)}
}

// Push appends a message. Never blocks.
func (in *Inbox) Push(m protocol.Message) {
	in.mu.Lock()
	in.queue = append(in.queue, m)
	in.mu.Unlock()

	select {
	case in.wakeup <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest message, blocking until one is
// available or ctx is cancelled.
func (in *Inbox) Pop(ctx context.Context) (protocol.Message, error) {
	for {
		in.mu.Lock()
		if len(in.queue) > 0 {
			m := in.queue[0]
			in.queue = in.queue[1:]
			in.mu.Unlock()
			return m, nil
		}
		in.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-in.wakeup:
		}
	}
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}
