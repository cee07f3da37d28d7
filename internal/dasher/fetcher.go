package dasher

import (
	"context"
	"sync"
)

// QueueFetcher is a reference PacketFetcher backed by a per-stream FIFO
// queue, grounded on a producer/consumer ring-buffer shape but
// simplified to a plain slice since the scheduler only ever calls
// Fetch from a single goroutine (spec §5:
// "single-threaded cooperative"). An ingest front-end
// (internal/ingest) pushes demuxed packets with Push; CloseStream
// marks a stream exhausted once its upstream source reaches EOF.
type QueueFetcher struct {
	mu     sync.Mutex
	queues map[string][]Packet
	closed map[string]bool
}

// NewQueueFetcher creates an empty QueueFetcher.
func NewQueueFetcher() *QueueFetcher {
	return &QueueFetcher{
		queues: make(map[string][]Packet),
		closed: make(map[string]bool),
	}
}

// Push enqueues pkt for streamID. Safe to call from a producer
// goroutine concurrently with Fetch.
func (q *QueueFetcher) Push(streamID string, pkt Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[streamID] = append(q.queues[streamID], pkt)
}

// CloseStream marks streamID exhausted: once its queue drains, Fetch
// reports FetchEOS instead of FetchNoPacket.
func (q *QueueFetcher) CloseStream(streamID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed[streamID] = true
}

// Fetch implements PacketFetcher. It never blocks: an empty, open
// queue returns FetchNoPacket so the scheduler moves on to the next
// stream (spec §5's suspension points).
func (q *QueueFetcher) Fetch(ctx context.Context, streamID string) (Packet, FetchResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queue := q.queues[streamID]
	if len(queue) == 0 {
		if q.closed[streamID] {
			return Packet{}, FetchEOS, nil
		}
		return Packet{}, FetchNoPacket, nil
	}

	pkt := queue[0]
	q.queues[streamID] = queue[1:]
	return pkt, FetchPacket, nil
}

// Pending reports how many packets are queued for streamID, useful for
// host-loop back-pressure decisions.
func (q *QueueFetcher) Pending(streamID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[streamID])
}
