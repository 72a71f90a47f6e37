package client

// defaultQueueCapacity bounds the offline buffer. When the buffer is
// full the oldest entry is dropped to admit the newest.
const defaultQueueCapacity = 100

// sendQueue is a fixed-capacity FIFO ring of encoded payloads awaiting
// a live transport. Not safe for concurrent use; callers hold the
// client mutex.
type sendQueue struct {
	buf      [][]byte
	head     int
	size     int
	capacity int
	dropped  int
}

func newSendQueue(capacity int) *sendQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &sendQueue{
		buf:      make([][]byte, capacity),
		capacity: capacity,
	}
}

// push appends a payload, evicting the oldest entry when full.
func (q *sendQueue) push(payload []byte) {
	if q.size == q.capacity {
		q.head = (q.head + 1) % q.capacity
		q.size--
		q.dropped++
	}
	q.buf[(q.head+q.size)%q.capacity] = payload
	q.size++
}

// drain removes and returns all queued payloads in arrival order.
func (q *sendQueue) drain() [][]byte {
	out := make([][]byte, 0, q.size)
	for q.size > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = nil
		q.head = (q.head + 1) % q.capacity
		q.size--
	}
	q.head = 0
	return out
}

func (q *sendQueue) len() int { return q.size }

// droppedCount reports how many payloads were evicted since creation.
func (q *sendQueue) droppedCount() int { return q.dropped }
