package eventloop

import "sync"

// Queue is an unbounded FIFO that doubles its capacity when it reaches
// 70% full, so producers never block.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool

	// Stats
	totalPushed int64
	totalPopped int64
	resizeCount int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. Returns false if the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalPushed++

	q.cond.Signal()
	return true
}

// Pop removes the oldest item, blocking until one is available.
// Returns false once the queue is closed and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 {
		var zero T
		return zero, false
	}

	return q.take(), true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Close rejects further pushes. Pending items can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:       q.count,
		Capacity:    q.capacity,
		TotalPushed: q.totalPushed,
		TotalPopped: q.totalPopped,
		ResizeCount: q.resizeCount,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count       int
	Capacity    int
	TotalPushed int64
	TotalPopped int64
	ResizeCount int
}

// take pops the head item. Must be called with lock held and count > 0.
func (q *Queue[T]) take() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.totalPopped++
	return item
}

// grow doubles the capacity. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
