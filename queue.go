package playground

import "sync"

// updateQueue is an unbounded FIFO. push never blocks so it can be called
// with the session lock held; pop blocks until an update arrives or the
// queue is closed and drained.
type updateQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Update
	closed bool
}

func newUpdateQueue() *updateQueue {
	q := &updateQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *updateQueue) push(u Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, u)
	q.cond.Signal()
	return true
}

func (q *updateQueue) pop() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Update{}, false
	}
	u := q.items[0]
	q.items[0] = Update{}
	q.items = q.items[1:]
	return u, true
}

func (q *updateQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
