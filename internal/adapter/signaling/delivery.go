package signaling

import (
	"sync"
	"sync/atomic"

	"callsignal/internal/domain"
)

// deliveryQueue runs listener callbacks on one goroutine, in push order.
// The queue is unbounded so a slow listener never stalls the connection loop.
type deliveryQueue struct {
	listener domain.SignalListener
	onPanic  func(recovered any)

	mu      sync.Mutex
	cond    *sync.Cond
	items   []Delivery
	closing bool

	// stopped is checked before every callback; once set nothing else runs.
	stopped atomic.Bool
	done    chan struct{}
}

func newDeliveryQueue(listener domain.SignalListener, onPanic func(any)) *deliveryQueue {
	q := &deliveryQueue{
		listener: listener,
		onPanic:  onPanic,
		done:     make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *deliveryQueue) push(d Delivery) {
	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, d)
	q.mu.Unlock()
	q.cond.Signal()
}

// finish lets queued callbacks run, then ends the goroutine.
func (q *deliveryQueue) finish() {
	q.mu.Lock()
	q.closing = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// stop drops queued callbacks and ends the goroutine. A callback already
// running is not interrupted.
func (q *deliveryQueue) stop() {
	q.stopped.Store(true)
	q.mu.Lock()
	q.items = nil
	q.closing = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *deliveryQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closing {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		d := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		if q.stopped.Load() {
			return
		}
		q.invoke(d)
	}
}

func (q *deliveryQueue) invoke(d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			q.onPanic(r)
		}
	}()
	d(q.listener)
}
