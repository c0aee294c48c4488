package signaling

import "sync"

// Mailbox is a single-slot outbound buffer. A Put that lands before the
// previous value was taken replaces it, so only the latest message is sent.
type Mailbox struct {
	mu      sync.Mutex
	pending []byte
	full    bool
	ready   chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores msg and wakes the consumer. It reports whether an untaken
// message was overwritten. Put never blocks on the consumer.
func (m *Mailbox) Put(msg []byte) (replaced bool) {
	m.mu.Lock()
	replaced = m.full
	m.pending = msg
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Ready fires after a Put. A signal may be stale; Take tells.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Take empties the slot.
func (m *Mailbox) Take() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return nil, false
	}
	msg := m.pending
	m.pending = nil
	m.full = false
	return msg, true
}

// Discard drops any pending message and clears the ready signal.
func (m *Mailbox) Discard() {
	m.mu.Lock()
	m.pending = nil
	m.full = false
	m.mu.Unlock()

	select {
	case <-m.ready:
	default:
	}
}
