package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// OverflowPolicy decides what happens when a peer's outbound queue is full.
type OverflowPolicy string

const (
	// OverflowDropOldest discards the oldest queued payload to make room.
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowDisconnect closes the peer with ErrSlowConsumer.
	OverflowDisconnect OverflowPolicy = "disconnect"
)

// Peer is an admitted connection as seen by the registry.
// The transport drains Outbound and stops when Done is closed.
type Peer struct {
	ID          string
	Identity    Identity
	ConnectedAt time.Time

	policy OverflowPolicy
	queue  chan []byte
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	cause   error
	dropped atomic.Uint64
}

func newPeer(id string, identity Identity, queueSize int, policy OverflowPolicy, now time.Time) *Peer {
	return &Peer{
		ID:          id,
		Identity:    identity,
		ConnectedAt: now,
		policy:      policy,
		queue:       make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

// Outbound yields payloads queued for this peer in broadcast order.
func (p *Peer) Outbound() <-chan []byte {
	return p.queue
}

// Done is closed once the peer is evicted or disconnected for overflow.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Err returns why the peer was closed, or nil while it is live.
func (p *Peer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

// Closed reports whether the peer stopped accepting payloads.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Dropped counts payloads discarded by the drop_oldest policy.
func (p *Peer) Dropped() uint64 {
	return p.dropped.Load()
}

// enqueue never blocks. Under drop_oldest it evicts queued payloads until the
// new one fits; under disconnect it closes the peer instead.
func (p *Peer) enqueue(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPeerClosed
	}

	for {
		select {
		case p.queue <- payload:
			return nil
		default:
		}

		if p.policy == OverflowDisconnect {
			p.closeLocked(ErrSlowConsumer)
			return ErrSlowConsumer
		}

		select {
		case <-p.queue:
			p.dropped.Add(1)
		default:
		}
	}
}

func (p *Peer) close(cause error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked(cause)
}

func (p *Peer) closeLocked(cause error) bool {
	if p.closed {
		return false
	}
	p.closed = true
	p.cause = cause
	close(p.done)
	return true
}
