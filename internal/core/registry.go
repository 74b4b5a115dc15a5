package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects the fan-out target set.
type Mode int

const (
	// ModeIncludeSender delivers to every member, the origin included.
	ModeIncludeSender Mode = iota
	// ModeExcludeSender delivers to every member except the origin.
	ModeExcludeSender
)

func (m Mode) String() string {
	switch m {
	case ModeIncludeSender:
		return "include_sender"
	case ModeExcludeSender:
		return "exclude_sender"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultQueueSize is used when Options.QueueSize is not positive.
const DefaultQueueSize = 64

// Options configures a Registry.
type Options struct {
	Mode      Mode
	QueueSize int
	Overflow  OverflowPolicy
	// Now stamps relayed messages. Defaults to time.Now.
	Now func() time.Time
}

// Registry tracks admitted, live peers and fans messages out to them.
// A peer is present from Admit until the first Evict, and never twice.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	closed bool

	mode      Mode
	queueSize int
	overflow  OverflowPolicy
	now       func() time.Time
	log       *zerolog.Logger
}

// NewRegistry builds an empty registry. A nil logger disables logging.
func NewRegistry(opts Options, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowDropOldest
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		peers:     make(map[string]*Peer),
		mode:      opts.Mode,
		queueSize: opts.QueueSize,
		overflow:  opts.Overflow,
		now:       opts.Now,
		log:       logger,
	}
}

// Mode returns the fan-out mode used by Relay.
func (r *Registry) Mode() Mode {
	return r.mode
}

// Admit registers a new peer bound to identity.
func (r *Registry) Admit(identity Identity) (*Peer, error) {
	peer := newPeer(uuid.NewString(), identity, r.queueSize, r.overflow, r.now())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.peers[peer.ID] = peer
	total := len(r.peers)
	r.mu.Unlock()

	r.log.Info().
		Str("conn_id", peer.ID).
		Str("name", identity.Name).
		Str("email", identity.Email).
		Int("peers", total).
		Msg("peer admitted")
	return peer, nil
}

// Evict removes peer and closes its queue. It reports whether this call did
// the removal; evicting an absent peer is a no-op.
func (r *Registry) Evict(peer *Peer) bool {
	if peer == nil {
		return false
	}

	r.mu.Lock()
	current, ok := r.peers[peer.ID]
	if !ok || current != peer {
		r.mu.Unlock()
		return false
	}
	delete(r.peers, peer.ID)
	total := len(r.peers)
	r.mu.Unlock()

	peer.close(ErrPeerClosed)

	r.log.Info().
		Str("conn_id", peer.ID).
		Str("name", peer.Identity.Name).
		Int("peers", total).
		Msg("peer evicted")
	return true
}

// Len returns the number of live peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Contains reports whether peer is currently registered.
func (r *Registry) Contains(peer *Peer) bool {
	if peer == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peers[peer.ID] == peer
}

// Peers returns a snapshot of the live peers in no particular order.
func (r *Registry) Peers() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	return peers
}

// Relay stamps text with the origin's identity and the current time and
// broadcasts it using the registry mode. It returns the number of peers the
// envelope was queued for.
func (r *Registry) Relay(origin *Peer, text string) (int, error) {
	msg := Message{
		Text:      text,
		Sender:    origin.Identity.Name,
		CreatedAt: r.now(),
	}
	payload, err := msg.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode envelope: %w", err)
	}

	r.log.Debug().
		Str("conn_id", origin.ID).
		Str("name", origin.Identity.Name).
		Int("bytes", len(text)).
		Msg("relaying message")

	return r.Broadcast(payload, origin, r.mode), nil
}

// Broadcast queues payload for every member selected by mode. Targets come
// from a snapshot taken under the read lock; admissions and evictions racing
// with the call only affect whether a peer is in that snapshot. A target that
// cannot accept the payload is skipped and left to its own eviction path.
func (r *Registry) Broadcast(payload []byte, origin *Peer, mode Mode) int {
	targets := r.Peers()

	delivered := 0
	for _, target := range targets {
		if mode == ModeExcludeSender && target == origin {
			continue
		}
		if err := target.enqueue(payload); err != nil {
			r.log.Debug().Err(err).Str("conn_id", target.ID).Msg("skipping peer during broadcast")
			continue
		}
		delivered++
	}

	r.log.Debug().
		Int("targets", len(targets)).
		Int("delivered", delivered).
		Str("mode", mode.String()).
		Msg("broadcast complete")
	return delivered
}

// CloseAll evicts every peer with ErrRegistryClosed and rejects further
// admissions. It returns the number of peers closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	r.closed = true
	peers := make([]*Peer, 0, len(r.peers))
	for id, p := range r.peers {
		peers = append(peers, p)
		delete(r.peers, id)
	}
	r.mu.Unlock()

	for _, p := range peers {
		p.close(ErrRegistryClosed)
	}

	r.log.Info().Int("peers", len(peers)).Msg("registry closed")
	return len(peers)
}
