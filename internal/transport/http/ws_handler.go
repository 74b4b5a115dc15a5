package http

import (
	"context"
	stdhttp "net/http"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/config"
	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/proto"
)

// WSHandler upgrades HTTP connections, admits them into the registry and
// bridges frames between the socket and the peer's queue.
type WSHandler struct {
	registry *core.Registry
	verifier core.Verifier
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, verifier core.Verifier, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{registry: registry, verifier: verifier, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0,
		OriginPatterns:     h.cfg.AllowedOrigins,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	identity, err := h.admit(r)
	if err != nil {
		h.log.Warn().
			Err(err).
			Str("reason", core.RejectionReason(err)).
			Str("remote_addr", r.RemoteAddr).
			Msg("ws admission rejected")
		conn.Close(proto.CloseUnauthorized, proto.CloseReasonUnauthorized)
		return
	}

	peer, err := h.registry.Admit(identity)
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.registry.Evict(peer)

	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// readLoop reports every inbound frame so writeLoop can reset the idle timer.
	activity := make(chan struct{}, 1)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, peer, activity)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, peer, activity)
	}()

	err = <-errCh

	status, reason, unexpected := closeStatus(err)
	if unexpected != nil {
		h.log.Warn().Err(unexpected).Str("conn_id", peer.ID).Msg("ws connection closed with error")
	} else {
		h.log.Debug().Str("conn_id", peer.ID).Int("status", int(status)).Str("reason", reason).Msg("ws connection closing")
	}

	// Close before cancel so the close handshake can still use the reader.
	conn.Close(status, reason)
	cancel()
	<-errCh
}

func (h *WSHandler) admit(r *stdhttp.Request) (core.Identity, error) {
	if h.cfg.Mode == config.ModeAnonymous {
		return core.Identity{}, nil
	}

	token := r.URL.Query().Get(proto.TokenQueryParam)
	if len(token) > 12 {
		h.log.Debug().Str("token_prefix", token[:12]).Msg("ws token received")
	}
	return core.Admit(h.verifier, token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, peer *core.Peer, activity chan<- struct{}) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		select {
		case activity <- struct{}{}:
		default:
		}

		if typ != websocket.MessageText {
			continue
		}
		if !utf8.Valid(data) {
			return errInvalidUTF8
		}
		if !limiter.allow() {
			h.log.Warn().Str("conn_id", peer.ID).Msg("rate limit exceeded, dropping message")
			continue
		}

		if _, err := h.registry.Relay(peer, string(data)); err != nil {
			h.log.Error().Err(err).Str("conn_id", peer.ID).Msg("relay message")
		}
	}
}

// writeLoop drains the peer queue. It also owns the idle timer, so an idle
// connection is closed through the normal close handshake.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, peer *core.Peer, activity <-chan struct{}) error {
	var (
		timer *time.Timer
		idle  <-chan time.Time
	)
	if h.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(h.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case payload := <-peer.Outbound():
			if err := h.write(ctx, conn, payload); err != nil {
				h.log.Debug().Err(err).Str("conn_id", peer.ID).Msg("write ws envelope")
				return err
			}
		case <-activity:
			if timer != nil {
				timer.Reset(h.cfg.IdleTimeout)
			}
		case <-idle:
			return errIdleTimeout
		case <-peer.Done():
			return peer.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	if h.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.WriteTimeout)
		defer cancel()
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
