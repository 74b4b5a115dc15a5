package http

import (
	"context"
	"errors"
	"io"

	"github.com/coder/websocket"

	"github.com/vovakirdan/buzzline-server/internal/core"
)

// maxCloseReason keeps close reasons within the 123 bytes a control frame allows.
const maxCloseReason = 120

var (
	errIdleTimeout = errors.New("idle timeout")
	errInvalidUTF8 = errors.New("text frame is not valid utf-8")
)

// closeStatus maps the error that ended a connection to the close frame we
// send. The returned error is non-nil only for unexpected failures worth logging.
func closeStatus(err error) (websocket.StatusCode, string, error) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF), errors.Is(err, core.ErrPeerClosed):
		return websocket.StatusNormalClosure, "closing", nil
	case errors.Is(err, core.ErrSlowConsumer):
		return websocket.StatusPolicyViolation, "slow consumer", nil
	case errors.Is(err, core.ErrRegistryClosed):
		return websocket.StatusGoingAway, "server shutting down", nil
	case errors.Is(err, errIdleTimeout):
		return websocket.StatusPolicyViolation, "idle timeout", nil
	case errors.Is(err, errInvalidUTF8):
		return websocket.StatusInvalidFramePayloadData, "invalid utf-8", nil
	}

	// the peer sent a close frame; answer with a normal closure
	if websocket.CloseStatus(err) != -1 {
		return websocket.StatusNormalClosure, "closing", nil
	}

	reason := err.Error()
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	return websocket.StatusInternalError, reason, err
}
