package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/buzzline-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("BUZZLINE_TOKEN"), "JWT to present (empty for anonymous mode)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target, err := dialURL(*addr, *token)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := conn.Write(ctx, websocket.MessageText, []byte(*text)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	// authenticated servers echo the message back to the sender
	var env proto.Envelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		if status := websocket.CloseStatus(err); status == proto.CloseUnauthorized {
			return fmt.Errorf("rejected: %w", err)
		}
		return fmt.Errorf("read: %w", err)
	}

	fmt.Printf("Received: sender=%q timestamp=%s text=%q\n", env.Sender, env.Timestamp, env.Text)
	if env.Text != *text {
		return fmt.Errorf("unexpected echo %q", env.Text)
	}
	return nil
}

func dialURL(addr, token string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse addr: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set(proto.TokenQueryParam, token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
