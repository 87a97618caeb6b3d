package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-robotsim/pkg/debug"
	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

// WatchHandlers receive messages from the status stream. Nil fields are skipped.
type WatchHandlers struct {
	OnStatus func(robot.StatusSnapshot)
	OnEvent  func(robot.Event)

	// OnError receives errors the server reports about this stream.
	OnError func(protocol.ErrorData)

	// OnPong receives the answer to the ping sent when the stream opens.
	OnPong func(protocol.PongData)
}

// WatchStatus streams status and events until ctx is done or the
// connection drops. It returns nil only when ctx ends the stream.
func (c *Client) WatchStatus(ctx context.Context, h WatchHandlers) error {
	target, err := c.wsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("status stream dial failed: %w", err)
	}
	defer conn.Close()

	if ping, err := protocol.NewPingMessage(uuid.NewString()); err == nil {
		if data, err := ping.Bytes(); err == nil {
			debug.WireLog("⇒ %s\n", data)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("status stream ping failed: %w", err)
			}
		}
	}

	// Unblock ReadMessage on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("status stream closed: %w", err)
		}
		debug.WireLog("⇐ %s\n", data)

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		switch msg.Type {
		case protocol.TypeStatus:
			if h.OnStatus == nil {
				continue
			}
			if snap, err := msg.GetStatus(); err == nil {
				h.OnStatus(*snap)
			}
		case protocol.TypeEvent:
			if h.OnEvent == nil {
				continue
			}
			if evt, err := msg.GetEvent(); err == nil {
				h.OnEvent(*evt)
			}
		case protocol.TypeError:
			if h.OnError == nil {
				continue
			}
			if e, err := msg.GetErrorData(); err == nil {
				h.OnError(*e)
			}
		case protocol.TypePong:
			if h.OnPong == nil {
				continue
			}
			if p, err := msg.GetPongData(); err == nil {
				h.OnPong(*p)
			}
		}
	}
}
