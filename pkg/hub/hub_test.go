package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startHub serves h over a test websocket endpoint. onJoin runs for every
// new client before its pumps start.
func startHub(t *testing.T, h *Hub, onJoin func(*Client)) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client, ok := NewClient(h, conn)
		if !ok {
			conn.Close()
			return
		}
		if onJoin != nil {
			onJoin(client)
		}
		client.Run()
	}))
	t.Cleanup(func() {
		cancel()
		<-h.Done()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount: got %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.TextMessage {
		t.Errorf("message type: got %d, want text", typ)
	}
	return string(data)
}

func TestHub_Broadcast(t *testing.T) {
	h := New("test", quietLogger())
	url := startHub(t, h, nil)

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, h, 2)

	if err := h.BroadcastJSON(map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		if got := readText(t, conn); got != `{"hello":"world"}` {
			t.Errorf("got %s, want {\"hello\":\"world\"}", got)
		}
	}
}

func TestHub_SendToOneClient(t *testing.T) {
	h := New("test", quietLogger())
	url := startHub(t, h, func(c *Client) {
		c.Send(NewJSONMessage([]byte(`"welcome"`)))
	})

	conn := dial(t, url)
	if got := readText(t, conn); got != `"welcome"` {
		t.Errorf("got %s, want \"welcome\"", got)
	}
}

func TestHub_OnMessage(t *testing.T) {
	h := New("test", quietLogger())
	h.OnMessage(func(c *Client, data []byte) {
		c.Send(NewJSONMessage(append([]byte("echo:"), data...)))
	})
	url := startHub(t, h, nil)

	conn := dial(t, url)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readText(t, conn); got != "echo:hi" {
		t.Errorf("got %s, want echo:hi", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New("test", quietLogger())
	url := startHub(t, h, nil)

	conn := dial(t, url)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}

func TestHub_StopsWithContext(t *testing.T) {
	h := New("test", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("hub never started")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if h.IsRunning() {
		t.Error("IsRunning should be false after stop")
	}
	if _, ok := NewClient(h, nil); ok {
		t.Error("NewClient should fail on a stopped hub")
	}
}
