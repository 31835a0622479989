package openairealtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketDialer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ek_ws" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "realtime=v1" {
			t.Errorf("OpenAI-Beta = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != ModelGPT4oMiniRealtimePreview {
			t.Errorf("model = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.created","event_id":"event_1"}`))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
	}))
	defer srv.Close()

	client := NewClient(WithWebSocketURL("ws" + strings.TrimPrefix(srv.URL, "http")))
	dialer := &WebSocketDialer{Client: client, Model: ModelGPT4oMiniRealtimePreview}

	opened := make(chan struct{})
	messages := make(chan []byte, 1)
	closed := make(chan struct{})
	conn, err := dialer.Dial(context.Background(), "ek_ws", Handlers{
		OnOpen:    func() { close(opened) },
		OnMessage: func(data []byte) { messages <- data },
		OnClose:   func() { close(closed) },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("OnOpen not called")
	}
	select {
	case data := <-messages:
		if !strings.Contains(string(data), "session.created") {
			t.Errorf("message = %s", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message")
	}

	if err := conn.Send([]byte(`{"type":"response.create"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-received:
		if got != `{"type":"response.create"}` {
			t.Errorf("server received %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server received nothing")
	}

	if err := conn.Close(); err != nil {
		t.Logf("Close: %v", err)
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("OnClose not called")
	}
	if err := conn.Send([]byte(`{}`)); err != ErrChannelClosed {
		t.Errorf("Send after close = %v, want ErrChannelClosed", err)
	}
}
