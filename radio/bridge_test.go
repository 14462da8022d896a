package radio

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testGatewayServer is a minimal WebSocket peer that records envelopes
// and can push frames back.
type testGatewayServer struct {
	*httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	received []BridgeMessage
}

func newTestGatewayServer(t *testing.T) *testGatewayServer {
	t.Helper()
	g := &testGatewayServer{}
	upgrader := websocket.Upgrader{}

	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %v", err)
			return
		}
		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()

		for {
			var msg BridgeMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, msg)
			g.mu.Unlock()
		}
	}))
	t.Cleanup(g.Server.Close)
	return g
}

func (g *testGatewayServer) url() string {
	return "ws" + strings.TrimPrefix(g.Server.URL, "http")
}

func (g *testGatewayServer) push(t *testing.T, msg BridgeMessage) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		g.mu.Lock()
		conn := g.conn
		g.mu.Unlock()
		if conn != nil {
			if err := conn.WriteJSON(msg); err != nil {
				t.Fatalf("pushing message: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no client connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (g *testGatewayServer) envelopes() []BridgeMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]BridgeMessage, len(g.received))
	copy(out, g.received)
	return out
}

func (g *testGatewayServer) waitEnvelopes(t *testing.T, n int) []BridgeMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := g.envelopes()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d envelopes, want %d", len(msgs), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridgeDriverConnectAndClose(t *testing.T) {
	srv := newTestGatewayServer(t)
	driver := NewBridgeDriver(srv.url())

	if driver.CanSend() {
		t.Error("CanSend() = true before Connect")
	}

	if err := driver.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := driver.Connect(); err == nil {
		t.Error("second Connect() expected error")
	}

	if err := driver.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestBridgeDriverConnectFailure(t *testing.T) {
	driver := NewBridgeDriver("ws://127.0.0.1:1/radio")
	if err := driver.Connect(); err == nil {
		t.Error("Connect() to dead endpoint expected error")
	}
}

func TestBridgeDriverPowerEnvelopes(t *testing.T) {
	srv := newTestGatewayServer(t)
	driver := NewBridgeDriver(srv.url())

	if err := driver.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	if err := driver.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if !driver.CanSend() {
		t.Error("CanSend() = false after Wake")
	}

	if err := driver.Transmit([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	driver.WaitTxDone()

	if err := driver.Sleep(); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if driver.CanSend() {
		t.Error("CanSend() = true after Sleep")
	}

	msgs := srv.waitEnvelopes(t, 3)
	wantTypes := []string{BridgeTypeWake, BridgeTypeFrame, BridgeTypeSleep}
	for i, want := range wantTypes {
		if msgs[i].Type != want {
			t.Errorf("envelope %d type = %q, want %q", i, msgs[i].Type, want)
		}
		if msgs[i].Session == "" {
			t.Errorf("envelope %d has no session id", i)
		}
	}
	if len(msgs[1].Data) != 3 || msgs[1].Data[0] != 1 {
		t.Errorf("frame data = %v, want [1 2 3]", msgs[1].Data)
	}
}

func TestBridgeDriverReceive(t *testing.T) {
	srv := newTestGatewayServer(t)
	driver := NewBridgeDriver(srv.url())

	if err := driver.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	if _, ok := driver.Receive(); ok {
		t.Error("Receive() returned data before anything was pushed")
	}

	srv.push(t, BridgeMessage{Type: BridgeTypeFrame, Data: []byte{0xAA, 0xBB}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if data, ok := driver.Receive(); ok {
			if len(data) != 2 || data[0] != 0xAA {
				t.Errorf("Receive() = %v, want [aa bb]", data)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("pushed frame never surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridgeDriverIgnoresNonFrameInbound(t *testing.T) {
	srv := newTestGatewayServer(t)
	driver := NewBridgeDriver(srv.url())

	if err := driver.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	srv.push(t, BridgeMessage{Type: BridgeTypeWake})
	srv.push(t, BridgeMessage{Type: BridgeTypeFrame, Data: []byte{0x01}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if data, ok := driver.Receive(); ok {
			// Only the frame envelope must surface.
			if len(data) != 1 || data[0] != 0x01 {
				t.Errorf("Receive() = %v, want [01]", data)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never surfaced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBridgeMessageJSONRoundTrip(t *testing.T) {
	msg := BridgeMessage{Type: BridgeTypeFrame, Session: "node-ab12cd34", Data: []byte{1, 2, 3}}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got BridgeMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Type != msg.Type || got.Session != msg.Session || len(got.Data) != 3 {
		t.Errorf("round trip = %+v, want %+v", got, msg)
	}
}
