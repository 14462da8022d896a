package radio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// BridgeMessage is the JSON envelope exchanged with a radio gateway
// over WebSocket. Data is base64-encoded by encoding/json.
type BridgeMessage struct {
	Type    string `json:"type"` // "frame", "wake", "sleep"
	Session string `json:"session,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

const (
	BridgeTypeFrame = "frame"
	BridgeTypeWake  = "wake"
	BridgeTypeSleep = "sleep"
)

// BridgeDriver implements Driver over a WebSocket connection to a radio
// gateway. It lets the node run on hosts with no radio hardware: the
// gateway owns the physical (or simulated) radio and relays raw frames
// both ways.
type BridgeDriver struct {
	url     string
	session string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	awake     bool

	rxQueue chan []byte
	closed  chan struct{}
}

func NewBridgeDriver(url string) *BridgeDriver {
	return &BridgeDriver{
		url:     url,
		session: "node-" + uuid.NewString()[:8],
		rxQueue: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

// Connect dials the gateway and starts the read pump.
func (d *BridgeDriver) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("bridge already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(d.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial radio gateway %s: %w", d.url, err)
	}

	d.conn = conn
	d.connected = true

	go d.readPump(conn)

	slog.Info("Connected to radio gateway", "url", d.url, "session", d.session)
	return nil
}

// Close tears the gateway connection down.
func (d *BridgeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	d.connected = false
	close(d.closed)
	return d.conn.Close()
}

func (d *BridgeDriver) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-d.closed:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("Gateway connection error", "error", err)
				}
			}
			return
		}

		var msg BridgeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("Invalid JSON from gateway", "error", err)
			continue
		}
		if msg.Type != BridgeTypeFrame {
			continue
		}

		select {
		case d.rxQueue <- msg.Data:
		default:
			slog.Warn("Bridge receive queue full, dropping frame")
		}
	}
}

func (d *BridgeDriver) write(msg BridgeMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("bridge not connected")
	}
	msg.Session = d.session
	return d.conn.WriteJSON(msg)
}

// Wake tells the gateway to power its radio front-end up.
func (d *BridgeDriver) Wake() error {
	if err := d.write(BridgeMessage{Type: BridgeTypeWake}); err != nil {
		return err
	}
	d.mu.Lock()
	d.awake = true
	d.mu.Unlock()
	return nil
}

// Sleep tells the gateway to power its radio front-end down.
func (d *BridgeDriver) Sleep() error {
	if err := d.write(BridgeMessage{Type: BridgeTypeSleep}); err != nil {
		return err
	}
	d.mu.Lock()
	d.awake = false
	d.mu.Unlock()
	return nil
}

// CanSend reports readiness. The gateway serialises channel access, so
// a connected, awake bridge is always ready.
func (d *BridgeDriver) CanSend() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected && d.awake
}

// Transmit relays a raw frame to the gateway.
func (d *BridgeDriver) Transmit(frame []byte) error {
	data := make([]byte, len(frame))
	copy(data, frame)
	return d.write(BridgeMessage{Type: BridgeTypeFrame, Data: data})
}

// WaitTxDone is a no-op: the WebSocket write returns once the frame has
// been handed to the gateway, which owns on-air timing.
func (d *BridgeDriver) WaitTxDone() {}

// Receive polls the inbound queue without blocking.
func (d *BridgeDriver) Receive() ([]byte, bool) {
	select {
	case data := <-d.rxQueue:
		return data, true
	default:
		return nil, false
	}
}
