// Package gateway implements a WebSocket radio gateway: the peer a
// BridgeDriver connects to. It owns the (simulated) radio channel,
// decodes frames from connected nodes and answers ack requests, so a
// node can exercise its full retry protocol without radio hardware.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/mdns"

	"github.com/emonode/emonode/proto"
	"github.com/emonode/emonode/radio"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // nodes connect from anywhere on the LAN
	},
}

type Config struct {
	Addr      string // listen address, e.g. ":9120"
	Group     byte   // network group to decode
	Advertise bool   // announce over mDNS
}

// Gateway accepts bridge connections and relays frames. Every decoded
// frame with an ack request gets an acknowledgment addressed back to
// its source node.
type Gateway struct {
	cfg Config

	mu        sync.Mutex
	listener  net.Listener
	srv       *http.Server
	mdnsSrv   *mdns.Server
	onPayload func(src byte, payload []byte)
}

func New(cfg Config) *Gateway {
	return &Gateway{cfg: cfg}
}

// OnPayload registers a callback for the body of every decoded data
// frame.
func (g *Gateway) OnPayload(fn func(src byte, payload []byte)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onPayload = fn
}

// Addr returns the bound listen address once Start has been called.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Start listens and serves until Shutdown. It blocks, like the other
// servers in this codebase.
func (g *Gateway) Start() error {
	listener, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.cfg.Addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/radio", g.handleWebSocket)

	g.mu.Lock()
	g.listener = listener
	g.srv = &http.Server{Handler: mux}
	g.mu.Unlock()

	if g.cfg.Advertise {
		if err := g.advertise(listener); err != nil {
			slog.Warn("mDNS advertisement failed", "error", err)
		}
	}

	slog.Info("Radio gateway listening",
		"addr", listener.Addr().String(), "group", g.cfg.Group)

	err = g.srv.Serve(listener)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	srv := g.srv
	mdnsSrv := g.mdnsSrv
	g.mu.Unlock()

	if mdnsSrv != nil {
		mdnsSrv.Shutdown()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (g *Gateway) advertise(listener net.Listener) error {
	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "emonode-gateway"
	}

	service, err := mdns.NewMDNSService(host, radio.GatewayService, "", "", port,
		nil, []string{"emonode radio gateway", fmt.Sprintf("group=%d", g.cfg.Group)})
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.mdnsSrv = server
	g.mu.Unlock()

	slog.Info("Advertising gateway over mDNS", "service", radio.GatewayService, "port", port)
	return nil
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}
	go g.handleConnection(conn, r.RemoteAddr)
}

func (g *Gateway) handleConnection(conn *websocket.Conn, remoteAddr string) {
	slog.Info("Node connected", "addr", remoteAddr)
	defer func() {
		conn.Close()
		slog.Info("Node disconnected", "addr", remoteAddr)
	}()

	awake := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Node connection error", "addr", remoteAddr, "error", err)
			}
			return
		}

		var msg radio.BridgeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("Invalid JSON from node", "addr", remoteAddr, "error", err)
			continue
		}

		switch msg.Type {
		case radio.BridgeTypeWake:
			awake = true
			slog.Debug("Node radio awake", "session", msg.Session)
		case radio.BridgeTypeSleep:
			awake = false
			slog.Debug("Node radio asleep", "session", msg.Session)
		case radio.BridgeTypeFrame:
			if !awake {
				slog.Warn("Frame from sleeping radio, dropping", "session", msg.Session)
				continue
			}
			g.handleFrame(conn, msg)
		default:
			slog.Warn("Unknown bridge message type", "type", msg.Type)
		}
	}
}

func (g *Gateway) handleFrame(conn *websocket.Conn, msg radio.BridgeMessage) {
	frame := proto.DecodeFrame(g.cfg.Group, msg.Data)
	if frame == nil {
		slog.Warn("Undecodable frame", "session", msg.Session, "size", len(msg.Data))
		return
	}

	slog.Debug("Frame received",
		"session", msg.Session, "src", frame.Src, "dst", frame.Dst,
		"ack_req", frame.AckReq, "payload_size", len(frame.Payload))

	if len(frame.Payload) > 0 && !frame.Ctrl {
		g.mu.Lock()
		fn := g.onPayload
		g.mu.Unlock()
		if fn != nil {
			fn(frame.Src, frame.Payload)
		}
	}

	if frame.AckReq {
		ack, err := proto.EncodeFrame(proto.AckFrame(g.cfg.Group, frame.Src))
		if err != nil {
			slog.Error("Failed to encode ack", "error", err)
			return
		}
		reply := radio.BridgeMessage{Type: radio.BridgeTypeFrame, Data: ack}
		if err := conn.WriteJSON(reply); err != nil {
			slog.Warn("Failed to send ack", "error", err)
		}
	}
}
