package radio

import (
	"log/slog"

	"github.com/emonode/emonode/proto"
)

// Link binds a Driver to a network group and node identity and speaks
// the RF12-style frame format over it. It is the only component that
// frames outbound payloads and validates inbound acks; everything
// above it deals in payload bytes.
type Link struct {
	driver Driver
	group  byte
	node   byte
}

func NewLink(driver Driver, group, node byte) *Link {
	return &Link{driver: driver, group: group, node: node}
}

// Wake powers the radio module up.
func (l *Link) Wake() error {
	return l.driver.Wake()
}

// Sleep powers the radio module down.
func (l *Link) Sleep() error {
	return l.driver.Sleep()
}

// CanSend polls transmit readiness without blocking.
func (l *Link) CanSend() bool {
	return l.driver.CanSend()
}

// Send broadcasts a payload from this node, optionally requesting an
// acknowledgment. The transmission is asynchronous; callers pair it
// with WaitSendComplete.
func (l *Link) Send(payload []byte, requestAck bool) error {
	frame := &proto.Frame{
		Group:   l.group,
		Dst:     proto.BroadcastID,
		Src:     l.node,
		AckReq:  requestAck,
		Payload: payload,
	}
	data, err := proto.EncodeFrame(frame)
	if err != nil {
		return err
	}
	return l.driver.Transmit(data)
}

// WaitSendComplete blocks until the in-flight transmission is off air.
func (l *Link) WaitSendComplete() {
	l.driver.WaitTxDone()
}

// PollAck checks, without blocking, for a checksum-valid acknowledgment
// addressed to this node. Frames that fail to decode or are addressed
// elsewhere are dropped.
func (l *Link) PollAck() bool {
	raw, ok := l.driver.Receive()
	if !ok {
		return false
	}
	frame := proto.DecodeFrame(l.group, raw)
	if frame == nil {
		slog.Debug("Dropping undecodable frame", "size", len(raw))
		return false
	}
	return frame.IsAckFor(l.node)
}

// Discard drains one pending inbound frame, if any. The radio module
// cannot listen and be transmit-ready at once, so stray frames arriving
// while waiting for CanSend must be thrown away, not queued.
func (l *Link) Discard() {
	if raw, ok := l.driver.Receive(); ok {
		slog.Debug("Discarding stray inbound frame", "size", len(raw))
	}
}
