package proto

import "fmt"

// Frame is an RF12-style radio frame in the JeeLabs native format.
//
// On-wire layout after the radio preamble and group sync byte:
//
//	dst(1) | src(1) | len(1) | payload(0..MaxFramePayload) | crc16(2, LE)
//
// The dst byte carries a 6-bit destination node id plus two sync parity
// bits derived from the network group. The src byte carries a 6-bit
// source node id, an ack-request flag (bit 7) and a control flag
// (bit 6). Acknowledgment frames have the control flag set and carry no
// ack request. The CRC covers the group byte and everything before the
// CRC itself.
type Frame struct {
	Group   byte
	Dst     byte // destination node id, 0 = broadcast
	Src     byte // source node id
	AckReq  bool // sender wants an acknowledgment
	Ctrl    bool // control frame (acks)
	Payload []byte
}

const (
	// MaxFramePayload bounds the frame body.
	MaxFramePayload = 62

	// BroadcastID addresses every node in the group.
	BroadcastID = 0

	// MinNodeID and MaxNodeID bound assignable node identifiers.
	MinNodeID = 1
	MaxNodeID = 30

	frameHeaderSize = 3
	frameCRCSize    = 2
	minFrameSize    = frameHeaderSize + frameCRCSize

	nodeIDMask = 0x3F
	ackReqBit  = 0x80
	ctrlBit    = 0x40
	parityMask = 0xC0
)

// groupParity derives the two sync parity bits the dst byte carries.
// Bit 7 is the group's b7^b5^b3^b1, bit 6 the group's b6^b4^b2^b0.
func groupParity(group byte) byte {
	hi := (group >> 7) ^ (group >> 5) ^ (group >> 3) ^ (group >> 1)
	lo := (group >> 6) ^ (group >> 4) ^ (group >> 2) ^ group
	return (hi&1)<<7 | (lo&1)<<6
}

// crc16Update steps the CRC-16 used by the radio format (poly 0xA001,
// reflected, init 0xFFFF).
func crc16Update(crc uint16, b byte) uint16 {
	crc ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ 0xA001
		} else {
			crc >>= 1
		}
	}
	return crc
}

func frameCRC(group byte, body []byte) uint16 {
	crc := crc16Update(0xFFFF, group)
	for _, b := range body {
		crc = crc16Update(crc, b)
	}
	return crc
}

// EncodeFrame serialises a frame. It returns an error rather than
// truncating when the payload exceeds MaxFramePayload.
func EncodeFrame(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("nil frame")
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, fmt.Errorf("frame payload too large: %d bytes, max %d", len(f.Payload), MaxFramePayload)
	}

	data := make([]byte, frameHeaderSize+len(f.Payload)+frameCRCSize)
	data[0] = f.Dst&nodeIDMask | groupParity(f.Group)
	data[1] = f.Src & nodeIDMask
	if f.AckReq {
		data[1] |= ackReqBit
	}
	if f.Ctrl {
		data[1] |= ctrlBit
	}
	data[2] = byte(len(f.Payload))
	copy(data[frameHeaderSize:], f.Payload)

	crc := frameCRC(f.Group, data[:frameHeaderSize+len(f.Payload)])
	data[len(data)-2] = byte(crc)
	data[len(data)-1] = byte(crc >> 8)
	return data, nil
}

// DecodeFrame parses raw bytes received on the given network group.
// It returns nil for anything malformed: wrong length, wrong group
// parity, or a CRC mismatch. Callers treat nil as "not our frame".
func DecodeFrame(group byte, data []byte) *Frame {
	if len(data) < minFrameSize {
		return nil
	}
	if data[0]&parityMask != groupParity(group) {
		return nil
	}

	payloadLen := int(data[2])
	if payloadLen > MaxFramePayload || len(data) != frameHeaderSize+payloadLen+frameCRCSize {
		return nil
	}

	crcPos := frameHeaderSize + payloadLen
	recvCRC := uint16(data[crcPos]) | uint16(data[crcPos+1])<<8
	if recvCRC != frameCRC(group, data[:crcPos]) {
		return nil
	}

	f := &Frame{
		Group:  group,
		Dst:    data[0] & nodeIDMask,
		Src:    data[1] & nodeIDMask,
		AckReq: data[1]&ackReqBit != 0,
		Ctrl:   data[1]&ctrlBit != 0,
	}
	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, data[frameHeaderSize:crcPos])
	}
	return f
}

// AckFrame builds the control frame a receiver returns to confirm a
// frame from node src.
func AckFrame(group, src byte) *Frame {
	return &Frame{Group: group, Dst: src, Ctrl: true}
}

// IsAckFor reports whether f is an acknowledgment addressed to node.
func (f *Frame) IsAckFor(node byte) bool {
	return f != nil && f.Ctrl && !f.AckReq && f.Dst == node
}
