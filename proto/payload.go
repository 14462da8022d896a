package proto

import (
	"encoding/binary"
	"fmt"
)

// PayloadSize is the fixed on-wire size of an encoded reading.
const PayloadSize = 6

// Payload is the unit of transmission: one reading per cycle.
// It is encoded verbatim as the radio frame body, so field order and
// byte order are part of the wire contract.
type Payload struct {
	CurrentCentiamps int16 // measured RMS current x 100
	OnOff            int16 // 1 if the monitored appliance is considered on
	SupplyMillivolts int16 // battery/supply rail voltage in mV
}

// Encode serialises the payload as three little-endian signed 16-bit
// integers in declaration order.
func (p Payload) Encode() []byte {
	buf := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.CurrentCentiamps))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.OnOff))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(p.SupplyMillivolts))
	return buf
}

// DecodePayload reverses Encode.
func DecodePayload(data []byte) (Payload, error) {
	if len(data) < PayloadSize {
		return Payload{}, fmt.Errorf("payload too short: got %d bytes, want %d", len(data), PayloadSize)
	}
	return Payload{
		CurrentCentiamps: int16(binary.LittleEndian.Uint16(data[0:2])),
		OnOff:            int16(binary.LittleEndian.Uint16(data[2:4])),
		SupplyMillivolts: int16(binary.LittleEndian.Uint16(data[4:6])),
	}, nil
}
