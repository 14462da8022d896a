// Package sensor produces the payload fields for each cycle: RMS
// current from a current-transformer channel, supply voltage from an
// internal reference back-calculation, and the derived on/off state.
package sensor

import (
	"log/slog"
	"math"

	"github.com/emonode/emonode/proto"
)

// SamplesPerWindow is the fixed RMS sampling window, matching the
// analog front-end's ~50Hz mains coverage.
const SamplesPerWindow = 1480

// adcMidpoint is the zero-current bias of a 10-bit ADC front-end.
const adcMidpoint = 512

// ADC abstracts the analog front-end. Sampling is assumed to always
// succeed; there is no failure path at this boundary.
type ADC interface {
	// ReadChannel samples the given input channel once.
	ReadChannel(channel int) int

	// ReadSupplyRef samples the internal reference against the supply
	// rail. The supply voltage is back-calculated from the result.
	ReadSupplyRef() int
}

// Config holds the calibration constants for one node.
type Config struct {
	Channel       int     // CT input channel selector
	Calibration   float64 // turns-ratio / burden-resistance factor
	OnThreshold   float64 // whole-amp threshold for the on/off state
	ScaleConstant int     // reference constant for supply back-calculation
}

// Sampler implements the sample engine. Not safe for concurrent use;
// the node owns exactly one and samples once per cycle.
type Sampler struct {
	cfg Config
	adc ADC

	// last good supply reading, held when the reference read is unusable
	lastSupplyMV int16
}

func NewSampler(cfg Config, src ADC) *Sampler {
	return &Sampler{cfg: cfg, adc: src}
}

// Sample produces one fully populated payload. The on/off state is
// derived from the whole-amp current: the centiamp value is truncated
// by integer division before comparing against the threshold, so a
// current of 0.19A with a threshold of 0.1 reads as off.
func (s *Sampler) Sample() proto.Payload {
	centiamps := s.readCurrentCentiamps()
	supplyMV := s.readSupplyMillivolts()

	var onOff int16
	if float64(centiamps/100) > s.cfg.OnThreshold {
		onOff = 1
	}

	return proto.Payload{
		CurrentCentiamps: centiamps,
		OnOff:            onOff,
		SupplyMillivolts: supplyMV,
	}
}

// readCurrentCentiamps estimates RMS current over the sampling window
// and scales it by the calibration factor.
func (s *Sampler) readCurrentCentiamps() int16 {
	var sumSquares float64
	for i := 0; i < SamplesPerWindow; i++ {
		centred := float64(s.adc.ReadChannel(s.cfg.Channel) - adcMidpoint)
		sumSquares += centred * centred
	}
	irms := s.cfg.Calibration * math.Sqrt(sumSquares/SamplesPerWindow)
	return clampInt16(irms * 100)
}

// readSupplyMillivolts back-calculates the supply rail from the
// internal reference. A zero or negative raw reading would divide by
// zero; the previous reading is held instead of propagating an
// undefined value.
func (s *Sampler) readSupplyMillivolts() int16 {
	raw := s.adc.ReadSupplyRef()
	if raw <= 0 {
		slog.Warn("Unusable supply reference reading, holding last value",
			"raw", raw, "last_mv", s.lastSupplyMV)
		return s.lastSupplyMV
	}
	s.lastSupplyMV = clampInt16(float64(s.cfg.ScaleConstant / raw))
	return s.lastSupplyMV
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
