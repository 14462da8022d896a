package sensor

import "math"

// SimulatedADC synthesises a mains-frequency current waveform and a
// fixed supply reference. It stands in for the analog front-end on
// hosts without one.
type SimulatedADC struct {
	// AmplitudeCounts is the peak excursion of the synthetic waveform
	// around the ADC midpoint.
	AmplitudeCounts float64

	// SupplyRefRaw is the raw reading returned for the supply
	// reference channel.
	SupplyRefRaw int

	phase float64
}

func NewSimulatedADC(amplitudeCounts float64, supplyRefRaw int) *SimulatedADC {
	return &SimulatedADC{AmplitudeCounts: amplitudeCounts, SupplyRefRaw: supplyRefRaw}
}

func (a *SimulatedADC) ReadChannel(channel int) int {
	a.phase += 2 * math.Pi / 29.6 // ~50Hz at the reference sampling rate
	return adcMidpoint + int(a.AmplitudeCounts*math.Sin(a.phase))
}

func (a *SimulatedADC) ReadSupplyRef() int {
	return a.SupplyRefRaw
}
