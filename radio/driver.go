package radio

// Driver is the interface that wraps the primitive operations of a
// radio module. The module has its own power state independent of the
// CPU: Wake and Sleep move it between transmit-ready and lowest
// idle-current states.
type Driver interface {
	// Wake powers the module up. It returns once the module is ready
	// to transmit.
	Wake() error

	// Sleep powers the module down to its lowest idle-current state.
	Sleep() error

	// CanSend is a non-blocking poll of transmit readiness.
	CanSend() bool

	// Transmit begins an asynchronous transmission of a raw frame.
	// Callers wait for on-air completion via WaitTxDone.
	Transmit(frame []byte) error

	// WaitTxDone blocks until the in-flight transmission has finished
	// occupying the channel.
	WaitTxDone()

	// Receive is a non-blocking poll for an inbound raw frame.
	Receive() ([]byte, bool)
}
