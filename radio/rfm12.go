package radio

import (
	"fmt"
	"log/slog"
	"sync"
)

// HardwareInterface abstracts the SPI/GPIO communication with an
// RFM12-class radio module. This allows different back-ends (spidev,
// bit-banged GPIO, etc.) to be plugged in.
type HardwareInterface interface {
	Initialize() error
	Transmit(data []byte) error
	SetReceiveCallback(callback func(data []byte))
	Standby() error
	Wakeup() error
	Close() error
	SetFrequency(band uint16) error
}

// RFM12Config contains hardware-specific configuration for an
// RFM12B/RFM69 module driven in RF12 compatibility mode.
type RFM12Config struct {
	// SPI Configuration
	SPIDevice string // e.g., "/dev/spidev0.0"
	SPISpeed  uint32 // SPI clock speed in Hz

	// GPIO numbers
	IRQPin int // radio interrupt
	CSPin  int // SPI chip select

	// Radio configuration
	Band uint16 // frequency band in MHz: 433, 868 or 915
}

// DefaultRFM12Config returns a standard configuration for 433MHz
// operation.
func DefaultRFM12Config() RFM12Config {
	return RFM12Config{
		SPIDevice: "/dev/spidev0.0",
		SPISpeed:  2500000,
		IRQPin:    25,
		CSPin:     8,
		Band:      433,
	}
}

// RFM12Driver implements Driver for RFM12-class hardware. It is a
// framework implementation: the actual register-level work lives
// behind HardwareInterface.
type RFM12Driver struct {
	config RFM12Config
	hw     HardwareInterface

	mu      sync.Mutex
	awake   bool
	started bool
	txDone  chan struct{}

	rxQueue chan []byte
}

func NewRFM12Driver(config RFM12Config, hw HardwareInterface) *RFM12Driver {
	return &RFM12Driver{
		config:  config,
		hw:      hw,
		rxQueue: make(chan []byte, 8),
	}
}

// Start initializes the hardware and leaves the module in standby.
func (d *RFM12Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("radio already started")
	}

	if err := d.hw.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware interface: %w", err)
	}
	if err := d.hw.SetFrequency(d.config.Band); err != nil {
		d.hw.Close()
		return fmt.Errorf("failed to set frequency band: %w", err)
	}

	d.hw.SetReceiveCallback(d.onHardwareReceive)

	if err := d.hw.Standby(); err != nil {
		d.hw.Close()
		return fmt.Errorf("failed to enter standby: %w", err)
	}

	d.started = true

	slog.Info("RFM12 radio started",
		"band_mhz", d.config.Band,
		"spi_device", d.config.SPIDevice,
		"irq_pin", d.config.IRQPin)
	return nil
}

// Stop shuts the radio down and releases hardware resources.
func (d *RFM12Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.started = false
	d.awake = false

	err := d.hw.Close()
	slog.Info("RFM12 radio stopped")
	return err
}

func (d *RFM12Driver) Wake() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return fmt.Errorf("radio not started")
	}
	if d.awake {
		return nil
	}
	if err := d.hw.Wakeup(); err != nil {
		return fmt.Errorf("hardware wakeup failed: %w", err)
	}
	d.awake = true
	return nil
}

func (d *RFM12Driver) Sleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || !d.awake {
		return nil
	}
	if err := d.hw.Standby(); err != nil {
		return fmt.Errorf("hardware standby failed: %w", err)
	}
	d.awake = false
	return nil
}

// CanSend reports whether the module is awake with no transmission in
// flight.
func (d *RFM12Driver) CanSend() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started && d.awake && d.txDone == nil
}

// Transmit hands a raw frame to the hardware. The actual on-air time is
// modeled asynchronously; WaitTxDone blocks until it has elapsed.
func (d *RFM12Driver) Transmit(frame []byte) error {
	d.mu.Lock()
	if !d.started || !d.awake {
		d.mu.Unlock()
		return fmt.Errorf("radio not awake")
	}
	if d.txDone != nil {
		d.mu.Unlock()
		return fmt.Errorf("transmission already in flight")
	}

	done := make(chan struct{})
	d.txDone = done
	d.mu.Unlock()

	data := make([]byte, len(frame))
	copy(data, frame)

	go func() {
		err := d.hw.Transmit(data)
		if err != nil {
			slog.Warn("Hardware transmit failed", "error", err)
		} else {
			slog.Debug("RFM12 frame transmitted", "size", len(data))
		}
		close(done)
	}()

	return nil
}

func (d *RFM12Driver) WaitTxDone() {
	d.mu.Lock()
	done := d.txDone
	d.mu.Unlock()

	if done == nil {
		return
	}
	<-done

	d.mu.Lock()
	d.txDone = nil
	d.mu.Unlock()
}

// Receive polls the inbound queue without blocking.
func (d *RFM12Driver) Receive() ([]byte, bool) {
	select {
	case data := <-d.rxQueue:
		return data, true
	default:
		return nil, false
	}
}

func (d *RFM12Driver) onHardwareReceive(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	select {
	case d.rxQueue <- frame:
		slog.Debug("RFM12 frame queued", "size", len(frame))
	default:
		slog.Warn("RFM12 receive queue full, dropping frame")
	}
}
