// Package node sequences the telemetry cycle: sample, transmit with
// optional ack-based retry, then idle until the next cycle.
package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emonode/emonode/proto"
)

// Sampler produces one fully populated payload per cycle.
// *sensor.Sampler satisfies it.
type Sampler interface {
	Sample() proto.Payload
}

// Status is a read-only snapshot of the node's progress, served by the
// diagnostic web endpoint.
type Status struct {
	NodeID        int           `json:"node_id"`
	Group         int           `json:"group"`
	AckMode       bool          `json:"ack_mode"`
	Cycles        uint64        `json:"cycles"`
	Exhausted     uint64        `json:"exhausted"`
	LastReading   proto.Payload `json:"last_reading"`
	LastReadingAt time.Time     `json:"last_reading_at"`
}

// Node is the main loop: a two-state machine (active, idle) that runs
// until its context is cancelled. Exactly one payload exists per cycle
// and it is never shared across cycles.
type Node struct {
	sampler Sampler
	sender  Sender
	sleeper Sleeper

	cyclePeriodMS int
	metrics       *Metrics

	mu     sync.RWMutex
	status Status
}

func New(sampler Sampler, sender Sender, sleeper Sleeper, cyclePeriodMS int) *Node {
	return &Node{
		sampler:       sampler,
		sender:        sender,
		sleeper:       sleeper,
		cyclePeriodMS: cyclePeriodMS,
	}
}

// SetMetrics attaches cycle counters and last-reading gauges.
func (n *Node) SetMetrics(m *Metrics) {
	n.metrics = m
}

// SetIdentity records addressing fields for the status snapshot.
func (n *Node) SetIdentity(nodeID, group int, ackMode bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status.NodeID = nodeID
	n.status.Group = group
	n.status.AckMode = ackMode
}

// Run loops forever: sample, transmit, idle. An exhausted transmission
// drops the reading and moves on; nothing in the cycle is fatal. Run
// returns only when ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	slog.Info("Node started", "cycle_period_ms", n.cyclePeriodMS)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n.runCycle(ctx)

		if err := n.sleeper.SleepMS(ctx, n.cyclePeriodMS); err != nil {
			slog.Info("Node stopping", "reason", err)
			return err
		}
	}
}

func (n *Node) runCycle(ctx context.Context) {
	p := n.sampler.Sample()

	// The per-cycle diagnostic line, the serial print of the hardware
	// design.
	slog.Info("Reading",
		"current_centiamps", p.CurrentCentiamps,
		"on", p.OnOff,
		"supply_mv", p.SupplyMillivolts)

	err := n.sender.Transmit(ctx, p)
	exhausted := errors.Is(err, ErrExhausted)
	switch {
	case exhausted:
		// Best-effort telemetry: the reading is dropped, the loop
		// continues.
		slog.Warn("Reading dropped, no ack within retry limit")
	case err != nil:
		slog.Warn("Transmit failed", "error", err)
	}

	n.mu.Lock()
	n.status.Cycles++
	if exhausted {
		n.status.Exhausted++
	}
	n.status.LastReading = p
	n.status.LastReadingAt = time.Now()
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.Cycles.Inc()
		if exhausted {
			n.metrics.Exhausted.Inc()
		}
		n.metrics.Current.Set(float64(p.CurrentCentiamps))
		n.metrics.SupplyMV.Set(float64(p.SupplyMillivolts))
		n.metrics.OnOff.Set(float64(p.OnOff))
	}
}

// Status returns a copy of the current snapshot.
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}
