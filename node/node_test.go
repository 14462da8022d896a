package node

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emonode/emonode/proto"
)

// fixedSampler returns the same reading every cycle
type fixedSampler struct {
	p       proto.Payload
	samples int
}

func (s *fixedSampler) Sample() proto.Payload {
	s.samples++
	return s.p
}

// scriptedSender fails with the given errors in order, then succeeds
type scriptedSender struct {
	errs  []error
	calls int
}

func (s *scriptedSender) Transmit(ctx context.Context, p proto.Payload) error {
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

// countingSleeper cancels the run context after a fixed number of idle
// periods, standing in for the scheduler
type countingSleeper struct {
	cancel    context.CancelFunc
	remaining int
	slept     []int
}

func (s *countingSleeper) SleepMS(ctx context.Context, ms int) error {
	s.slept = append(s.slept, ms)
	s.remaining--
	if s.remaining <= 0 {
		s.cancel()
	}
	return ctx.Err()
}

func TestNodeRunsCyclesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sampler := &fixedSampler{p: testPayload()}
	sender := &scriptedSender{}
	sleeper := &countingSleeper{cancel: cancel, remaining: 3}

	n := New(sampler, sender, sleeper, 10000)

	err := n.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if sampler.samples != 3 {
		t.Errorf("samples = %d, want 3", sampler.samples)
	}
	if sender.calls != 3 {
		t.Errorf("transmits = %d, want 3", sender.calls)
	}
	for _, ms := range sleeper.slept {
		if ms != 10000 {
			t.Errorf("idle period = %dms, want 10000ms", ms)
		}
	}

	status := n.Status()
	if status.Cycles != 3 {
		t.Errorf("status.Cycles = %d, want 3", status.Cycles)
	}
	if status.LastReading != testPayload() {
		t.Errorf("status.LastReading = %+v", status.LastReading)
	}
	if status.LastReadingAt.IsZero() {
		t.Error("status.LastReadingAt not set")
	}
}

func TestNodeExhaustedCycleIsNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sampler := &fixedSampler{p: testPayload()}
	sender := &scriptedSender{errs: []error{ErrExhausted, ErrExhausted}}
	sleeper := &countingSleeper{cancel: cancel, remaining: 4}

	n := New(sampler, sender, sleeper, 10000)

	if err := n.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	// The loop kept running through the exhausted cycles.
	status := n.Status()
	if status.Cycles != 4 {
		t.Errorf("status.Cycles = %d, want 4", status.Cycles)
	}
	if status.Exhausted != 2 {
		t.Errorf("status.Exhausted = %d, want 2", status.Exhausted)
	}
}

func TestNodeUpdatesMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sampler := &fixedSampler{p: testPayload()}
	sender := &scriptedSender{errs: []error{ErrExhausted}}
	sleeper := &countingSleeper{cancel: cancel, remaining: 2}

	n := New(sampler, sender, sleeper, 10000)
	reg := prometheus.NewRegistry()
	n.SetMetrics(NewMetrics(reg))

	if err := n.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				got[mf.GetName()] = m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	if got["emonode_cycles_total"] != 2 {
		t.Errorf("cycles metric = %v, want 2", got["emonode_cycles_total"])
	}
	if got["emonode_exhausted_total"] != 1 {
		t.Errorf("exhausted metric = %v, want 1", got["emonode_exhausted_total"])
	}
	if got["emonode_current_centiamps"] != 250 {
		t.Errorf("current metric = %v, want 250", got["emonode_current_centiamps"])
	}
	if got["emonode_on_state"] != 1 {
		t.Errorf("on state metric = %v, want 1", got["emonode_on_state"])
	}
}

func TestNodeIdentityInStatus(t *testing.T) {
	n := New(&fixedSampler{}, &scriptedSender{}, &countingSleeper{}, 10000)
	n.SetIdentity(10, 210, true)

	status := n.Status()
	if status.NodeID != 10 || status.Group != 210 || !status.AckMode {
		t.Errorf("status identity = %+v", status)
	}
}
