package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emonode/emonode/proto"
)

// ErrExhausted reports that every transmission attempt went
// unacknowledged. Callers treat it as a dropped reading, not a fault.
var ErrExhausted = errors.New("transmission exhausted: retry limit reached without ack")

// maxReadySpins bounds the transmit-readiness poll. The radio frees the
// channel within a frame time, so the bound is never reached in
// practice; it exists to make the loop's liveness checkable.
const maxReadySpins = 1000

// ackPollInterval paces the acknowledgment poll within the ack window.
const ackPollInterval = time.Millisecond

// RadioLink is the radio contract the senders drive. *radio.Link
// satisfies it.
type RadioLink interface {
	Wake() error
	Sleep() error
	CanSend() bool
	Send(payload []byte, requestAck bool) error
	WaitSendComplete()
	PollAck() bool
	Discard()
}

// Sleeper is the scheduler capability the acknowledged sender uses for
// retry backoff. *sched.Scheduler satisfies it.
type Sleeper interface {
	SleepMS(ctx context.Context, ms int) error
}

// Sender transmits one payload per cycle.
type Sender interface {
	Transmit(ctx context.Context, p proto.Payload) error
}

// UnackedSender performs a single fire-and-forget transmission. Failure
// is not observable in this mode.
type UnackedSender struct {
	link RadioLink
}

func NewUnackedSender(link RadioLink) *UnackedSender {
	return &UnackedSender{link: link}
}

func (s *UnackedSender) Transmit(ctx context.Context, p proto.Payload) error {
	if err := s.link.Wake(); err != nil {
		return err
	}
	if err := s.link.Send(p.Encode(), false); err != nil {
		s.link.Sleep()
		return err
	}
	s.link.WaitSendComplete()
	return s.link.Sleep()
}

// AckedSender retries a transmission until it is acknowledged or the
// retry limit is exhausted. The radio is woken only for the duration of
// one transmit+ack-wait window and put back to sleep before any
// backoff, so the retry delay is spent with the radio powered down.
type AckedSender struct {
	link    RadioLink
	sleeper Sleeper

	retryLimit    int
	retryPeriodMS int
	ackWait       time.Duration

	metrics *Metrics
}

func NewAckedSender(link RadioLink, sleeper Sleeper, retryLimit, retryPeriodSec, ackWaitMS int) *AckedSender {
	return &AckedSender{
		link:          link,
		sleeper:       sleeper,
		retryLimit:    retryLimit,
		retryPeriodMS: retryPeriodSec * 1000,
		ackWait:       time.Duration(ackWaitMS) * time.Millisecond,
	}
}

// SetMetrics attaches per-attempt counters.
func (s *AckedSender) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Transmit runs the bounded retry loop: up to retryLimit+1 attempts,
// each a wake / drain-until-ready / send / ack-wait / sleep sequence.
// The ordering is load-bearing: the radio must never stay powered
// between attempts.
func (s *AckedSender) Transmit(ctx context.Context, p proto.Payload) error {
	payload := p.Encode()

	for attempt := 0; ; attempt++ {
		if err := s.link.Wake(); err != nil {
			return err
		}

		// The radio cannot listen and be transmit-ready at once: any
		// frame arriving during this poll is discarded, not queued.
		for spins := 0; !s.link.CanSend() && spins < maxReadySpins; spins++ {
			s.link.Discard()
		}

		if err := s.link.Send(payload, true); err != nil {
			s.link.Sleep()
			return err
		}
		s.link.WaitSendComplete()

		if s.metrics != nil {
			s.metrics.TxAttempts.Inc()
		}

		acked := s.waitAck()
		if err := s.link.Sleep(); err != nil {
			return err
		}

		if acked {
			if s.metrics != nil {
				s.metrics.Acked.Inc()
			}
			slog.Debug("Transmission acknowledged", "attempt", attempt)
			return nil
		}

		if attempt == s.retryLimit {
			return ErrExhausted
		}

		slog.Debug("No ack, backing off before retry",
			"attempt", attempt, "backoff_ms", s.retryPeriodMS)
		if err := s.sleeper.SleepMS(ctx, s.retryPeriodMS); err != nil {
			return err
		}
	}
}

// waitAck polls for a matching acknowledgment for up to the ack window.
func (s *AckedSender) waitAck() bool {
	deadline := time.Now().Add(s.ackWait)
	for time.Now().Before(deadline) {
		if s.link.PollAck() {
			return true
		}
		time.Sleep(ackPollInterval)
	}
	return false
}
