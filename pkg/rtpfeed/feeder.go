// Package rtpfeed feeds RTP payloads into a buffer.Hooky, one chunk per
// packet.
package rtpfeed

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/rtp"
	"go.uber.org/atomic"

	"github.com/lincolnyu/qsharp-sub003/pkg/buffer"
)

// ErrTimeout is returned by Feed when the payload could not be appended
// within the feeder's timeout.
var ErrTimeout = errors.New("rtpfeed: append timed out")

// Stats counts what a Feeder has seen.
type Stats struct {
	Packets  uint64 // packets appended
	Dropped  uint64 // duplicate or late packets
	Timeouts uint64 // appends that timed out
	Gaps     uint64 // sequence numbers never seen
}

// Feeder depacketizes RTP and appends each payload to a Hooky. Packets
// that arrive with a sequence number at or before the last appended one are
// dropped, so readers of the Hooky see payloads in sequence order.
//
// A Feeder is the Hooky's single writer: Feed must not be called
// concurrently. Stats may be called from any goroutine.
type Feeder struct {
	h       *buffer.Hooky
	timeout time.Duration
	log     *slog.Logger

	started bool
	last    uint16

	packets  atomic.Uint64
	dropped  atomic.Uint64
	timeouts atomic.Uint64
	gaps     atomic.Uint64
}

// New returns a Feeder appending to h with the given append timeout.
func New(h *buffer.Hooky, timeout time.Duration) *Feeder {
	return &Feeder{h: h, timeout: timeout, log: slog.Default()}
}

// WithLogger sets the logger for dropped packets and returns f.
func (f *Feeder) WithLogger(l *slog.Logger) *Feeder {
	if l != nil {
		f.log = l
	}
	return f
}

// Feed unmarshals one RTP packet and appends its payload. A packet that is
// dropped as a duplicate is not an error.
func (f *Feeder) Feed(raw []byte) error {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return fmt.Errorf("rtpfeed: unmarshal: %w", err)
	}
	return f.FeedPacket(&pkt)
}

// FeedPacket appends the payload of an already parsed packet. The payload is
// copied, so pkt may be reused afterwards.
func (f *Feeder) FeedPacket(pkt *rtp.Packet) error {
	seq := pkt.SequenceNumber
	diff := int16(seq - f.last)
	if f.started && diff <= 0 {
		f.dropped.Inc()
		f.log.Debug("rtpfeed: drop packet", "seq", seq, "last", f.last)
		return nil
	}

	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)
	if !f.h.Append(payload, f.timeout) {
		f.timeouts.Inc()
		return fmt.Errorf("%w: seq %d", ErrTimeout, seq)
	}

	if f.started && diff > 1 {
		f.gaps.Add(uint64(diff - 1))
	}
	f.started = true
	f.last = seq
	f.packets.Inc()
	return nil
}

// Stats returns a snapshot of the counters.
func (f *Feeder) Stats() Stats {
	return Stats{
		Packets:  f.packets.Load(),
		Dropped:  f.dropped.Load(),
		Timeouts: f.timeouts.Load(),
		Gaps:     f.gaps.Load(),
	}
}
