package rtpfeed

import (
	"fmt"

	"github.com/pion/rtp"
)

// Source packetizes payloads into RTP packets with consecutive sequence
// numbers.
type Source struct {
	ssrc        uint32
	payloadType uint8
	seq         uint16
	timestamp   uint32
}

// NewSource returns a Source for the given stream.
func NewSource(ssrc uint32, payloadType uint8) *Source {
	return &Source{ssrc: ssrc, payloadType: payloadType}
}

// Next marshals payload as the next packet of the stream and advances the
// RTP timestamp by samples.
func (s *Source) Next(payload []byte, samples uint32) ([]byte, error) {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    s.payloadType,
			SequenceNumber: s.seq,
			Timestamp:      s.timestamp,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rtpfeed: marshal seq %d: %w", s.seq, err)
	}
	s.seq++
	s.timestamp += samples
	return raw, nil
}
