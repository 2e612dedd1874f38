package stress

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects the buffer a scenario exercises.
type Mode string

const (
	// Circular runs against a buffer.Circular.
	Circular Mode = "circular"
	// Hooky runs against a buffer.Hooky.
	Hooky Mode = "hooky"
)

// ErrInvalidScenario is returned by Validate and Run for a scenario that
// cannot be run.
var ErrInvalidScenario = errors.New("stress: invalid scenario")

// Scenario describes one stress run.
type Scenario struct {
	Mode Mode `yaml:"mode" json:"mode" msgpack:"mode"`

	// BlockSize and BlockCount size a Circular. Their product must not be a
	// multiple of the pattern period, so that data from different laps
	// differs.
	BlockSize  int `yaml:"block_size" json:"block_size" msgpack:"block_size"`
	BlockCount int `yaml:"block_count" json:"block_count" msgpack:"block_count"`

	// HookCount sizes a Hooky.
	HookCount int `yaml:"hook_count" json:"hook_count" msgpack:"hook_count"`

	Readers  int           `yaml:"readers" json:"readers" msgpack:"readers"`
	Duration time.Duration `yaml:"duration" json:"duration" msgpack:"duration"`

	// WriteChunk is the size of each write. In hooky mode chunk sizes vary
	// between 1 and WriteChunk.
	WriteChunk int `yaml:"write_chunk" json:"write_chunk" msgpack:"write_chunk"`
	// ReadChunk caps the size of each read.
	ReadChunk int `yaml:"read_chunk" json:"read_chunk" msgpack:"read_chunk"`
	// WriteRate paces the writer in bytes per second; 0 writes as fast as
	// the locks allow.
	WriteRate int `yaml:"write_rate" json:"write_rate" msgpack:"write_rate"`
	// Timeout bounds every buffer call.
	Timeout time.Duration `yaml:"timeout" json:"timeout" msgpack:"timeout"`

	// AheadRate and Fullness are passed to RecommendReadPointer and
	// RecommendReadLength by circular readers.
	AheadRate float64 `yaml:"ahead_rate" json:"ahead_rate" msgpack:"ahead_rate"`
	Fullness  float64 `yaml:"fullness" json:"fullness" msgpack:"fullness"`

	// Preserve keeps the last read lock between reads.
	Preserve bool `yaml:"preserve" json:"preserve" msgpack:"preserve"`

	// RTP sends hooky chunks through an RTP packetizer and rtpfeed.
	RTP bool `yaml:"rtp" json:"rtp" msgpack:"rtp"`
}

// DefaultScenario returns a short circular run with two readers.
func DefaultScenario() Scenario {
	return Scenario{
		Mode:       Circular,
		BlockSize:  256,
		BlockCount: 16,
		HookCount:  64,
		Readers:    2,
		Duration:   2 * time.Second,
		WriteChunk: 100,
		ReadChunk:  300,
		WriteRate:  4 << 20,
		Timeout:    10 * time.Millisecond,
		AheadRate:  0.5,
		Fullness:   1,
		Preserve:   true,
	}
}

// Validate reports the first problem that prevents the scenario from
// running.
func (s Scenario) Validate() error {
	switch s.Mode {
	case Circular:
		if s.BlockSize <= 0 || s.BlockCount <= 0 {
			return fmt.Errorf("%w: block size %d, block count %d", ErrInvalidScenario, s.BlockSize, s.BlockCount)
		}
		if n := s.BlockSize * s.BlockCount; n%patternPeriod == 0 {
			return fmt.Errorf("%w: buffer length %d is a multiple of %d", ErrInvalidScenario, n, patternPeriod)
		}
		if s.AheadRate < 0 || s.AheadRate > 1 {
			return fmt.Errorf("%w: ahead rate %v not in [0, 1]", ErrInvalidScenario, s.AheadRate)
		}
		if s.Fullness <= 0 || s.Fullness > 1 {
			return fmt.Errorf("%w: fullness %v not in (0, 1]", ErrInvalidScenario, s.Fullness)
		}
	case Hooky:
		if s.HookCount <= 0 {
			return fmt.Errorf("%w: hook count %d", ErrInvalidScenario, s.HookCount)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidScenario, s.Mode)
	}

	switch {
	case s.Readers <= 0:
		return fmt.Errorf("%w: %d readers", ErrInvalidScenario, s.Readers)
	case s.Duration <= 0:
		return fmt.Errorf("%w: duration %v", ErrInvalidScenario, s.Duration)
	case s.WriteChunk <= 0 || s.ReadChunk <= 0:
		return fmt.Errorf("%w: write chunk %d, read chunk %d", ErrInvalidScenario, s.WriteChunk, s.ReadChunk)
	case s.WriteRate < 0:
		return fmt.Errorf("%w: write rate %d", ErrInvalidScenario, s.WriteRate)
	case s.RTP && s.Mode != Hooky:
		return fmt.Errorf("%w: rtp requires hooky mode", ErrInvalidScenario)
	}
	return nil
}
