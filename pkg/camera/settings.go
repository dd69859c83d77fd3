package camera

import (
	"time"

	"github.com/tauraamui/dragoneye/pkg/video/demux"
)

const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

type Settings struct {
	Address        string
	Demux          demux.Options
	Hardware       string
	HardwareDevice string
	Threads        int
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
}

func (s Settings) backoff() (time.Duration, time.Duration) {
	min, max := s.MinBackoff, s.MaxBackoff
	if min <= 0 {
		min = DefaultMinBackoff
	}
	if max < min {
		max = DefaultMaxBackoff
		if max < min {
			max = min
		}
	}
	return min, max
}
