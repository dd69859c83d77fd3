package demux

import (
	"strconv"
	"time"
)

const (
	DefaultOpenTimeout = 15 * time.Second
	DefaultReadTimeout = 10 * time.Second
)

type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

type Options struct {
	Transport       Transport
	ProbeSize       int
	AnalyseDuration time.Duration
	LowLatency      bool
	OpenTimeout     time.Duration
	ReadTimeout     time.Duration
	// Native options are passed through to the input untouched and win
	// over anything derived from the fields above.
	Native map[string]string
}

func (o Options) openTimeout() time.Duration {
	if o.OpenTimeout > 0 {
		return o.OpenTimeout
	}
	return DefaultOpenTimeout
}

func (o Options) readTimeout() time.Duration {
	if o.ReadTimeout > 0 {
		return o.ReadTimeout
	}
	return DefaultReadTimeout
}

func (o Options) dictionary() map[string]string {
	d := map[string]string{}
	if len(o.Transport) > 0 {
		d["rtsp_transport"] = string(o.Transport)
	}
	if o.ProbeSize > 0 {
		d["probesize"] = strconv.Itoa(o.ProbeSize)
	}
	if o.AnalyseDuration > 0 {
		d["analyzeduration"] = strconv.FormatInt(o.AnalyseDuration.Microseconds(), 10)
	}
	if o.LowLatency {
		d["fflags"] = "nobuffer"
	}
	for k, v := range o.Native {
		d[k] = v
	}
	return d
}
