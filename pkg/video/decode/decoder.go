package decode

import (
	"errors"

	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/dragoneye/pkg/video/hwaccel"
	"github.com/tauraamui/xerror"
)

// MaxConsecutiveFailures is how many rejected packets in a row are
// tolerated before the decoder gives up.
const MaxConsecutiveFailures = 30

var ErrTooManyFailures = xerror.NewWithKind(mediaerr.Fatal, "too many consecutive decode failures")

type Decoder struct {
	codec    backend.CodecContext
	hw       *hwaccel.Context
	detach   func()
	failures int
}

type Option func(*backend.DecoderConfig)

// LowDelay asks the codec to output frames as soon as they decode.
func LowDelay() Option {
	return func(cfg *backend.DecoderConfig) { cfg.LowDelay = true }
}

// Open configures a decoder for params. When hw is not nil frames are
// decoded on its device and the decoder runs single threaded.
func Open(b backend.Backend, params av.CodecParameters, threads int, hw *hwaccel.Context, opts ...Option) (*Decoder, error) {
	d := &Decoder{hw: hw, detach: func() {}}
	cfg := backend.DecoderConfig{Threads: threads}
	for _, opt := range opts {
		opt(&cfg)
	}

	if hw != nil {
		detach, err := hw.Attach()
		if err != nil {
			return nil, mediaerr.Wrap(mediaerr.Open, err, "attaching %s device", hw.DeviceType())
		}
		d.detach = detach

		if threads != 1 {
			log.Debug("hardware decoding with %s, using 1 thread instead of %d", hw.DeviceType(), threads)
		}
		cfg.Threads = 1
		cfg.Hardware = hw.Handle()
		cfg.HardwareType = hw.DeviceType()
		cfg.Negotiate = negotiateFormat
	}

	codec, err := b.OpenDecoder(params, cfg)
	if err != nil {
		d.detach()
		return nil, mediaerr.Wrap(mediaerr.Open, err, "opening %s decoder", params.Codec)
	}
	d.codec = codec
	return d, nil
}

// negotiateFormat picks the hardware format when the codec offers it and
// the first software format otherwise.
func negotiateFormat(offered []av.PixelFormat, hardware av.PixelFormat) av.PixelFormat {
	for _, f := range offered {
		if f == hardware && len(hardware) > 0 {
			return f
		}
	}
	for _, f := range offered {
		if !f.IsHardware() {
			log.Warn("codec does not offer %s, falling back to %s", hardware, f)
			return f
		}
	}
	return av.PixelFormatNone
}

// SendPacket submits pkt. A packet that is not accepted without an error
// means the decoder is full, drain frames and send it again.
func (d *Decoder) SendPacket(pkt *av.Packet) (bool, error) {
	err := d.codec.SendPacket(pkt)
	if err == nil {
		d.failures = 0
		return true, nil
	}
	if errors.Is(err, av.ErrAgain) {
		return false, nil
	}

	d.failures++
	if d.failures > MaxConsecutiveFailures {
		return false, mediaerr.WrapAs(mediaerr.Fatal, ErrTooManyFailures, err, "%d packets rejected in a row", d.failures)
	}
	return false, mediaerr.Wrap(mediaerr.Decode, err, "decoding packet %d", pkt.Seq)
}

// ReceiveFrame fills f with the next decoded frame, reporting false when
// the decoder needs more input. Hardware frames stay valid until the
// next call.
func (d *Decoder) ReceiveFrame(f *av.Frame) (bool, error) {
	err := d.codec.ReceiveFrame(f)
	if err != nil {
		if errors.Is(err, av.ErrAgain) || errors.Is(err, av.ErrEOF) {
			return false, nil
		}
		return false, mediaerr.Wrap(mediaerr.Decode, err, "receiving frame")
	}

	if f.PTS == av.NoPTS {
		f.PTS = f.BestEffortPTS
	}
	return true, nil
}

func (d *Decoder) Hardware() bool {
	return d.hw != nil && d.codec.HardwareFormat() != av.PixelFormatNone
}

func (d *Decoder) Failures() int {
	return d.failures
}

// Flush drops buffered packets and frames, used when the stream restarts.
func (d *Decoder) Flush() {
	d.codec.Flush()
	d.failures = 0
}

func (d *Decoder) Close() error {
	err := d.codec.Close()
	d.detach()
	return err
}
