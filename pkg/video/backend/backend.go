package backend

import (
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
)

var fs = afero.NewOsFs()

var (
	ErrNoVideoStream    = xerror.New("no video stream found")
	ErrUnsupported      = xerror.New("not supported by video backend")
	ErrForeignParams    = xerror.New("codec parameters belong to another backend")
	ErrHardwareNotFound = xerror.New("unknown hardware device type")
)

// Input is an unopened network source. Open, FindStreamInfo and
// ReadPacket block on the network and return once Interrupt is called.
type Input interface {
	Open(url string, options map[string]string) error
	FindStreamInfo() error
	VideoStream() (av.StreamInfo, error)
	ReadPacket(*av.Packet) error
	Interrupt()
	Resume()
	Close() error
}

type DecoderConfig struct {
	Threads      int
	Hardware     interface{}
	HardwareType string
	LowDelay     bool
	// Negotiate picks the decoder output format from those the codec
	// offers, given the hardware format matching the attached device.
	Negotiate func(offered []av.PixelFormat, hardware av.PixelFormat) av.PixelFormat
}

// CodecContext returns av.ErrAgain or av.ErrEOF in the chain of errors
// from SendPacket and ReceiveFrame when the codec wants more input or is
// drained.
type CodecContext interface {
	SendPacket(*av.Packet) error
	ReceiveFrame(*av.Frame) error
	Flush()
	HardwareFormat() av.PixelFormat
	Close() error
}

type Muxer interface {
	AddStream(params av.CodecParameters, timeBase av.Rational) error
	// WriteHeader returns the output stream time base, which the
	// container may have changed.
	WriteHeader() (av.Rational, error)
	WritePacket(*av.Packet) error
	WriteTrailer() error
	Close() error
}

// Converter repacks a width x height image between pixel formats.
type Converter interface {
	Convert(dst, src []byte, srcStride int) error
	Close()
}

type Backend interface {
	Name() string
	NewInput() (Input, error)
	OpenDecoder(av.CodecParameters, DecoderConfig) (CodecContext, error)
	CreateMuxer(path string) (Muxer, error)
	OpenDevice(kind, name string) (gpu.Device, error)
	NewConverter(width, height int, from, to av.PixelFormat) (Converter, error)
}

func Default() Backend {
	return FFmpeg()
}

func Mock() Backend {
	return &mockBackend{}
}

func Resolve(t string) Backend {
	switch t {
	case "mock":
		return Mock()
	default:
		return Default()
	}
}
