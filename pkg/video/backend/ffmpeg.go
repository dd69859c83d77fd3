package backend

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
)

type ffmpegBackend struct{}

func FFmpeg() Backend {
	routeNativeLogs()
	return ffmpegBackend{}
}

func (ffmpegBackend) Name() string { return "ffmpeg" }

func (ffmpegBackend) NewInput() (Input, error) {
	in, err := newFFmpegInput()
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (ffmpegBackend) OpenDecoder(params av.CodecParameters, cfg DecoderConfig) (CodecContext, error) {
	d, err := openFFmpegDecoder(params, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (ffmpegBackend) CreateMuxer(path string) (Muxer, error) {
	m, err := newFFmpegMuxer(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (ffmpegBackend) OpenDevice(kind, name string) (gpu.Device, error) {
	if len(kind) == 0 || kind == "host" {
		return gpu.NewHostDevice(), nil
	}
	d, err := openFFmpegDevice(kind, name)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (ffmpegBackend) NewConverter(width, height int, from, to av.PixelFormat) (Converter, error) {
	c, err := newFFmpegConverter(width, height, from, to)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var routeLogsOnce sync.Once

func routeNativeLogs() {
	routeLogsOnce.Do(func() {
		astiav.SetLogLevel(nativeLogLevel())
		astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, _, msg string) {
			msg = strings.TrimSpace(msg)
			if len(msg) == 0 {
				return
			}
			if c != nil {
				if cl := c.Class(); cl != nil {
					msg = cl.String() + ": " + msg
				}
			}
			switch {
			case l <= astiav.LogLevelError:
				log.Error("ffmpeg: %s", msg)
			case l <= astiav.LogLevelWarning:
				log.Warn("ffmpeg: %s", msg)
			case l <= astiav.LogLevelInfo:
				log.Info("ffmpeg: %s", msg)
			default:
				log.Debug("ffmpeg: %s", msg)
			}
		})
	})
}

func nativeLogLevel() astiav.LogLevel {
	switch logging.CurrentLoggingLevel {
	case logging.DebugLevel:
		return astiav.LogLevelVerbose
	case logging.InfoLevel:
		return astiav.LogLevelInfo
	case logging.SilentLevel:
		return astiav.LogLevelQuiet
	default:
		return astiav.LogLevelWarning
	}
}

// nativeErr translates an astiav error into its message and numeric code,
// mapping end of stream and try again onto the av sentinels.
func nativeErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var code astiav.Error
	if !errors.As(err, &code) {
		return xerror.Errorf("%s: %w", op, err)
	}

	var cause error = err
	switch {
	case errors.Is(err, astiav.ErrEagain):
		cause = av.ErrAgain
	case errors.Is(err, astiav.ErrEof):
		cause = av.ErrEOF
	}
	return mediaerr.NewNative(op, int(code), code.Error(), cause)
}

func isEOF(err error) bool {
	return errors.Is(err, astiav.ErrEof) || errors.Is(err, io.EOF)
}

func fromRational(r astiav.Rational) av.Rational {
	return av.NewRational(r.Num(), r.Den())
}

func toRational(r av.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromPixelFormat(pf astiav.PixelFormat) av.PixelFormat {
	if pf == astiav.PixelFormatNone {
		return av.PixelFormatNone
	}
	return av.PixelFormat(pf.String())
}
