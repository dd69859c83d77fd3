package remux

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/xerror"
)

var fs = afero.NewOsFs()

var ErrClosed = xerror.New("recorder is closed")

// Summary describes what a recording session wrote.
type Summary struct {
	Path     string
	Started  time.Time
	Ended    time.Time
	Packets  int
	Bytes    int64
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Recorder copies compressed packets into a container file without
// re-encoding. Nothing is written until the first keyframe arrives,
// after which output timestamps start at zero and DTS strictly increases.
type Recorder struct {
	path   string
	mux    backend.Muxer
	inTB   av.Rational
	outTB  av.Rational
	active bool
	closed bool

	origin    int64
	originSet bool
	lastDTS   int64
	written   bool

	summary Summary
}

// Open prepares a recording of a stream with the given codec parameters
// and time base at path, creating parent directories as needed.
func Open(b backend.Backend, path string, params av.CodecParameters, inputTimeBase av.Rational) (*Recorder, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, mediaerr.Wrap(mediaerr.Recording, err, "creating directory for %s", path)
	}

	mux, err := b.CreateMuxer(path)
	if err != nil {
		return nil, mediaerr.Wrap(mediaerr.Recording, err, "creating muxer for %s", path)
	}

	if err := mux.AddStream(params, inputTimeBase); err != nil {
		mux.Close()
		return nil, mediaerr.Wrap(mediaerr.Recording, err, "adding stream to %s", path)
	}

	return &Recorder{
		path:    path,
		mux:     mux,
		inTB:    inputTimeBase,
		summary: Summary{Path: path},
	}, nil
}

func (r *Recorder) Path() string {
	return r.path
}

// Active reports whether the first keyframe has been written.
func (r *Recorder) Active() bool {
	return r.active
}

// WritePacket appends pkt, whose timestamps are in timeBase, or the
// input time base when timeBase is not valid. Packets before the first
// keyframe are dropped. A packet that fails to write is logged and
// skipped, only failing to start the file is returned.
func (r *Recorder) WritePacket(pkt *av.Packet, timeBase av.Rational) error {
	if r.closed {
		return ErrClosed
	}

	if !r.active {
		if !pkt.Keyframe {
			r.summary.Skipped++
			return nil
		}
		if err := r.start(); err != nil {
			return err
		}
	}

	c, err := pkt.Clone()
	if err != nil {
		r.dropped(err, pkt)
		return nil
	}
	defer c.Release()

	in := r.inTB
	if timeBase.Valid() {
		in = timeBase
	}

	if !r.originSet {
		r.origin = 0
		if c.DTS != av.NoPTS {
			r.origin = c.DTS
		}
		r.originSet = true
	}

	var dtsOffset int64
	if c.DTS != av.NoPTS {
		dtsOffset = c.DTS - r.origin
	}
	ptsOffset := dtsOffset
	if c.PTS != av.NoPTS {
		ptsOffset = c.PTS - r.origin
	}

	dts := av.Rescale(dtsOffset, in, r.outTB)
	pts := av.Rescale(ptsOffset, in, r.outTB)
	if r.written && dts <= r.lastDTS {
		dts = r.lastDTS + 1
		if pts < dts {
			pts = dts
		}
	}

	c.DTS, c.PTS = dts, pts
	if c.Duration > 0 {
		c.Duration = av.Rescale(c.Duration, in, r.outTB)
	}
	c.StreamIndex = 0
	c.Pos = -1

	if err := r.mux.WritePacket(c); err != nil {
		r.dropped(err, pkt)
		return nil
	}

	r.lastDTS = dts
	r.written = true
	r.summary.Packets++
	r.summary.Bytes += int64(c.Size())
	return nil
}

func (r *Recorder) start() error {
	outTB, err := r.mux.WriteHeader()
	if err != nil {
		return mediaerr.Wrap(mediaerr.Recording, err, "writing header of %s", r.path)
	}
	if !outTB.Valid() {
		outTB = r.inTB
	}
	r.outTB = outTB
	r.active = true
	r.summary.Started = time.Now()
	log.Debug("recording to %s from first keyframe, output time base %s", r.path, outTB)
	return nil
}

func (r *Recorder) dropped(err error, pkt *av.Packet) {
	r.summary.Failed++
	log.Warn("dropped packet %d from %s: %v", pkt.Seq, r.path, err)
}

// Close finishes the file. A recording that never saw a keyframe is
// removed rather than left behind empty.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.summary.Ended = time.Now()

	var trailerErr error
	if r.active {
		if err := r.mux.WriteTrailer(); err != nil {
			trailerErr = mediaerr.Wrap(mediaerr.Recording, err, "writing trailer of %s", r.path)
		}
		if r.written {
			r.summary.Duration = time.Duration(av.Rescale(r.lastDTS, r.outTB, av.NewRational(1, int(time.Second))))
		}
	}

	closeErr := r.mux.Close()

	if !r.active {
		if err := fs.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("unable to remove empty recording %s: %v", r.path, err)
		}
		return closeErr
	}

	if trailerErr != nil {
		return trailerErr
	}
	return closeErr
}

func (r *Recorder) Summary() Summary {
	return r.summary
}
