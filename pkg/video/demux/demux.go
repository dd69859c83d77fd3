package demux

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/xerror"
)

var (
	ErrOpen    = xerror.New("unable to open stream")
	ErrTimeout = xerror.New("stream timed out")
	ErrAborted = xerror.New("stream aborted")
	ErrRead    = xerror.New("unable to read stream")
	ErrNotOpen = xerror.New("stream is not open")
)

// pollInterval is how often the watchdog re-evaluates the interrupt
// decision and forwards it to the native input.
var pollInterval = 20 * time.Millisecond

var now = time.Now

// Demuxer reads the video elementary stream of one network source.
type Demuxer struct {
	input backend.Input
	opts  Options
	intr  *interrupter

	url    string
	stream av.StreamInfo
	opened bool
	pkt    *av.Packet
	seq    uint64

	stop      chan struct{}
	wg        sync.WaitGroup
	watchOnce sync.Once
	closeOnce sync.Once
}

func New(b backend.Backend, opts Options) (*Demuxer, error) {
	input, err := b.NewInput()
	if err != nil {
		return nil, mediaerr.Wrap(mediaerr.Open, err, "creating %s input", b.Name())
	}

	return &Demuxer{
		input: input,
		opts:  opts,
		intr:  newInterrupter(now),
		pkt:   &av.Packet{},
		stop:  make(chan struct{}),
	}, nil
}

// Open connects to addr and resolves the video stream parameters. It
// returns once the stream is ready, ctx is cancelled, RequestAbort is
// called, or the open budget is used up.
func (d *Demuxer) Open(ctx context.Context, addr string) error {
	if d.opened {
		return xerror.New("stream already open")
	}
	d.url = addr
	d.intr.mu.Lock()
	d.intr.ctx = ctx
	d.intr.mu.Unlock()

	d.watchOnce.Do(func() {
		d.wg.Add(1)
		go d.watchdog()
	})

	r, err := d.phase(d.opts.openTimeout(), func() error {
		return d.input.Open(addr, d.opts.dictionary())
	})
	if err != nil {
		return d.failure(r, err, mediaerr.Open, ErrOpen, "opening %s", redact(addr))
	}

	r, err = d.phase(d.opts.openTimeout(), d.input.FindStreamInfo)
	if err != nil {
		return d.failure(r, err, mediaerr.Open, ErrOpen, "probing %s", redact(addr))
	}

	stream, err := d.input.VideoStream()
	if err != nil {
		return mediaerr.WrapAs(mediaerr.Open, ErrOpen, err, "selecting video stream of %s", redact(addr))
	}
	d.stream = stream
	d.opened = true

	log.Debug("opened %s, stream %d %s %dx%d time base %s",
		redact(addr), stream.Index, stream.Params.Codec, stream.Params.Width, stream.Params.Height, stream.TimeBase,
	)
	return nil
}

func (d *Demuxer) Stream() av.StreamInfo {
	return d.stream
}

// ReadPacket reads the next packet of the video stream. The returned
// packet is reused by the next call. io.EOF is returned at end of stream.
func (d *Demuxer) ReadPacket() (*av.Packet, error) {
	if !d.opened {
		return nil, ErrNotOpen
	}

	for {
		r, err := d.phase(d.opts.readTimeout(), func() error {
			return d.input.ReadPacket(d.pkt)
		})
		if err != nil {
			if r == reasonNone && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, d.failure(r, err, mediaerr.Decode, ErrRead, "reading %s", redact(d.url))
		}

		if d.pkt.StreamIndex != d.stream.Index {
			continue
		}
		d.pkt.Seq = d.seq
		d.seq++
		return d.pkt, nil
	}
}

// RequestAbort makes in flight and future blocking calls return
// ErrAborted. It is safe to call from any goroutine.
func (d *Demuxer) RequestAbort() {
	d.intr.abort()
	d.input.Interrupt()
}

// Close aborts and releases the input. Callers stop reading first.
func (d *Demuxer) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.RequestAbort()
		close(d.stop)
		d.wg.Wait()
		d.pkt.Release()
		err = d.input.Close()
		d.opened = false
	})
	return err
}

// phase runs a blocking native call under a fresh budget and reports
// whether an interrupt fired during it.
func (d *Demuxer) phase(budget time.Duration, call func() error) (reason, error) {
	if d.intr.isAborted() {
		return reasonAbort, ErrAborted
	}

	d.intr.begin(budget)
	d.input.Resume()
	err := call()
	r := d.intr.end()
	if err != nil && r == reasonNone && d.intr.isAborted() {
		r = reasonAbort
	}
	return r, err
}

// failure reports err as a timeout or abort when an interrupt caused it,
// otherwise as fallback.
func (d *Demuxer) failure(r reason, err error, kind xerror.Kind, fallback error, format string, a ...interface{}) error {
	switch r {
	case reasonTimeout:
		return mediaerr.WrapAs(mediaerr.Timeout, ErrTimeout, err, format, a...)
	case reasonAbort:
		if errors.Is(err, ErrAborted) {
			return xerror.Errorf(format+": %w", append(a, ErrAborted)...).AsKind(mediaerr.Aborted)
		}
		return mediaerr.WrapAs(mediaerr.Aborted, ErrAborted, err, format, a...)
	}
	return mediaerr.WrapAs(kind, fallback, err, format, a...)
}

func (d *Demuxer) watchdog() {
	defer d.wg.Done()
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			d.intr.fire(d.input.Interrupt)
		}
	}
}

// redact masks the password of a stream address before it is logged.
func redact(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return addr
	}
	return u.Redacted()
}
