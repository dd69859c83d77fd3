package camera

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/dragoneye/pkg/video/decode"
	"github.com/tauraamui/dragoneye/pkg/video/demux"
	"github.com/tauraamui/dragoneye/pkg/video/framecache"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/dragoneye/pkg/video/hwaccel"
	"github.com/tauraamui/dragoneye/pkg/video/remux"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
	"github.com/tauraamui/xerror"
)

var (
	ErrNotConnected     = xerror.New("camera is not connected")
	ErrAlreadyRecording = xerror.New("camera is already recording")
	ErrNotRecording     = xerror.New("camera is not recording")
	ErrEndOfStream      = xerror.New("end of stream")
)

type Stats struct {
	FramesDecoded uint64
	FPS           float64
	State         State
	Recording     bool
	// Device is the kind of device frames are processed on, empty until
	// the first connection.
	Device string
}

// Session keeps one camera connected, decoding into the latest frame
// cache and optionally recording the compressed stream.
type Session struct {
	uuid    string
	title   string
	log     log.Camera
	sett    Settings
	backend backend.Backend
	images  snapshot.ImageEncoder
	cache   *framecache.Cache

	// used under the cache lock
	dev     gpu.Device
	proc    *gpu.FrameProcessor
	encoder *snapshot.Encoder

	// owned by the supervising goroutine
	hw      *hwaccel.Context
	decoder *decode.Decoder
	decoded av.CodecParameters
	frame   av.Frame

	mu        sync.Mutex
	state     State
	observers map[int]func(StateChange)
	nextID    int
	dmx       *demux.Demuxer
	stream    av.StreamInfo

	recMu      sync.Mutex
	recorder   *remux.Recorder
	rotateTo   string
	onRecorded []func(remux.Summary)

	frames  atomic.Uint64
	fps     atomic.Uint64
	devKind atomic.Value

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

func New(title string, sett Settings, b backend.Backend, images snapshot.ImageEncoder) *Session {
	return &Session{
		uuid:      uuid.NewString(),
		title:     title,
		log:       log.Camera(title),
		sett:      sett,
		backend:   b,
		images:    images,
		cache:     framecache.New(),
		observers: map[int]func(StateChange){},
	}
}

func (s *Session) UUID() string { return s.uuid }

func (s *Session) Title() string { return s.title }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stream returns the parameters of the connected video stream.
func (s *Session) Stream() (av.StreamInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream, s.state == Connected
}

// Start connects in the background and keeps reconnecting until ctx is
// done or Close is called.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		s.wg.Add(2)
		go s.supervise(ctx)
		go s.sampleFPS(ctx)
	})
}

func (s *Session) OnStateChange(fn func(StateChange)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// OnFrameReady is called after new frames are published. Bursts may
// coalesce into one call.
func (s *Session) OnFrameReady(fn func()) (unsubscribe func()) {
	return s.cache.OnFrameReady(fn)
}

// OnRecordingClosed is called with the summary of every finished
// recording, whether stopped, rotated or cut short by a disconnect.
func (s *Session) OnRecordingClosed(fn func(remux.Summary)) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	s.onRecorded = append(s.onRecorded, fn)
}

// Present runs fn against the latest frame under the frame lock.
func (s *Session) Present(fn func(framecache.Frame) error) error {
	return s.cache.WithFrame(fn)
}

// CaptureFrame encodes the latest frame as a still image. Nothing is
// captured unless the camera is connected.
func (s *Session) CaptureFrame() ([]byte, bool) {
	if s.State() != Connected {
		return nil, false
	}

	var img []byte
	err := s.cache.WithFrame(func(f framecache.Frame) error {
		if !f.Valid() || s.encoder == nil {
			return snapshot.ErrNoFrame
		}
		b, err := s.encoder.Capture(f.Texture, f.Width, f.Height)
		img = b
		return err
	})
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoFrame) {
			s.log.Warn("unable to capture frame: %v", err)
		}
		return nil, false
	}
	return img, true
}

func (s *Session) SnapshotFormat() snapshot.Format {
	return s.images.Format()
}

func (s *Session) Stats() Stats {
	s.recMu.Lock()
	recording := s.recorder != nil
	s.recMu.Unlock()

	device, _ := s.devKind.Load().(string)
	return Stats{
		FramesDecoded: s.frames.Load(),
		FPS:           math.Float64frombits(s.fps.Load()),
		State:         s.State(),
		Recording:     recording,
		Device:        device,
	}
}

// StartRecording copies the stream into path from the next keyframe.
func (s *Session) StartRecording(path string) error {
	stream, connected := s.Stream()
	if !connected {
		return ErrNotConnected
	}

	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recorder != nil {
		return ErrAlreadyRecording
	}

	rec, err := remux.Open(s.backend, path, stream.Params, stream.TimeBase)
	if err != nil {
		return err
	}
	s.recorder = rec
	s.log.Info("recording to %s", path)
	return nil
}

// RotateRecording switches the recording to path at the next keyframe.
func (s *Session) RotateRecording(path string) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recorder == nil {
		return ErrNotRecording
	}
	s.rotateTo = path
	return nil
}

func (s *Session) StopRecording() (remux.Summary, error) {
	s.recMu.Lock()
	if s.recorder == nil {
		s.recMu.Unlock()
		return remux.Summary{}, ErrNotRecording
	}
	summary, err := s.finishRecordingLocked()
	callbacks := s.onRecorded
	s.recMu.Unlock()

	for _, fn := range callbacks {
		fn(summary)
	}
	return summary, err
}

func (s *Session) finishRecordingLocked() (remux.Summary, error) {
	err := s.recorder.Close()
	summary := s.recorder.Summary()
	s.recorder, s.rotateTo = nil, ""
	if err != nil {
		s.log.Error("unable to finish recording %s: %v", summary.Path, err)
	} else {
		s.log.Info("finished recording %s, %d packets", summary.Path, summary.Packets)
	}
	return summary, err
}

// record passes pkt to the active recording, switching files first when a
// rotation is pending and pkt starts a new group of pictures.
func (s *Session) record(pkt *av.Packet, stream av.StreamInfo) {
	var finished []remux.Summary

	s.recMu.Lock()
	if s.recorder != nil && len(s.rotateTo) > 0 && pkt.Keyframe {
		next := s.rotateTo
		summary, _ := s.finishRecordingLocked()
		finished = append(finished, summary)

		rec, err := remux.Open(s.backend, next, stream.Params, stream.TimeBase)
		if err != nil {
			s.log.Error("unable to rotate recording to %s: %v", next, err)
		} else {
			s.recorder = rec
			s.log.Info("recording to %s", next)
		}
	}

	if s.recorder != nil {
		if err := s.recorder.WritePacket(pkt, stream.TimeBase); err != nil {
			s.log.Error("recording failed: %v", err)
			summary, _ := s.finishRecordingLocked()
			finished = append(finished, summary)
		}
	}
	callbacks := s.onRecorded
	s.recMu.Unlock()

	for _, summary := range finished {
		for _, fn := range callbacks {
			fn(summary)
		}
	}
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Lock()
		if s.dmx != nil {
			s.dmx.RequestAbort()
		}
		s.mu.Unlock()
		s.wg.Wait()

		s.closeRecording()
		if s.decoder != nil {
			s.decoder.Close()
			s.decoder = nil
		}
		s.cache.Reset(s.releasePipeline)
		if s.hw != nil {
			s.hw.Close()
			s.hw = nil
		}
		if s.dev != nil {
			s.dev.Close()
			s.dev = nil
		}
		s.cache.Close()
		s.setState(Closed, nil)
	})
	return nil
}

func (s *Session) closeRecording() {
	if _, err := s.StopRecording(); err != nil && !errors.Is(err, ErrNotRecording) {
		s.log.Warn("recording closed with error: %v", err)
	}
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	prev := s.state
	if prev == state && err == nil {
		s.mu.Unlock()
		return
	}
	s.state = state
	if state != Connected {
		s.stream = av.StreamInfo{}
	}
	observers := make([]func(StateChange), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	change := StateChange{Previous: prev, Current: state}
	if err != nil {
		change.Err = err.Error()
	}
	s.log.Debug("%s -> %s", prev, state)
	for _, fn := range observers {
		fn(change)
	}
}

func (s *Session) supervise(ctx context.Context) {
	defer s.wg.Done()

	min, max := s.sett.backoff()
	wait := min
	for attempt := 0; ; attempt++ {
		if attempt == 0 {
			s.setState(Connecting, nil)
		} else {
			s.setState(Reconnecting, nil)
		}

		streamed, err := s.run(ctx)
		if ctx.Err() != nil {
			return
		}
		if streamed {
			wait = min
		}
		if errors.Is(err, io.EOF) {
			err = ErrEndOfStream
		}
		s.log.Error("stream failed: %v", err)
		s.setState(Error, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait *= 2; wait > max {
			wait = max
		}
	}
}

// run opens the stream and decodes until it fails, reporting whether any
// packet was read.
func (s *Session) run(ctx context.Context) (bool, error) {
	dmx, err := demux.New(s.backend, s.sett.Demux)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.dmx = dmx
	s.mu.Unlock()

	defer func() {
		s.closeRecording()
		s.mu.Lock()
		s.dmx = nil
		s.mu.Unlock()
		dmx.Close()
	}()

	if err := dmx.Open(ctx, s.sett.Address); err != nil {
		return false, err
	}

	stream := dmx.Stream()
	if err := s.prepareDecoder(stream.Params); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	s.setState(Connected, nil)

	streamed := false
	for {
		pkt, err := dmx.ReadPacket()
		if err != nil {
			return streamed, err
		}
		streamed = true

		s.record(pkt, stream)
		if err := s.decodePacket(pkt); err != nil {
			return streamed, err
		}
	}
}

func (s *Session) sampleFPS(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(time.Second)
	defer t.Stop()

	last := s.frames.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := s.frames.Load()
			s.fps.Store(math.Float64bits(float64(n - last)))
			last = n
		}
	}
}
