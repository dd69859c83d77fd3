package process

import (
	"sync"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/camera"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/remux"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

func overloadFs(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func overloadErrorLog(overload func(string, ...interface{})) func() {
	logErrorRef := log.Error
	log.Error = overload
	return func() { log.Error = logErrorRef }
}

func overloadInfoLog(overload func(string, ...interface{})) func() {
	logInfoRef := log.Info
	log.Info = overload
	return func() { log.Info = logInfoRef }
}

type fakeCamera struct {
	mu        sync.Mutex
	title     string
	state     camera.State
	recording bool
	started   []string
	rotated   []string
	stopped   int
	startErr  error
	rotateErr error
	image     []byte
	format    snapshot.Format
}

func (c *fakeCamera) Title() string { return c.title }

func (c *fakeCamera) State() camera.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeCamera) Stats() camera.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return camera.Stats{State: c.state, Recording: c.recording}
}

func (c *fakeCamera) StartRecording(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = append(c.started, path)
	c.recording = true
	return nil
}

func (c *fakeCamera) RotateRecording(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rotateErr != nil {
		return c.rotateErr
	}
	c.rotated = append(c.rotated, path)
	return nil
}

func (c *fakeCamera) StopRecording() (remux.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return remux.Summary{}, camera.ErrNotRecording
	}
	c.recording = false
	c.stopped++
	return remux.Summary{}, nil
}

func (c *fakeCamera) CaptureFrame() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.image, c.image != nil
}

func (c *fakeCamera) SnapshotFormat() snapshot.Format {
	return c.format
}

func (c *fakeCamera) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = camera.Reconnecting
	c.recording = false
}
