package hwaccel

import (
	"sync"

	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
)

var (
	ErrNotHardware = xerror.New("device does not support hardware decoding")
	ErrClosed      = xerror.New("hardware context is closed")
)

// Context binds a GPU device to decoders. It holds its own reference to
// the native device handle for its whole life, and every attached decoder
// holds one more. The handle is released once the context is closed and
// the last decoder has detached.
type Context struct {
	mu       sync.Mutex
	dev      gpu.HardwareDevice
	handle   interface{}
	release  func()
	attached int
	closed   bool
}

func New(dev gpu.Device) (*Context, error) {
	hw, ok := dev.(gpu.HardwareDevice)
	if !ok {
		return nil, xerror.Errorf("%s: %w", dev.Kind(), ErrNotHardware)
	}

	handle, release, err := hw.Acquire()
	if err != nil {
		return nil, mediaerr.Wrap(mediaerr.Open, err, "initialising %s hardware device", hw.HardwareType())
	}

	return &Context{dev: hw, handle: handle, release: release}, nil
}

func (c *Context) DeviceType() string {
	return c.dev.HardwareType()
}

func (c *Context) Device() gpu.HardwareDevice {
	return c.dev
}

// Handle is the opaque native device handle decoders attach to.
func (c *Context) Handle() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Attach records a decoder's reference. The returned detach must be called
// when the decoder is torn down, further calls are ignored.
func (c *Context) Attach() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.attached++

	var once sync.Once
	return func() {
		once.Do(c.detach)
	}, nil
}

func (c *Context) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached--
	c.releaseIfUnused()
}

func (c *Context) Attached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.releaseIfUnused()
	return nil
}

func (c *Context) releaseIfUnused() {
	if !c.closed || c.attached > 0 || c.release == nil {
		return
	}
	c.release()
	c.release = nil
	c.handle = nil
}
