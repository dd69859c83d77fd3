package framecache

import (
	"sync"

	"github.com/tauraamui/dragoneye/pkg/video/gpu"
)

// Frame is the latest processed output texture and its size.
type Frame struct {
	Texture gpu.Texture
	Width   int
	Height  int
}

func (f Frame) Valid() bool {
	return f.Texture != nil && f.Width > 0 && f.Height > 0
}

// Cache holds the most recently published frame. Its lock also serialises
// every GPU command issued against frame data, since the device context
// cannot take concurrent submissions.
//
// Frame ready notifications are posted to a single slot mailbox after the
// lock is released and fanned out to observers from a dispatcher
// goroutine, so observers can read the cache and cannot stall the writer.
type Cache struct {
	mu      sync.Mutex
	current Frame

	observersMu sync.Mutex
	observers   map[int]func()
	nextID      int

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

func New() *Cache {
	c := &Cache{
		observers: map[int]func(){},
		ready:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Publish runs produce under the cache lock and stores its result. The
// previous frame is kept when produce fails.
func (c *Cache) Publish(produce func() (Frame, error)) error {
	return c.Update(func(current *Frame) error {
		frame, err := produce()
		if err != nil {
			return err
		}
		*current = frame
		return nil
	})
}

// Update runs fn with the current frame under the cache lock. fn may
// replace the frame even when it fails, for writers whose failure has
// already released the texture the cache points at. Observers are only
// notified of successful updates.
func (c *Cache) Update(fn func(current *Frame) error) error {
	c.mu.Lock()
	err := fn(&c.current)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.notify()
	return nil
}

// TryGetCurrentFrame copies out the current frame, reporting whether it
// is usable.
func (c *Cache) TryGetCurrentFrame() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.current
	return f, f.Valid()
}

// WithFrame runs fn against the current frame while holding the lock, for
// consumers that issue GPU commands such as present or snapshot copies.
func (c *Cache) WithFrame(fn func(Frame) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.current)
}

// Reset drops the current frame, used before its texture is released.
func (c *Cache) Reset(release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Frame{}
	if release != nil {
		release()
	}
}

// OnFrameReady registers fn for frame ready notifications. Bursts of
// publishes may coalesce into a single call.
func (c *Cache) OnFrameReady(fn func()) (unsubscribe func()) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	return func() {
		c.observersMu.Lock()
		defer c.observersMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Cache) notify() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func (c *Cache) dispatch() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case <-c.ready:
			c.observersMu.Lock()
			observers := make([]func(), 0, len(c.observers))
			for _, fn := range c.observers {
				observers = append(observers, fn)
			}
			c.observersMu.Unlock()

			for _, fn := range observers {
				fn()
			}
		}
	}
}

// Close stops the dispatcher and waits for in flight notifications.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.stopped
	})
}
