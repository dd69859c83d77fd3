package framecache_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/framecache"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
)

type sizedTexture struct {
	w, h int
}

func (t *sizedTexture) Width() int { return t.w }

func (t *sizedTexture) Height() int { return t.h }

func (t *sizedTexture) Format() av.PixelFormat { return av.PixelFormatBGRA }

func (t *sizedTexture) Release() {}

func publish(c *framecache.Cache, w, h int) error {
	return c.Publish(func() (framecache.Frame, error) {
		return framecache.Frame{Texture: &sizedTexture{w, h}, Width: w, Height: h}, nil
	})
}

func TestTryGetCurrentFrameInvalidBeforePublish(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	frame, ok := c.TryGetCurrentFrame()
	assert.False(t, ok)
	assert.Nil(t, frame.Texture)
}

func TestTryGetCurrentFrameValidAfterPublish(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	require.NoError(t, publish(c, 1920, 1080))
	frame, ok := c.TryGetCurrentFrame()
	require.True(t, ok)
	assert.Equal(t, 1920, frame.Width)
	assert.Equal(t, 1080, frame.Height)
}

func TestPublishFailureKeepsPreviousFrame(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	require.NoError(t, publish(c, 640, 480))
	err := c.Publish(func() (framecache.Frame, error) {
		return framecache.Frame{}, errors.New("device lost")
	})
	assert.EqualError(t, err, "device lost")

	frame, ok := c.TryGetCurrentFrame()
	require.True(t, ok)
	assert.Equal(t, 640, frame.Width)
}

func TestZeroSizedFrameIsInvalid(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	require.NoError(t, publish(c, 0, 480))
	_, ok := c.TryGetCurrentFrame()
	assert.False(t, ok)
}

func TestConcurrentPublishAndReadNeverTears(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	sizes := [][2]int{{1920, 1080}, {1280, 720}, {640, 360}}
	wg := sync.WaitGroup{}
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			s := sizes[i%len(sizes)]
			_ = publish(c, s[0], s[1])
		}
	}()

	torn := 0
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			frame, ok := c.TryGetCurrentFrame()
			if !ok {
				continue
			}
			if frame.Texture.Width() != frame.Width || frame.Texture.Height() != frame.Height {
				torn++
			}
		}
	}()

	wg.Wait()
	assert.Zero(t, torn)
}

func TestFrameReadyObserverCanReadCacheWithoutDeadlock(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	seen := make(chan framecache.Frame, 1)
	unsubscribe := c.OnFrameReady(func() {
		frame, ok := c.TryGetCurrentFrame()
		if ok {
			select {
			case seen <- frame:
			default:
			}
		}
	})
	defer unsubscribe()

	require.NoError(t, publish(c, 320, 240))

	select {
	case frame := <-seen:
		assert.Equal(t, 320, frame.Width)
	case <-time.After(time.Second):
		t.Fatal("frame ready notification was not delivered")
	}
}

func TestSlowObserverDoesNotBlockPublisher(t *testing.T) {
	c := framecache.New()

	block := make(chan struct{})
	c.OnFrameReady(func() { <-block })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = publish(c, 16, 16)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher was blocked by observer")
	}

	close(block)
	c.Close()
}

func TestUnsubscribedObserverIsNotCalled(t *testing.T) {
	c := framecache.New()

	calls := make(chan struct{}, 10)
	unsubscribe := c.OnFrameReady(func() { calls <- struct{}{} })
	unsubscribe()

	require.NoError(t, publish(c, 16, 16))
	c.Close()
	assert.Len(t, calls, 0)
}

func TestResetInvalidatesFrameBeforeRelease(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	require.NoError(t, publish(c, 16, 16))

	released := false
	c.Reset(func() {
		released = true
	})
	assert.True(t, released)

	_, ok := c.TryGetCurrentFrame()
	assert.False(t, ok)
}

var _ gpu.Texture = &sizedTexture{}

func TestUpdateFailureCanDropReleasedFrame(t *testing.T) {
	c := framecache.New()
	defer c.Close()

	notified := make(chan struct{}, 1)
	c.OnFrameReady(func() { notified <- struct{}{} })
	require.NoError(t, publish(c, 640, 480))
	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("observer not notified of publish")
	}

	err := c.Update(func(current *framecache.Frame) error {
		*current = framecache.Frame{}
		return errors.New("creating 1280x720 output texture: out of memory")
	})
	assert.Error(t, err)

	_, ok := c.TryGetCurrentFrame()
	assert.False(t, ok)
	select {
	case <-notified:
		t.Fatal("observer notified of failed update")
	case <-time.After(50 * time.Millisecond):
	}
}
