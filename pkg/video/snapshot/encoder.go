package snapshot

import (
	"errors"

	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
)

var ErrNoFrame = xerror.New("no frame to capture")

// Encoder turns a display texture into a still image. Staging texture,
// pixel converter and buffer are kept while the frame size stays the same.
// Capture issues device work and is called under the frame cache lock.
type Encoder struct {
	dev     gpu.Device
	backend backend.Backend
	image   ImageEncoder

	width, height int
	staging       gpu.Texture
	conv          backend.Converter
	buf           []byte
}

// New builds an encoder reading from dev. b supplies a native pixel
// converter when it has one, nil always uses the built in one.
func New(dev gpu.Device, b backend.Backend, image ImageEncoder) *Encoder {
	return &Encoder{dev: dev, backend: b, image: image}
}

func (e *Encoder) Format() Format {
	return e.image.Format()
}

func (e *Encoder) Capture(src av.Texture, width, height int) ([]byte, error) {
	if src == nil || width <= 0 || height <= 0 {
		return nil, ErrNoFrame
	}

	if err := e.ensure(width, height); err != nil {
		return nil, err
	}

	if err := e.dev.Copy(e.staging, src); err != nil {
		return nil, mediaerr.Wrap(mediaerr.GPU, err, "copying %dx%d frame to staging", width, height)
	}

	m, err := e.dev.Map(e.staging)
	if err != nil {
		return nil, mediaerr.Wrap(mediaerr.GPU, err, "mapping staging texture")
	}
	err = e.conv.Convert(e.buf, m.Data, m.Stride)
	e.dev.Unmap(e.staging)
	if err != nil {
		return nil, xerror.Errorf("converting frame to %s: %w", e.image.Order(), err)
	}

	return e.image.Encode(e.buf, width, height)
}

func (e *Encoder) ensure(width, height int) error {
	if e.staging != nil && e.width == width && e.height == height {
		return nil
	}
	e.release()

	staging, err := e.dev.CreateTexture(gpu.TextureDesc{
		Width: width, Height: height, Format: av.PixelFormatBGRA, Usage: gpu.UsageStaging,
	})
	if err != nil {
		return mediaerr.Wrap(mediaerr.GPU, err, "creating %dx%d staging texture", width, height)
	}

	conv, err := e.newConverter(width, height)
	if err != nil {
		staging.Release()
		return err
	}

	e.staging, e.conv = staging, conv
	e.width, e.height = width, height
	e.buf = make([]byte, width*height*3)
	return nil
}

func (e *Encoder) newConverter(width, height int) (backend.Converter, error) {
	if e.backend != nil {
		conv, err := e.backend.NewConverter(width, height, av.PixelFormatBGRA, e.image.Order())
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, backend.ErrUnsupported) {
			return nil, xerror.Errorf("creating converter: %w", err)
		}
	}
	return newSwizzle(width, height, e.image.Order())
}

func (e *Encoder) release() {
	if e.staging != nil {
		e.staging.Release()
		e.staging = nil
	}
	if e.conv != nil {
		e.conv.Close()
		e.conv = nil
	}
	e.buf = nil
	e.width, e.height = 0, 0
}

func (e *Encoder) Close() {
	e.release()
}

// swizzle drops alpha from BGRA rows, optionally swapping red and blue.
type swizzle struct {
	width, height int
	rgb           bool
}

func newSwizzle(width, height int, to av.PixelFormat) (*swizzle, error) {
	switch to {
	case av.PixelFormatRGB24:
		return &swizzle{width: width, height: height, rgb: true}, nil
	case av.PixelFormatBGR24:
		return &swizzle{width: width, height: height}, nil
	default:
		return nil, xerror.Errorf("converting bgra to %s: %w", to, backend.ErrUnsupported)
	}
}

func (s *swizzle) Convert(dst, src []byte, srcStride int) error {
	if len(dst) < s.width*s.height*3 || len(src) < srcStride*(s.height-1)+s.width*4 {
		return gpu.ErrSizeMismatch
	}

	o := 0
	for y := 0; y < s.height; y++ {
		row := src[y*srcStride:]
		for x := 0; x < s.width; x++ {
			b, g, r := row[x*4], row[x*4+1], row[x*4+2]
			if s.rgb {
				dst[o], dst[o+1], dst[o+2] = r, g, b
			} else {
				dst[o], dst[o+1], dst[o+2] = b, g, r
			}
			o += 3
		}
	}
	return nil
}

func (s *swizzle) Close() {}
