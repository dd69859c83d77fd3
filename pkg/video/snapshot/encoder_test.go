package snapshot_test

import (
	"bytes"
	"errors"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/backend"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

type stagingCountingDevice struct {
	gpu.Device
	created int
}

func (d *stagingCountingDevice) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	d.created++
	return d.Device.CreateTexture(desc)
}

type converterBackend struct {
	backend.Backend
	err       error
	converted int
}

func (b *converterBackend) NewConverter(w, h int, from, to av.PixelFormat) (backend.Converter, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &fillConverter{b: b}, nil
}

type fillConverter struct {
	b *converterBackend
}

func (c *fillConverter) Convert(dst, _ []byte, _ int) error {
	c.b.converted++
	for i := range dst {
		dst[i] = 0x80
	}
	return nil
}

func (c *fillConverter) Close() {}

// bgraFrame builds a frame with a padded stride, left half red and right
// half blue.
func bgraFrame(w, h int) av.Texture {
	stride := w*4 + 16
	pix := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := y*stride + x*4
			if x < w/2 {
				pix[o], pix[o+1], pix[o+2], pix[o+3] = 0x00, 0x00, 0xff, 0xff
			} else {
				pix[o], pix[o+1], pix[o+2], pix[o+3] = 0xff, 0x00, 0x00, 0xff
			}
		}
	}
	return gpu.WrapHost(av.PixelFormatBGRA, w, h, [][]byte{pix}, []int{stride})
}

func goEncoder(t *testing.T, format snapshot.Format) snapshot.ImageEncoder {
	enc, err := snapshot.NewImageEncoder("go", format, 0)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func TestCapturePNGKeepsColoursAndChannelOrder(t *testing.T) {
	is := is.New(t)

	enc := snapshot.New(gpu.NewHostDevice(), nil, goEncoder(t, snapshot.PNG))
	b, err := enc.Capture(bgraFrame(8, 4), 8, 4)
	is.NoErr(err)

	img, err := png.Decode(bytes.NewReader(b))
	is.NoErr(err)
	is.Equal(img.Bounds().Dx(), 8)
	is.Equal(img.Bounds().Dy(), 4)
	is.Equal(color.RGBAModel.Convert(img.At(0, 0)), color.RGBA{R: 0xff, A: 0xff})
	is.Equal(color.RGBAModel.Convert(img.At(7, 3)), color.RGBA{B: 0xff, A: 0xff})
}

func TestCaptureJPEGDecodes(t *testing.T) {
	is := is.New(t)

	enc := snapshot.New(gpu.NewHostDevice(), nil, goEncoder(t, snapshot.JPEG))
	b, err := enc.Capture(bgraFrame(16, 16), 16, 16)
	is.NoErr(err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(b))
	is.NoErr(err)
	is.Equal(cfg.Width, 16)
	is.Equal(enc.Format(), snapshot.JPEG)
}

func TestStagingRecreatedOnlyWhenSizeChanges(t *testing.T) {
	is := is.New(t)

	dev := &stagingCountingDevice{Device: gpu.NewHostDevice()}
	enc := snapshot.New(dev, nil, goEncoder(t, snapshot.PNG))

	for i := 0; i < 3; i++ {
		_, err := enc.Capture(bgraFrame(8, 4), 8, 4)
		is.NoErr(err)
	}
	is.Equal(dev.created, 1)

	_, err := enc.Capture(bgraFrame(4, 2), 4, 2)
	is.NoErr(err)
	is.Equal(dev.created, 2)
}

func TestCaptureWithoutFrame(t *testing.T) {
	is := is.New(t)

	enc := snapshot.New(gpu.NewHostDevice(), nil, goEncoder(t, snapshot.PNG))
	_, err := enc.Capture(nil, 8, 4)
	is.True(errors.Is(err, snapshot.ErrNoFrame))
	_, err = enc.Capture(bgraFrame(8, 4), 0, 4)
	is.True(errors.Is(err, snapshot.ErrNoFrame))
}

func TestCaptureSizeMismatchIsGPUError(t *testing.T) {
	is := is.New(t)

	enc := snapshot.New(gpu.NewHostDevice(), nil, goEncoder(t, snapshot.PNG))
	_, err := enc.Capture(bgraFrame(8, 4), 16, 8)
	is.True(err != nil)
	is.Equal(err.Error(), "Kind: GPU | copying 16x8 frame to staging: texture dimensions do not match")
}

func TestBackendConverterPreferredWhenAvailable(t *testing.T) {
	is := is.New(t)

	b := &converterBackend{}
	enc := snapshot.New(gpu.NewHostDevice(), b, goEncoder(t, snapshot.PNG))
	out, err := enc.Capture(bgraFrame(8, 4), 8, 4)
	is.NoErr(err)
	is.Equal(b.converted, 1)

	img, err := png.Decode(bytes.NewReader(out))
	is.NoErr(err)
	is.Equal(color.RGBAModel.Convert(img.At(0, 0)), color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff})
}

func TestUnsupportedBackendConverterFallsBack(t *testing.T) {
	is := is.New(t)

	b := &converterBackend{err: backend.ErrUnsupported}
	enc := snapshot.New(gpu.NewHostDevice(), b, goEncoder(t, snapshot.PNG))
	out, err := enc.Capture(bgraFrame(8, 4), 8, 4)
	is.NoErr(err)

	img, err := png.Decode(bytes.NewReader(out))
	is.NoErr(err)
	is.Equal(color.RGBAModel.Convert(img.At(0, 0)), color.RGBA{R: 0xff, A: 0xff})
}

func TestNewImageEncoderRejectsUnknown(t *testing.T) {
	is := is.New(t)

	_, err := snapshot.NewImageEncoder("go", snapshot.Format("gif"), 0)
	is.Equal(err.Error(), `unknown snapshot format "gif"`)

	_, err = snapshot.NewImageEncoder("imagemagick", snapshot.PNG, 0)
	is.Equal(err.Error(), `unknown snapshot encoder "imagemagick"`)

	enc, err := snapshot.NewImageEncoder("opencv", snapshot.JPEG, 0)
	is.NoErr(err)
	is.Equal(enc.Order(), av.PixelFormatBGR24)
}
