package gpu

import (
	"image"
	"sync"

	"github.com/tauraamui/dragoneye/pkg/video/av"
	"golang.org/x/image/draw"
)

// NewHostDevice returns a device backed by host memory. It runs the same
// pipeline as a real GPU so the software decode path and tests share it.
func NewHostDevice() Device {
	return &hostDevice{}
}

type hostDevice struct {
	mu     sync.Mutex
	mapped map[Texture]struct{}
}

func (d *hostDevice) Kind() string { return "host" }

func (d *hostDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	if desc.Format != av.PixelFormatBGRA {
		return nil, ErrUnsupportedFormat
	}
	stride := desc.Width * 4
	return &hostTexture{
		width: desc.Width, height: desc.Height, format: desc.Format,
		planes:  [][]byte{make([]byte, stride*desc.Height)},
		strides: []int{stride},
		usage:   desc.Usage,
	}, nil
}

func (d *hostDevice) CreateProcessor(desc ProcessorDesc) (Processor, error) {
	if desc.Output != av.PixelFormatBGRA {
		return nil, ErrUnsupportedFormat
	}
	return &hostProcessor{width: desc.Width, height: desc.Height}, nil
}

func (d *hostDevice) Copy(dst Texture, src av.Texture) error {
	dt, ok := dst.(*hostTexture)
	if !ok {
		return ErrUnsupportedFormat
	}
	st, ok := src.(*hostTexture)
	if !ok || st.format != dt.format {
		return ErrUnsupportedFormat
	}
	if st.width != dt.width || st.height != dt.height {
		return ErrSizeMismatch
	}

	rowBytes := dt.width * 4
	for y := 0; y < dt.height; y++ {
		copy(
			dt.planes[0][y*dt.strides[0]:y*dt.strides[0]+rowBytes],
			st.planes[0][y*st.strides[0]:y*st.strides[0]+rowBytes],
		)
	}
	return nil
}

func (d *hostDevice) Map(tex Texture) (Mapping, error) {
	ht, ok := tex.(*hostTexture)
	if !ok || ht.usage != UsageStaging {
		return Mapping{}, ErrNotMappable
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mapped == nil {
		d.mapped = map[Texture]struct{}{}
	}
	d.mapped[tex] = struct{}{}
	return Mapping{Data: ht.planes[0], Stride: ht.strides[0]}, nil
}

func (d *hostDevice) Unmap(tex Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mapped, tex)
}

func (d *hostDevice) Close() error { return nil }

// WrapHost exposes decoded host planes as a borrowed texture so software
// frames go through the same processor as hardware ones.
func WrapHost(format av.PixelFormat, width, height int, planes [][]byte, strides []int) av.Texture {
	return &hostTexture{
		width: width, height: height, format: format,
		planes: planes, strides: strides,
	}
}

type hostTexture struct {
	width, height int
	format        av.PixelFormat
	planes        [][]byte
	strides       []int
	usage         Usage
}

func (t *hostTexture) Width() int { return t.width }

func (t *hostTexture) Height() int { return t.height }

func (t *hostTexture) Format() av.PixelFormat { return t.format }

func (t *hostTexture) Release() { t.planes = nil }

func (t *hostTexture) Pixels() ([]byte, int) { return t.planes[0], t.strides[0] }

type hostProcessor struct {
	width, height int
	ycbcr         *image.YCbCr
	cb, cr        []byte
	rgba          *image.RGBA
}

func (p *hostProcessor) Process(src av.Texture, _ int, dst Texture) error {
	st, ok := src.(*hostTexture)
	if !ok {
		return ErrUnsupportedFormat
	}
	dt, ok := dst.(*hostTexture)
	if !ok {
		return ErrUnsupportedFormat
	}
	if st.width != p.width || st.height != p.height || dt.width != p.width || dt.height != p.height {
		return ErrSizeMismatch
	}

	if err := p.loadYCbCr(st); err != nil {
		return err
	}

	if p.rgba == nil {
		p.rgba = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	}
	draw.Draw(p.rgba, p.rgba.Bounds(), p.ycbcr, image.Point{}, draw.Src)

	out, outStride := dt.Pixels()
	for y := 0; y < p.height; y++ {
		srcRow := p.rgba.Pix[y*p.rgba.Stride : y*p.rgba.Stride+p.width*4]
		dstRow := out[y*outStride : y*outStride+p.width*4]
		for x := 0; x < len(srcRow); x += 4 {
			dstRow[x+0] = srcRow[x+2]
			dstRow[x+1] = srcRow[x+1]
			dstRow[x+2] = srcRow[x+0]
			dstRow[x+3] = 0xff
		}
	}
	return nil
}

func (p *hostProcessor) loadYCbCr(t *hostTexture) error {
	switch t.format {
	case av.PixelFormatYUV420P, av.PixelFormatYUVJ420P:
		if len(t.planes) < 3 {
			return ErrUnsupportedFormat
		}
		p.ycbcr = &image.YCbCr{
			Y: t.planes[0], Cb: t.planes[1], Cr: t.planes[2],
			YStride: t.strides[0], CStride: t.strides[1],
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           image.Rect(0, 0, t.width, t.height),
		}
	case av.PixelFormatNV12:
		if len(t.planes) < 2 {
			return ErrUnsupportedFormat
		}
		p.deinterleaveNV12(t)
	default:
		return ErrUnsupportedFormat
	}
	return nil
}

func (p *hostProcessor) deinterleaveNV12(t *hostTexture) {
	cw, ch := (t.width+1)/2, (t.height+1)/2
	if len(p.cb) != cw*ch {
		p.cb = make([]byte, cw*ch)
		p.cr = make([]byte, cw*ch)
	}

	uv, uvStride := t.planes[1], t.strides[1]
	for y := 0; y < ch; y++ {
		row := uv[y*uvStride:]
		for x := 0; x < cw; x++ {
			p.cb[y*cw+x] = row[x*2]
			p.cr[y*cw+x] = row[x*2+1]
		}
	}

	p.ycbcr = &image.YCbCr{
		Y: t.planes[0], Cb: p.cb, Cr: p.cr,
		YStride: t.strides[0], CStride: cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, t.width, t.height),
	}
}

func (p *hostProcessor) Release() {
	p.ycbcr = nil
	p.cb, p.cr = nil, nil
	p.rgba = nil
}
