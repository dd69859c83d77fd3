package backend

import (
	"github.com/asticode/go-astiav"
	"github.com/tauraamui/dragoneye/pkg/video/av"
)

// ffmpegConverter repacks BGRA pixels with swscale.
type ffmpegConverter struct {
	width, height int
	ssc           *astiav.SoftwareScaleContext
	src, dst      *astiav.Frame
}

func newFFmpegConverter(width, height int, from, to av.PixelFormat) (*ffmpegConverter, error) {
	sf, df := toPixelFormat(from), toPixelFormat(to)
	if sf == astiav.PixelFormatNone || df == astiav.PixelFormatNone {
		return nil, ErrUnsupported
	}

	ssc, err := astiav.CreateSoftwareScaleContext(width, height, sf, width, height, df, astiav.NewSoftwareScaleContextFlags())
	if err != nil {
		return nil, nativeErr("creating converter", err)
	}

	c := &ffmpegConverter{width: width, height: height, ssc: ssc}
	c.src, c.dst = astiav.AllocFrame(), astiav.AllocFrame()
	for _, f := range []struct {
		frame *astiav.Frame
		pf    astiav.PixelFormat
	}{{c.src, sf}, {c.dst, df}} {
		f.frame.SetWidth(width)
		f.frame.SetHeight(height)
		f.frame.SetPixelFormat(f.pf)
		if err := f.frame.AllocBuffer(1); err != nil {
			c.Close()
			return nil, nativeErr("allocating conversion buffer", err)
		}
	}
	return c, nil
}

func (c *ffmpegConverter) Convert(dst, src []byte, srcStride int) error {
	packed := src
	if rowLen := c.width * 4; srcStride != rowLen {
		packed = make([]byte, 0, rowLen*c.height)
		for y := 0; y < c.height; y++ {
			packed = append(packed, src[y*srcStride:y*srcStride+rowLen]...)
		}
	}
	if err := c.src.Data().SetBytes(packed, 1); err != nil {
		return nativeErr("loading conversion source", err)
	}
	if err := c.ssc.ScaleFrame(c.src, c.dst); err != nil {
		return nativeErr("converting frame", err)
	}
	b, err := c.dst.Data().Bytes(1)
	if err != nil {
		return nativeErr("reading converted frame", err)
	}
	copy(dst, b)
	return nil
}

func (c *ffmpegConverter) Close() {
	if c.src != nil {
		c.src.Free()
	}
	if c.dst != nil {
		c.dst.Free()
	}
	c.ssc.Free()
}

func toPixelFormat(pf av.PixelFormat) astiav.PixelFormat {
	switch pf {
	case av.PixelFormatBGRA:
		return astiav.PixelFormatBgra
	case av.PixelFormatRGB24:
		return astiav.PixelFormatRgb24
	case av.PixelFormatBGR24:
		return astiav.PixelFormatBgr24
	case av.PixelFormatYUV420P:
		return astiav.PixelFormatYuv420P
	case av.PixelFormatNV12:
		return astiav.PixelFormatNv12
	default:
		return astiav.PixelFormatNone
	}
}
