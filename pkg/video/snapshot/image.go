package snapshot

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
)

func (f Format) Valid() bool {
	return f == JPEG || f == PNG
}

const DefaultQuality = 90

// ImageEncoder compresses packed 24-bit pixels in the channel order it
// asks for.
type ImageEncoder interface {
	Format() Format
	Order() av.PixelFormat
	Encode(pix []byte, width, height int) ([]byte, error)
}

// NewImageEncoder returns the named encoder, "opencv" or "go".
func NewImageEncoder(name string, format Format, quality int) (ImageEncoder, error) {
	if !format.Valid() {
		return nil, xerror.Errorf("unknown snapshot format %q", format)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	switch name {
	case "", "opencv":
		return &openCVEncoder{format: format, quality: quality}, nil
	case "go":
		return &goEncoder{format: format, quality: quality}, nil
	default:
		return nil, xerror.Errorf("unknown snapshot encoder %q", name)
	}
}

type openCVEncoder struct {
	format  Format
	quality int
}

func (e *openCVEncoder) Format() Format { return e.format }

// Order is BGR, the layout OpenCV matrices hold colour images in.
func (e *openCVEncoder) Order() av.PixelFormat { return av.PixelFormatBGR24 }

func (e *openCVEncoder) Encode(pix []byte, width, height int) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, xerror.Errorf("unable to load frame into OpenCV mat: %w", err)
	}
	defer mat.Close()

	ext, params := gocv.PNGFileExt, []int{}
	if e.format == JPEG {
		ext, params = gocv.JPEGFileExt, []int{int(gocv.IMWriteJpegQuality), e.quality}
	}

	buf, err := gocv.IMEncodeWithParams(ext, mat, params)
	if err != nil {
		return nil, xerror.Errorf("unable to encode frame as %s: %w", e.format, err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

type goEncoder struct {
	format  Format
	quality int
	img     *image.RGBA
}

func (e *goEncoder) Format() Format { return e.format }

func (e *goEncoder) Order() av.PixelFormat { return av.PixelFormatRGB24 }

func (e *goEncoder) Encode(pix []byte, width, height int) ([]byte, error) {
	if len(pix) < width*height*3 {
		return nil, xerror.Errorf("%d bytes is too short for a %dx%d frame", len(pix), width, height)
	}
	if e.img == nil || e.img.Rect.Dx() != width || e.img.Rect.Dy() != height {
		e.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}

	for i, o := 0, 0; i < width*height*3; i, o = i+3, o+4 {
		e.img.Pix[o], e.img.Pix[o+1], e.img.Pix[o+2], e.img.Pix[o+3] = pix[i], pix[i+1], pix[i+2], 0xff
	}

	var out bytes.Buffer
	var err error
	if e.format == JPEG {
		err = jpeg.Encode(&out, e.img, &jpeg.Options{Quality: e.quality})
	} else {
		err = png.Encode(&out, e.img)
	}
	if err != nil {
		return nil, xerror.Errorf("unable to encode frame as %s: %w", e.format, err)
	}
	return out.Bytes(), nil
}
