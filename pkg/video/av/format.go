package av

import "errors"

// PixelFormat is named the way the native library names it.
type PixelFormat string

const (
	PixelFormatNone     PixelFormat = ""
	PixelFormatNV12     PixelFormat = "nv12"
	PixelFormatYUV420P  PixelFormat = "yuv420p"
	PixelFormatYUVJ420P PixelFormat = "yuvj420p"
	PixelFormatBGRA     PixelFormat = "bgra"
	PixelFormatRGB24    PixelFormat = "rgb24"
	PixelFormatBGR24    PixelFormat = "bgr24"

	PixelFormatVAAPI        PixelFormat = "vaapi"
	PixelFormatCUDA         PixelFormat = "cuda"
	PixelFormatD3D11        PixelFormat = "d3d11"
	PixelFormatDXVA2        PixelFormat = "dxva2_vld"
	PixelFormatQSV          PixelFormat = "qsv"
	PixelFormatVideoToolbox PixelFormat = "videotoolbox_vld"
	PixelFormatVulkan       PixelFormat = "vulkan"
	PixelFormatDRMPrime     PixelFormat = "drm_prime"
)

var hardwareFormats = map[PixelFormat]struct{}{
	PixelFormatVAAPI:        {},
	PixelFormatCUDA:         {},
	PixelFormatD3D11:        {},
	PixelFormatDXVA2:        {},
	PixelFormatQSV:          {},
	PixelFormatVideoToolbox: {},
	PixelFormatVulkan:       {},
	PixelFormatDRMPrime:     {},
}

// IsHardware reports whether frames in this format live in device memory.
func (f PixelFormat) IsHardware() bool {
	_, ok := hardwareFormats[f]
	return ok
}

func (f PixelFormat) String() string {
	if f == PixelFormatNone {
		return "none"
	}
	return string(f)
}

var (
	ErrAgain = errors.New("resource temporarily unavailable")
	ErrEOF   = errors.New("end of stream")
)

// CodecParameters describe the video elementary stream. Native holds the
// backend's own parameters so they can be copied verbatim.
type CodecParameters struct {
	Codec  string
	Width  int
	Height int
	Format PixelFormat
	Native interface{}
}

type StreamInfo struct {
	Index     int
	Params    CodecParameters
	TimeBase  Rational
	FrameRate Rational
}
