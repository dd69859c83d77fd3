package gpu

import (
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/xerror"
)

// Device is a single GPU device and its immediate context. It is not safe
// for concurrent command submission, callers serialise all use of it.
type Device interface {
	Kind() string
	CreateTexture(TextureDesc) (Texture, error)
	CreateProcessor(ProcessorDesc) (Processor, error)
	Copy(dst Texture, src av.Texture) error
	Map(Texture) (Mapping, error)
	Unmap(Texture)
	Close() error
}

// HardwareDevice can be bound to a decoder so frames are decoded straight
// into its memory. Acquire returns a new reference to the native device
// handle, released by calling release exactly once.
type HardwareDevice interface {
	Device
	HardwareType() string
	Acquire() (handle interface{}, release func(), err error)
}

// Texture is a texture owned by whoever created it.
type Texture interface {
	av.Texture
	Release()
}

type Usage int

const (
	UsageRenderTarget Usage = iota
	UsageStaging
)

type TextureDesc struct {
	Width, Height int
	Format        av.PixelFormat
	Usage         Usage
}

type ProcessorDesc struct {
	Width, Height int
	Output        av.PixelFormat
}

// Processor converts decoded textures into its output format.
type Processor interface {
	Process(src av.Texture, slice int, dst Texture) error
	Release()
}

// Mapping is a CPU view of a staging texture, valid until Unmap.
type Mapping struct {
	Data   []byte
	Stride int
}

var (
	ErrUnsupportedFormat = xerror.New("unsupported pixel format")
	ErrSizeMismatch      = xerror.New("texture dimensions do not match")
	ErrNotMappable       = xerror.New("texture is not a staging texture")
)
