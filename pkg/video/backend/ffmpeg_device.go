package backend

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
)

// ffmpegDevice is a hardware device context created by FFmpeg. Textures
// are native frames, hardware surfaces for render targets and host
// buffers for staging.
type ffmpegDevice struct {
	kind string
	hdc  *astiav.HardwareDeviceContext

	mu     sync.Mutex
	refs   int
	closed bool
}

func openFFmpegDevice(kind, name string) (*ffmpegDevice, error) {
	t := astiav.FindHardwareDeviceTypeByName(kind)
	if t == astiav.HardwareDeviceTypeNone {
		return nil, xerror.Errorf("%s: %w", kind, ErrHardwareNotFound)
	}

	hdc, err := astiav.CreateHardwareDeviceContext(t, name, nil, 0)
	if err != nil {
		return nil, nativeErr(fmt.Sprintf("creating %s device", kind), err)
	}
	return &ffmpegDevice{kind: kind, hdc: hdc, refs: 1}, nil
}

func (d *ffmpegDevice) Kind() string { return d.kind }

func (d *ffmpegDevice) HardwareType() string { return d.kind }

// Acquire hands out a counted reference, the native context is freed once
// the device is closed and every reference is released.
func (d *ffmpegDevice) Acquire() (interface{}, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, xerror.New("device is closed")
	}
	d.refs++

	var once sync.Once
	return d.hdc, func() { once.Do(d.unref) }, nil
}

func (d *ffmpegDevice) unref() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs--
	if d.refs == 0 && d.hdc != nil {
		d.hdc.Free()
		d.hdc = nil
	}
}

func (d *ffmpegDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	d.unref()
	return nil
}

func (d *ffmpegDevice) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	f := astiav.AllocFrame()
	t := &frameTexture{f: f, owned: true, width: desc.Width, height: desc.Height, format: desc.Format}
	if desc.Usage != gpu.UsageStaging {
		return t, nil
	}

	f.SetWidth(desc.Width)
	f.SetHeight(desc.Height)
	f.SetPixelFormat(stagingFormat(d.kind))
	if err := f.AllocBuffer(1); err != nil {
		f.Free()
		return nil, nativeErr("allocating staging texture", err)
	}
	return t, nil
}

func (d *ffmpegDevice) CreateProcessor(desc gpu.ProcessorDesc) (gpu.Processor, error) {
	if desc.Output != av.PixelFormatBGRA {
		return nil, gpu.ErrUnsupportedFormat
	}
	return &filterProcessor{filter: scaleFilter(d.kind, desc.Width, desc.Height)}, nil
}

// Copy reads a texture back into a staging texture.
func (d *ffmpegDevice) Copy(dst gpu.Texture, src av.Texture) error {
	dt, ok := dst.(*frameTexture)
	if !ok {
		return gpu.ErrUnsupportedFormat
	}
	st, ok := src.(*frameTexture)
	if !ok {
		return gpu.ErrUnsupportedFormat
	}
	if st.Width() != dt.Width() || st.Height() != dt.Height() {
		return gpu.ErrSizeMismatch
	}

	if st.f.HardwareFramesContext() != nil {
		return nativeErr("downloading texture", st.f.TransferHardwareData(dt.f))
	}
	b, err := st.f.Data().Bytes(1)
	if err != nil {
		return nativeErr("reading texture", err)
	}
	return nativeErr("copying texture", dt.f.Data().SetBytes(b, 1))
}

func (d *ffmpegDevice) Map(tex gpu.Texture) (gpu.Mapping, error) {
	t, ok := tex.(*frameTexture)
	if !ok || t.f == nil {
		return gpu.Mapping{}, gpu.ErrNotMappable
	}
	b, err := t.f.Data().Bytes(1)
	if err != nil {
		return gpu.Mapping{}, nativeErr("mapping texture", err)
	}
	return gpu.Mapping{Data: b, Stride: t.f.Width() * 4}, nil
}

func (d *ffmpegDevice) Unmap(gpu.Texture) {}

// scaleFilter converts on the device where FFmpeg has a filter for it.
// videotoolbox scales on the device but has no format conversion, and
// d3d11va, dxva2 and drm have no scale filter at all, so those surfaces
// are downloaded and converted on the host.
func scaleFilter(kind string, w, h int) string {
	switch kind {
	case "cuda":
		return fmt.Sprintf("scale_cuda=w=%d:h=%d:format=bgr0", w, h)
	case "vaapi":
		return fmt.Sprintf("scale_vaapi=w=%d:h=%d:format=bgra", w, h)
	case "qsv":
		return fmt.Sprintf("vpp_qsv=w=%d:h=%d:format=bgra", w, h)
	case "vulkan":
		return fmt.Sprintf("scale_vulkan=w=%d:h=%d:format=bgra", w, h)
	case "videotoolbox":
		return fmt.Sprintf("scale_vt=w=%d:h=%d,hwdownload,format=nv12,format=bgra", w, h)
	default:
		return fmt.Sprintf("hwdownload,format=nv12,scale=w=%d:h=%d,format=bgra", w, h)
	}
}

// stagingFormat is the readback layout of a processed surface. bgr0 shares
// the BGRA byte order with an unused fourth byte.
func stagingFormat(kind string) astiav.PixelFormat {
	if kind == "cuda" {
		return astiav.PixelFormatBgr0
	}
	return astiav.PixelFormatBgra
}

// frameTexture wraps a native frame. Decoder frames are borrowed and never
// freed through the texture.
type frameTexture struct {
	f             *astiav.Frame
	owned         bool
	width, height int
	format        av.PixelFormat
}

func (t *frameTexture) Width() int {
	if t.f != nil && t.f.Width() > 0 {
		return t.f.Width()
	}
	return t.width
}

func (t *frameTexture) Height() int {
	if t.f != nil && t.f.Height() > 0 {
		return t.f.Height()
	}
	return t.height
}

func (t *frameTexture) Format() av.PixelFormat {
	if t.f != nil && t.f.PixelFormat() != astiav.PixelFormatNone {
		return fromPixelFormat(t.f.PixelFormat())
	}
	return t.format
}

func (t *frameTexture) Release() {
	if t.owned && t.f != nil {
		t.f.Free()
		t.f = nil
	}
}

// filterProcessor runs a filter graph built from the first frame it sees,
// since the buffer source needs the decoder's hardware frames context.
type filterProcessor struct {
	filter string
	graph  *astiav.FilterGraph
	src    *astiav.BuffersrcFilterContext
	sink   *astiav.BuffersinkFilterContext
	out    *astiav.Frame
	c      *astikit.Closer
}

func (p *filterProcessor) Process(src av.Texture, _ int, dst gpu.Texture) error {
	st, ok := src.(*frameTexture)
	if !ok {
		return gpu.ErrUnsupportedFormat
	}
	dt, ok := dst.(*frameTexture)
	if !ok {
		return gpu.ErrUnsupportedFormat
	}

	if p.graph == nil {
		if err := p.build(st.f); err != nil {
			p.Release()
			return err
		}
	}

	if err := p.src.AddFrame(st.f, astiav.NewBuffersrcFlags(astiav.BuffersrcFlagKeepRef)); err != nil {
		return nativeErr("feeding filter graph", err)
	}

	p.out.Unref()
	if err := p.sink.GetFrame(p.out, astiav.NewBuffersinkFlags()); err != nil {
		return nativeErr("draining filter graph", err)
	}

	dt.f.Unref()
	return nativeErr("referencing output texture", dt.f.Ref(p.out))
}

func (p *filterProcessor) build(f *astiav.Frame) error {
	p.c = astikit.NewCloser()

	p.graph = astiav.AllocFilterGraph()
	if p.graph == nil {
		return xerror.New("unable to allocate filter graph")
	}
	p.c.Add(p.graph.Free)

	var err error
	if p.src, err = p.graph.NewBuffersrcFilterContext(astiav.FindFilterByName("buffer"), "in"); err != nil {
		return nativeErr("creating buffer source", err)
	}
	if p.sink, err = p.graph.NewBuffersinkFilterContext(astiav.FindFilterByName("buffersink"), "out"); err != nil {
		return nativeErr("creating buffer sink", err)
	}

	params := astiav.AllocBuffersrcFilterContextParameters()
	defer params.Free()
	params.SetWidth(f.Width())
	params.SetHeight(f.Height())
	params.SetPixelFormat(f.PixelFormat())
	params.SetTimeBase(astiav.NewRational(1, 90000))
	params.SetSampleAspectRatio(f.SampleAspectRatio())
	params.SetHardwareFramesContext(f.HardwareFramesContext())
	if err := p.src.SetParameters(params); err != nil {
		return nativeErr("configuring buffer source", err)
	}
	if err := p.src.Initialize(nil); err != nil {
		return nativeErr("initialising buffer source", err)
	}

	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()
	outputs.SetName("in")
	outputs.SetFilterContext(p.src.FilterContext())
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()
	inputs.SetName("out")
	inputs.SetFilterContext(p.sink.FilterContext())
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	if err := p.graph.Parse(p.filter, inputs, outputs); err != nil {
		return nativeErr("parsing filter "+p.filter, err)
	}
	if err := p.graph.Configure(); err != nil {
		return nativeErr("configuring filter graph", err)
	}

	p.out = astiav.AllocFrame()
	p.c.Add(p.out.Free)
	return nil
}

func (p *filterProcessor) Release() {
	if p.c != nil {
		p.c.Close()
	}
	p.graph, p.src, p.sink, p.out, p.c = nil, nil, nil, nil, nil
}
