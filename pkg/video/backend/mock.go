package backend

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	mockWidth         = 640
	mockHeight        = 360
	mockTicksPerFrame = 3600
	mockGOPSize       = 25

	// MockHardwareType is the device kind the mock backend opens as a
	// hardware device. Opening it with the name MockHardwareUnavailable
	// makes decoders bound to it fail to open.
	MockHardwareType        = "mockhw"
	MockHardwareUnavailable = "unavailable"

	// native codes reported the way FFmpeg reports them
	codeExit        = -1414092869
	codeInvalidData = -1094995529
	codeAgain       = -11
)

var mockTimeBase = av.NewRational(1, 90000)

// mockParams marks codec parameters produced by the mock input.
type mockParams struct{}

type mockBackend struct{}

func (*mockBackend) Name() string { return "mock" }

func (*mockBackend) NewInput() (Input, error) {
	return newMockInput(), nil
}

func (*mockBackend) OpenDecoder(params av.CodecParameters, cfg DecoderConfig) (CodecContext, error) {
	if _, ok := params.Native.(mockParams); !ok {
		return nil, ErrForeignParams
	}
	if cfg.Hardware == MockHardwareUnavailable {
		return nil, xerror.Errorf("%s: no hardware decoder for %s: %w", cfg.HardwareType, params.Codec, ErrUnsupported)
	}
	return &mockDecoder{width: params.Width, height: params.Height}, nil
}

func (*mockBackend) CreateMuxer(path string) (Muxer, error) {
	return &mockMuxer{path: path}, nil
}

func (*mockBackend) OpenDevice(kind, name string) (gpu.Device, error) {
	switch kind {
	case "", "host":
		return gpu.NewHostDevice(), nil
	case MockHardwareType:
		return &mockHardwareDevice{Device: gpu.NewHostDevice(), name: name}, nil
	}
	return nil, xerror.Errorf("%s: %w", kind, ErrUnsupported)
}

// mockHardwareDevice reports itself as hardware so decoders can be bound
// to it, while processing on the host. The mock decoder still produces
// software frames on it.
type mockHardwareDevice struct {
	gpu.Device
	name string
}

func (d *mockHardwareDevice) Kind() string { return MockHardwareType }

func (d *mockHardwareDevice) HardwareType() string { return MockHardwareType }

func (d *mockHardwareDevice) Acquire() (interface{}, func(), error) {
	return d.name, func() {}, nil
}

func (*mockBackend) NewConverter(int, int, av.PixelFormat, av.PixelFormat) (Converter, error) {
	return nil, ErrUnsupported
}

// mockInput produces a synthetic stream at 25 frames per second. The url
// host "offline" never opens, query params "frames" and "interval" end the
// stream after n packets and change the packet pacing, and "corrupt" makes
// the first n packets truncated so decoders reject them.
type mockInput struct {
	mu          sync.Mutex
	interrupted chan struct{}

	opened   bool
	frames   int
	corrupt  int
	interval time.Duration
	read     int
}

func newMockInput() *mockInput {
	return &mockInput{interrupted: make(chan struct{}), interval: 40 * time.Millisecond}
}

func (in *mockInput) Open(addr string, _ map[string]string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return mediaerr.NewNative("opening "+addr, codeInvalidData, "Invalid data found when processing input", err)
	}

	if u.Hostname() == "offline" {
		<-in.interruptChan()
		return in.exitErr("opening " + addr)
	}

	q := u.Query()
	if n, err := strconv.Atoi(q.Get("frames")); err == nil {
		in.frames = n
	}
	if n, err := strconv.Atoi(q.Get("corrupt")); err == nil {
		in.corrupt = n
	}
	if d, err := time.ParseDuration(q.Get("interval")); err == nil {
		in.interval = d
	}
	in.opened = true
	return nil
}

func (in *mockInput) FindStreamInfo() error {
	if !in.opened {
		return xerror.New("input is not open")
	}
	return nil
}

func (in *mockInput) VideoStream() (av.StreamInfo, error) {
	if !in.opened {
		return av.StreamInfo{}, ErrNoVideoStream
	}
	return av.StreamInfo{
		Index: 0,
		Params: av.CodecParameters{
			Codec:  "mock",
			Width:  mockWidth,
			Height: mockHeight,
			Format: av.PixelFormatYUV420P,
			Native: mockParams{},
		},
		TimeBase:  mockTimeBase,
		FrameRate: av.NewRational(25, 1),
	}, nil
}

func (in *mockInput) ReadPacket(pkt *av.Packet) error {
	if in.frames > 0 && in.read >= in.frames {
		return io.EOF
	}

	select {
	case <-in.interruptChan():
		return in.exitErr("reading packet")
	case <-time.After(in.interval):
	}

	n := in.read
	in.read++

	payload := make([]byte, 9)
	binary.BigEndian.PutUint64(payload, uint64(n))
	if n%mockGOPSize == 0 {
		payload[8] = 1
	}
	keyframe := payload[8] == 1
	if n < in.corrupt {
		payload, keyframe = payload[:4], false
	}

	pkt.SetBuffer(av.BytesBuffer(payload))
	pkt.StreamIndex = 0
	pkt.PTS = int64(n) * mockTicksPerFrame
	pkt.DTS = pkt.PTS
	pkt.Duration = mockTicksPerFrame
	pkt.Pos = -1
	pkt.Keyframe = keyframe
	return nil
}

func (in *mockInput) interruptChan() chan struct{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.interrupted
}

func (in *mockInput) exitErr(op string) error {
	return mediaerr.NewNative(op, codeExit, "Immediate exit requested", nil)
}

func (in *mockInput) Interrupt() {
	in.mu.Lock()
	defer in.mu.Unlock()
	select {
	case <-in.interrupted:
	default:
		close(in.interrupted)
	}
}

func (in *mockInput) Resume() {
	in.mu.Lock()
	defer in.mu.Unlock()
	select {
	case <-in.interrupted:
		in.interrupted = make(chan struct{})
	default:
	}
}

func (in *mockInput) Close() error {
	in.opened = false
	return nil
}

// mockDecoder renders a test card for every packet it accepts. Payloads
// shorter than a mock packet are rejected as corrupt.
type mockDecoder struct {
	width, height int
	base          *image.RGBA
	pending       []av.Packet
	planes        [][]byte
}

func (d *mockDecoder) SendPacket(pkt *av.Packet) error {
	if pkt.Size() < 9 {
		return mediaerr.NewNative("sending packet", codeInvalidData, "Invalid data found when processing input", nil)
	}
	if len(d.pending) > 0 {
		return mediaerr.NewNative("sending packet", codeAgain, "Resource temporarily unavailable", av.ErrAgain)
	}
	d.pending = append(d.pending, av.Packet{PTS: pkt.PTS, DTS: pkt.DTS, Seq: binary.BigEndian.Uint64(pkt.Data())})
	return nil
}

func (d *mockDecoder) ReceiveFrame(f *av.Frame) error {
	if len(d.pending) == 0 {
		return mediaerr.NewNative("receiving frame", codeAgain, "Resource temporarily unavailable", av.ErrAgain)
	}
	p := d.pending[0]
	d.pending = d.pending[1:]

	if d.base == nil {
		d.base = renderBaseFrameCanvas(d.width, d.height)
	}
	img, err := drawTextLayerOntoBaseFrameClone(d.base, fmt.Sprintf("FRAME %d", p.Seq))
	if err != nil {
		return err
	}
	d.planes = toYUV420P(img, d.planes)

	cw := (d.width + 1) / 2
	f.Width, f.Height = d.width, d.height
	f.Format = av.PixelFormatYUV420P
	f.PTS = p.PTS
	f.BestEffortPTS = p.DTS
	f.Planes = d.planes
	f.Strides = []int{d.width, cw, cw}
	f.Texture, f.Slice = nil, 0
	return nil
}

func (d *mockDecoder) Flush() { d.pending = nil }

func (d *mockDecoder) HardwareFormat() av.PixelFormat { return av.PixelFormatNone }

func (d *mockDecoder) Close() error {
	d.base, d.pending, d.planes = nil, nil, nil
	return nil
}

// mockMuxer writes one text line per packet so tests can read back what
// a recording would have contained.
type mockMuxer struct {
	path     string
	timeBase av.Rational
	added    bool
	file     afero.File
	w        *bufio.Writer
}

func (m *mockMuxer) AddStream(params av.CodecParameters, tb av.Rational) error {
	if _, ok := params.Native.(mockParams); !ok {
		return ErrForeignParams
	}
	m.timeBase, m.added = tb, true
	return nil
}

func (m *mockMuxer) WriteHeader() (av.Rational, error) {
	if !m.added {
		return av.Rational{}, xerror.New("no output stream")
	}
	f, err := fs.Create(m.path)
	if err != nil {
		return av.Rational{}, xerror.Errorf("opening %s: %w", m.path, err)
	}
	m.file, m.w = f, bufio.NewWriter(f)
	if _, err := fmt.Fprintf(m.w, "mock %s\n", m.timeBase); err != nil {
		return av.Rational{}, err
	}
	return m.timeBase, nil
}

func (m *mockMuxer) WritePacket(pkt *av.Packet) error {
	if m.w == nil {
		return xerror.New("header not written")
	}
	_, err := fmt.Fprintf(m.w, "%d %d %d %t %d\n", pkt.PTS, pkt.DTS, pkt.Duration, pkt.Keyframe, pkt.Size())
	return err
}

func (m *mockMuxer) WriteTrailer() error {
	if m.w == nil {
		return xerror.New("header not written")
	}
	if _, err := m.w.WriteString("end\n"); err != nil {
		return err
	}
	return m.w.Flush()
}

func (m *mockMuxer) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file, m.w = nil, nil
	return err
}

func toYUV420P(img *image.RGBA, planes [][]byte) [][]byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := (w+1)/2, (h+1)/2
	if len(planes) != 3 || len(planes[0]) != w*h {
		planes = [][]byte{make([]byte, w*h), make([]byte, cw*ch), make([]byte, cw*ch)}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			planes[0][y*w+x] = yy
			if x%2 == 0 && y%2 == 0 {
				planes[1][(y/2)*cw+x/2] = cb
				planes[2][(y/2)*cw+x/2] = cr
			}
		}
	}
	return planes
}

func drawTextLayerOntoBaseFrameClone(base image.Image, caption string) (*image.RGBA, error) {
	baseClone := cloneImage(base)
	err := drawText(baseClone, 5, 50, "DRAGONEYE_MOCK_STREAM")
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto mock frame: %w", err)
	}
	err = drawText(baseClone, 5, 180, caption)
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto mock frame: %w", err)
	}
	return baseClone, nil
}

func renderBaseFrameCanvas(w, h int) *image.RGBA {
	var hw, hh float64 = float64(w / 2), float64(h / 2)
	r := float64(h) / 2
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), float64(h) * 0.75}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), float64(h) * 0.75}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), float64(h) * 0.75}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}
	return img
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

var (
	fontOnce sync.Once
	fontFace *truetype.Font
	fontErr  error
)

func drawText(canvas *image.RGBA, x, y int, text string) error {
	fontOnce.Do(func() {
		fontFace, fontErr = freetype.ParseFont(goregular.TTF)
	})
	if fontErr != nil {
		return fontErr
	}

	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: image.White,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    48,
			Hinting: font.HintingFull,
		}),
	}
	textBounds, _ := fontDrawer.BoundString(text)
	textHeight := textBounds.Max.Y - textBounds.Min.Y
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y-textHeight.Ceil())/2 + fixed.I(textHeight.Ceil()),
	}
	fontDrawer.DrawString(text)
	return nil
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	if math.Sqrt(dx*dx+dy*dy)/c.R > 1 {
		return 0
	}
	return 255
}
