package backend

import (
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/xerror"
)

type ffmpegInput struct {
	fc     *astiav.FormatContext
	ii     *astiav.IOInterrupter
	pkt    *astiav.Packet
	stream *astiav.Stream
	c      *astikit.Closer
}

func newFFmpegInput() (*ffmpegInput, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, xerror.New("unable to allocate format context")
	}

	in := &ffmpegInput{fc: fc, pkt: astiav.AllocPacket(), ii: astiav.NewIOInterrupter(), c: astikit.NewCloser()}
	in.c.Add(in.ii.Free)
	in.c.Add(fc.Free)
	in.c.Add(in.pkt.Free)

	// the interrupter must be attached before opening, FFmpeg polls it
	// from inside every blocking network call
	fc.SetIOInterrupter(in.ii)
	return in, nil
}

func (in *ffmpegInput) Open(url string, options map[string]string) error {
	dict := astiav.NewDictionary()
	defer dict.Free()
	for k, v := range options {
		if err := dict.Set(k, v, 0); err != nil {
			return nativeErr("setting option "+k, err)
		}
	}

	if err := in.fc.OpenInput(url, nil, dict); err != nil {
		return nativeErr("opening input", err)
	}
	in.c.Add(in.fc.CloseInput)
	return nil
}

func (in *ffmpegInput) FindStreamInfo() error {
	if err := in.fc.FindStreamInfo(nil); err != nil {
		return nativeErr("probing stream info", err)
	}
	return nil
}

func (in *ffmpegInput) VideoStream() (av.StreamInfo, error) {
	s, _, err := in.fc.FindBestStream(astiav.MediaTypeVideo, -1, -1)
	if err != nil || s == nil {
		return av.StreamInfo{}, ErrNoVideoStream
	}
	in.stream = s
	cp := s.CodecParameters()

	frameRate := in.fc.GuessFrameRate(s, nil)
	if frameRate.Num() <= 0 || frameRate.Den() <= 0 {
		frameRate = s.AvgFrameRate()
	}

	return av.StreamInfo{
		Index: s.Index(),
		Params: av.CodecParameters{
			Codec:  cp.CodecID().String(),
			Width:  cp.Width(),
			Height: cp.Height(),
			Format: fromPixelFormat(cp.PixelFormat()),
			Native: cp,
		},
		TimeBase:  fromRational(s.TimeBase()),
		FrameRate: fromRational(frameRate),
	}, nil
}

// ReadPacket reuses a single native packet, the payload handed out is a
// borrowed view of it until the next read.
func (in *ffmpegInput) ReadPacket(pkt *av.Packet) error {
	in.pkt.Unref()
	if err := in.fc.ReadFrame(in.pkt); err != nil {
		if isEOF(err) {
			return io.EOF
		}
		return nativeErr("reading packet", err)
	}

	pkt.StreamIndex = in.pkt.StreamIndex()
	pkt.PTS = in.pkt.Pts()
	pkt.DTS = in.pkt.Dts()
	pkt.Duration = in.pkt.Duration()
	pkt.Pos = in.pkt.Pos()
	pkt.Keyframe = in.pkt.Flags().Has(astiav.PacketFlagKey)
	pkt.SetBuffer(&packetBuffer{p: in.pkt})
	return nil
}

func (in *ffmpegInput) Interrupt() {
	in.ii.Interrupt()
}

func (in *ffmpegInput) Resume() {
	in.ii.Resume()
}

func (in *ffmpegInput) Close() error {
	return in.c.Close()
}

// packetBuffer is a native packet payload. Borrowed buffers belong to the
// input and are never freed through the buffer.
type packetBuffer struct {
	p     *astiav.Packet
	owned bool
}

func (b *packetBuffer) Bytes() []byte {
	return b.p.Data()
}

func (b *packetBuffer) Ref() (av.Buffer, error) {
	ref := astiav.AllocPacket()
	if err := ref.Ref(b.p); err != nil {
		ref.Free()
		return nil, nativeErr("referencing packet", err)
	}
	return &packetBuffer{p: ref, owned: true}, nil
}

func (b *packetBuffer) Release() {
	if b.owned && b.p != nil {
		b.p.Free()
		b.p = nil
	}
}
