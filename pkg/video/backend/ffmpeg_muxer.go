package backend

import (
	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/xerror"
)

type ffmpegMuxer struct {
	path   string
	fc     *astiav.FormatContext
	stream *astiav.Stream
	pkt    *astiav.Packet
	c      *astikit.Closer
}

func newFFmpegMuxer(path string) (*ffmpegMuxer, error) {
	fc, err := astiav.AllocOutputFormatContext(nil, "", path)
	if err != nil {
		return nil, nativeErr("allocating output context for "+path, err)
	}
	if fc == nil {
		return nil, xerror.Errorf("unable to guess container for %s", path)
	}

	m := &ffmpegMuxer{path: path, fc: fc, pkt: astiav.AllocPacket(), c: astikit.NewCloser()}
	m.c.Add(fc.Free)
	m.c.Add(m.pkt.Free)
	return m, nil
}

func (m *ffmpegMuxer) AddStream(params av.CodecParameters, tb av.Rational) error {
	if m.stream != nil {
		return xerror.New("output stream already added")
	}
	cp, ok := params.Native.(*astiav.CodecParameters)
	if !ok {
		return ErrForeignParams
	}

	s := m.fc.NewStream(nil)
	if s == nil {
		return xerror.New("unable to create output stream")
	}
	if err := cp.Copy(s.CodecParameters()); err != nil {
		return nativeErr("copying codec parameters", err)
	}
	s.CodecParameters().SetCodecTag(0)
	s.SetTimeBase(toRational(tb))
	m.stream = s
	return nil
}

// WriteHeader opens the file and returns the time base the container
// settled on, which may differ from the one requested.
func (m *ffmpegMuxer) WriteHeader() (av.Rational, error) {
	if m.stream == nil {
		return av.Rational{}, xerror.New("no output stream")
	}

	if !m.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		pb, err := astiav.OpenIOContext(m.path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return av.Rational{}, nativeErr("opening "+m.path, err)
		}
		m.c.Add(func() { pb.Close() })
		m.fc.SetPb(pb)
	}

	if err := m.fc.WriteHeader(nil); err != nil {
		return av.Rational{}, nativeErr("writing header", err)
	}
	return fromRational(m.stream.TimeBase()), nil
}

func (m *ffmpegMuxer) WritePacket(pkt *av.Packet) error {
	m.pkt.Unref()
	if pb, ok := pkt.Buffer().(*packetBuffer); ok && pb.p != nil {
		if err := m.pkt.Ref(pb.p); err != nil {
			return nativeErr("referencing packet", err)
		}
	} else if err := m.pkt.FromData(append([]byte(nil), pkt.Data()...)); err != nil {
		return nativeErr("wrapping packet payload", err)
	}

	m.pkt.SetPts(pkt.PTS)
	m.pkt.SetDts(pkt.DTS)
	m.pkt.SetDuration(pkt.Duration)
	m.pkt.SetStreamIndex(m.stream.Index())
	m.pkt.SetPos(-1)
	flags := astiav.NewPacketFlags()
	if pkt.Keyframe {
		flags = flags.Add(astiav.PacketFlagKey)
	}
	m.pkt.SetFlags(flags)

	return nativeErr("writing packet", m.fc.WriteInterleavedFrame(m.pkt))
}

func (m *ffmpegMuxer) WriteTrailer() error {
	return nativeErr("writing trailer", m.fc.WriteTrailer())
}

func (m *ffmpegMuxer) Close() error {
	return m.c.Close()
}
