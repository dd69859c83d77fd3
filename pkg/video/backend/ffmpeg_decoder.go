package backend

import (
	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/xerror"
)

type ffmpegDecoder struct {
	cc       *astiav.CodecContext
	frame    *astiav.Frame
	pkt      *astiav.Packet
	hwFormat astiav.PixelFormat
	host     *hostPlanes
	c        *astikit.Closer
}

func openFFmpegDecoder(params av.CodecParameters, cfg DecoderConfig) (*ffmpegDecoder, error) {
	cp, ok := params.Native.(*astiav.CodecParameters)
	if !ok {
		return nil, ErrForeignParams
	}

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, xerror.Errorf("no decoder available for codec %s", cp.CodecID())
	}

	d := &ffmpegDecoder{c: astikit.NewCloser(), hwFormat: astiav.PixelFormatNone}
	d.cc = astiav.AllocCodecContext(codec)
	if d.cc == nil {
		return nil, xerror.New("unable to allocate codec context")
	}
	d.c.Add(d.cc.Free)

	if err := cp.ToCodecContext(d.cc); err != nil {
		d.c.Close()
		return nil, nativeErr("copying codec parameters", err)
	}

	if cfg.Threads > 0 {
		d.cc.SetThreadCount(cfg.Threads)
	}
	if cfg.LowDelay {
		d.cc.SetFlags(d.cc.Flags().Add(astiav.CodecContextFlagLowDelay))
	}

	if cfg.Hardware != nil {
		if err := d.attachHardware(codec, cfg); err != nil {
			d.c.Close()
			return nil, err
		}
	}

	if err := d.cc.Open(codec, nil); err != nil {
		d.c.Close()
		return nil, nativeErr("opening decoder", err)
	}

	d.frame = astiav.AllocFrame()
	d.c.Add(d.frame.Free)
	d.pkt = astiav.AllocPacket()
	d.c.Add(d.pkt.Free)
	d.host = &hostPlanes{}
	d.c.Add(d.host.free)
	return d, nil
}

func (d *ffmpegDecoder) attachHardware(codec *astiav.Codec, cfg DecoderConfig) error {
	hdc, ok := cfg.Hardware.(*astiav.HardwareDeviceContext)
	if !ok {
		return ErrForeignParams
	}

	deviceType := astiav.FindHardwareDeviceTypeByName(cfg.HardwareType)
	for _, hc := range codec.HardwareConfigs() {
		if hc.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) && hc.HardwareDeviceType() == deviceType {
			d.hwFormat = hc.PixelFormat()
			break
		}
	}
	if d.hwFormat == astiav.PixelFormatNone {
		return xerror.Errorf("decoder %s does not support %s hardware decoding", codec.Name(), cfg.HardwareType)
	}

	d.cc.SetHardwareDeviceContext(hdc)
	hardware := fromPixelFormat(d.hwFormat)
	d.cc.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		offered := make([]av.PixelFormat, 0, len(pfs))
		for _, pf := range pfs {
			offered = append(offered, fromPixelFormat(pf))
		}

		chosen := hardware
		if cfg.Negotiate != nil {
			chosen = cfg.Negotiate(offered, hardware)
		}
		for i, pf := range offered {
			if pf == chosen {
				return pfs[i]
			}
		}
		return astiav.PixelFormatNone
	})
	return nil
}

func (d *ffmpegDecoder) SendPacket(pkt *av.Packet) error {
	native, release, err := nativePacket(d.pkt, pkt)
	if err != nil {
		return err
	}
	defer release()
	return nativeErr("sending packet", d.cc.SendPacket(native))
}

func (d *ffmpegDecoder) ReceiveFrame(f *av.Frame) error {
	d.frame.Unref()
	if err := d.cc.ReceiveFrame(d.frame); err != nil {
		return nativeErr("receiving frame", err)
	}

	f.Width = d.frame.Width()
	f.Height = d.frame.Height()
	f.Format = fromPixelFormat(d.frame.PixelFormat())
	f.PTS = d.frame.Pts()
	f.BestEffortPTS = d.frame.PktDts()
	f.Planes, f.Strides, f.Texture, f.Slice = nil, nil, nil, 0

	if d.hwFormat != astiav.PixelFormatNone && d.frame.PixelFormat() == d.hwFormat {
		f.Texture = &frameTexture{f: d.frame}
		return nil
	}

	planes, strides, format, err := d.host.load(d.frame)
	if err != nil {
		return err
	}
	f.Planes, f.Strides, f.Format = planes, strides, format
	return nil
}

func (d *ffmpegDecoder) Flush() {
	d.cc.FlushBuffers()
}

func (d *ffmpegDecoder) HardwareFormat() av.PixelFormat {
	return fromPixelFormat(d.hwFormat)
}

func (d *ffmpegDecoder) Close() error {
	return d.c.Close()
}

// nativePacket returns the astiav packet behind pkt, filling scratch from
// the payload when pkt did not come from an ffmpeg input.
func nativePacket(scratch *astiav.Packet, pkt *av.Packet) (*astiav.Packet, func(), error) {
	if pb, ok := pkt.Buffer().(*packetBuffer); ok && pb.p != nil {
		return pb.p, func() {}, nil
	}

	scratch.Unref()
	if err := scratch.FromData(append([]byte(nil), pkt.Data()...)); err != nil {
		return nil, nil, nativeErr("wrapping packet payload", err)
	}
	scratch.SetPts(pkt.PTS)
	scratch.SetDts(pkt.DTS)
	scratch.SetDuration(pkt.Duration)
	scratch.SetStreamIndex(pkt.StreamIndex)
	if pkt.Keyframe {
		scratch.SetFlags(scratch.Flags().Add(astiav.PacketFlagKey))
	}
	return scratch, scratch.Unref, nil
}

// hostPlanes copies software frames into tightly packed planes, converting
// anything other than 4:2:0 into yuv420p first.
type hostPlanes struct {
	buf    []byte
	ssc    *astiav.SoftwareScaleContext
	scaled *astiav.Frame
	key    [3]int
}

func (h *hostPlanes) load(src *astiav.Frame) ([][]byte, []int, av.PixelFormat, error) {
	format := fromPixelFormat(src.PixelFormat())
	frame := src
	switch format {
	case av.PixelFormatYUV420P, av.PixelFormatYUVJ420P, av.PixelFormatNV12:
	default:
		if err := h.ensureScaler(src); err != nil {
			return nil, nil, "", err
		}
		if err := h.ssc.ScaleFrame(src, h.scaled); err != nil {
			return nil, nil, "", nativeErr("converting frame to yuv420p", err)
		}
		frame, format = h.scaled, av.PixelFormatYUV420P
	}

	n, err := frame.ImageBufferSize(1)
	if err != nil {
		return nil, nil, "", nativeErr("sizing frame buffer", err)
	}
	if cap(h.buf) < n {
		h.buf = make([]byte, n)
	}
	h.buf = h.buf[:n]
	if _, err := frame.ImageCopyToBuffer(h.buf, 1); err != nil {
		return nil, nil, "", nativeErr("copying frame", err)
	}

	w, ht := frame.Width(), frame.Height()
	cw, ch := (w+1)/2, (ht+1)/2
	if format == av.PixelFormatNV12 {
		return [][]byte{h.buf[:w*ht], h.buf[w*ht:]}, []int{w, cw * 2}, format, nil
	}
	return [][]byte{
		h.buf[:w*ht],
		h.buf[w*ht : w*ht+cw*ch],
		h.buf[w*ht+cw*ch:],
	}, []int{w, cw, cw}, format, nil
}

func (h *hostPlanes) ensureScaler(src *astiav.Frame) error {
	key := [3]int{src.Width(), src.Height(), int(src.PixelFormat())}
	if h.ssc != nil && key == h.key {
		return nil
	}
	h.free()

	ssc, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		src.Width(), src.Height(), astiav.PixelFormatYuv420P,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return nativeErr("creating software scaler", err)
	}

	scaled := astiav.AllocFrame()
	scaled.SetWidth(src.Width())
	scaled.SetHeight(src.Height())
	scaled.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := scaled.AllocBuffer(1); err != nil {
		scaled.Free()
		ssc.Free()
		return nativeErr("allocating scaled frame", err)
	}

	h.ssc, h.scaled, h.key = ssc, scaled, key
	return nil
}

func (h *hostPlanes) free() {
	if h.scaled != nil {
		h.scaled.Free()
		h.scaled = nil
	}
	if h.ssc != nil {
		h.ssc.Free()
		h.ssc = nil
	}
}
