package camera

import (
	"errors"

	"github.com/tauraamui/dragoneye/pkg/video/av"
	"github.com/tauraamui/dragoneye/pkg/video/decode"
	"github.com/tauraamui/dragoneye/pkg/video/framecache"
	"github.com/tauraamui/dragoneye/pkg/video/gpu"
	"github.com/tauraamui/dragoneye/pkg/video/hwaccel"
	"github.com/tauraamui/dragoneye/pkg/video/snapshot"
)

// prepareDecoder reuses the decoder across reconnects to the same stream
// layout, flushing what it buffered from the previous connection.
func (s *Session) prepareDecoder(params av.CodecParameters) error {
	if s.decoder != nil {
		if sameLayout(s.decoded, params) {
			s.decoder.Flush()
			return nil
		}
		s.decoder.Close()
		s.decoder = nil
	}

	if s.dev == nil {
		s.openDevice()
	}

	var opts []decode.Option
	if s.sett.Demux.LowLatency {
		opts = append(opts, decode.LowDelay())
	}

	d, err := decode.Open(s.backend, params, s.sett.Threads, s.hw, opts...)
	if err != nil && s.hw != nil {
		s.log.Warn("hardware decoding unavailable, decoding in software: %v", err)
		s.useHost()
		d, err = decode.Open(s.backend, params, s.sett.Threads, nil, opts...)
	}
	if err != nil {
		return err
	}

	s.decoder, s.decoded = d, params
	return nil
}

func sameLayout(a, b av.CodecParameters) bool {
	return a.Codec == b.Codec && a.Width == b.Width && a.Height == b.Height && a.Format == b.Format
}

func (s *Session) openDevice() {
	dev, err := s.backend.OpenDevice(s.sett.Hardware, s.sett.HardwareDevice)
	if err != nil {
		s.log.Warn("unable to open %s device, using host: %v", s.sett.Hardware, err)
		dev = gpu.NewHostDevice()
	}

	if _, ok := dev.(gpu.HardwareDevice); ok {
		hw, err := hwaccel.New(dev)
		if err != nil {
			s.log.Warn("unable to use %s for decoding, using host: %v", dev.Kind(), err)
			dev.Close()
			dev = gpu.NewHostDevice()
		} else {
			s.hw = hw
		}
	}
	s.useDevice(dev)
}

// useDevice swaps the processing device under the frame lock so readers
// never see textures from a released pipeline.
func (s *Session) useDevice(dev gpu.Device) {
	s.cache.Reset(func() {
		s.releasePipeline()
		if s.dev != nil && s.dev != dev {
			s.dev.Close()
		}
		s.dev = dev
		s.devKind.Store(dev.Kind())
		s.proc = gpu.NewFrameProcessor(dev)
		s.encoder = snapshot.New(dev, s.backend, s.images)
	})
}

func (s *Session) useHost() {
	if s.hw != nil {
		s.hw.Close()
		s.hw = nil
	}
	s.useDevice(gpu.NewHostDevice())
}

func (s *Session) releasePipeline() {
	if s.proc != nil {
		s.proc.Close()
		s.proc = nil
	}
	if s.encoder != nil {
		s.encoder.Close()
		s.encoder = nil
	}
}

func (s *Session) decodePacket(pkt *av.Packet) error {
	for {
		accepted, err := s.decoder.SendPacket(pkt)
		if err != nil {
			if errors.Is(err, decode.ErrTooManyFailures) {
				return err
			}
			s.log.Debug("%v", err)
			return nil
		}

		s.drain()
		if accepted {
			return nil
		}
	}
}

func (s *Session) drain() {
	for {
		ok, err := s.decoder.ReceiveFrame(&s.frame)
		if err != nil {
			s.log.Debug("%v", err)
			return
		}
		if !ok {
			return
		}
		s.frames.Add(1)
		s.present(&s.frame)
	}
}

// present converts f into the cache's output texture. Software frames are
// wrapped as host textures, moving processing to the host if a hardware
// decoder fell back to software output.
func (s *Session) present(f *av.Frame) {
	src, slice := f.Texture, f.Slice
	if !f.IsHardware() {
		if s.dev.Kind() != "host" {
			s.log.Warn("decoder produced %s frames, processing on the host", f.Format)
			s.useHost()
		}
		src, slice = gpu.WrapHost(f.Format, f.Width, f.Height, f.Planes, f.Strides), 0
	}

	err := s.cache.Update(func(current *framecache.Frame) error {
		err := s.proc.ProcessFrame(src, slice, f.Width, f.Height)
		*current = framecache.Frame{
			Texture: s.proc.OutputTexture(),
			Width:   s.proc.OutputWidth(),
			Height:  s.proc.OutputHeight(),
		}
		return err
	})
	if err != nil {
		s.log.Warn("unable to process frame: %v", err)
	}
}
