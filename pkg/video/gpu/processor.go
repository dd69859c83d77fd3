package gpu

import (
	"github.com/tauraamui/dragoneye/internal/mediaerr"
	"github.com/tauraamui/dragoneye/pkg/video/av"
)

// FrameProcessor converts decoded textures into display ready BGRA
// textures on its device. The processor and output texture are cached
// for one size and rebuilt only when the size changes.
type FrameProcessor struct {
	dev       Device
	processor Processor
	output    Texture
	width     int
	height    int
}

func NewFrameProcessor(dev Device) *FrameProcessor {
	return &FrameProcessor{dev: dev}
}

// ProcessFrame converts src into the output texture. A failed pipeline
// build leaves the processor empty so the next call retries it.
func (p *FrameProcessor) ProcessFrame(src av.Texture, slice, width, height int) error {
	if p.processor == nil || width != p.width || height != p.height {
		if err := p.rebuild(width, height); err != nil {
			return err
		}
	}

	if err := p.processor.Process(src, slice, p.output); err != nil {
		return mediaerr.Wrap(mediaerr.GPU, err, "processing %dx%d frame", width, height)
	}
	return nil
}

func (p *FrameProcessor) rebuild(width, height int) error {
	p.release()

	processor, err := p.dev.CreateProcessor(ProcessorDesc{
		Width: width, Height: height, Output: av.PixelFormatBGRA,
	})
	if err != nil {
		return mediaerr.Wrap(mediaerr.GPU, err, "creating %dx%d video processor", width, height)
	}

	output, err := p.dev.CreateTexture(TextureDesc{
		Width: width, Height: height, Format: av.PixelFormatBGRA, Usage: UsageRenderTarget,
	})
	if err != nil {
		processor.Release()
		return mediaerr.Wrap(mediaerr.GPU, err, "creating %dx%d output texture", width, height)
	}

	p.processor, p.output = processor, output
	p.width, p.height = width, height
	return nil
}

func (p *FrameProcessor) release() {
	if p.output != nil {
		p.output.Release()
		p.output = nil
	}
	if p.processor != nil {
		p.processor.Release()
		p.processor = nil
	}
	p.width, p.height = 0, 0
}

func (p *FrameProcessor) OutputTexture() Texture { return p.output }

func (p *FrameProcessor) OutputWidth() int { return p.width }

func (p *FrameProcessor) OutputHeight() int { return p.height }

func (p *FrameProcessor) Device() Device { return p.dev }

func (p *FrameProcessor) Close() {
	p.release()
}
