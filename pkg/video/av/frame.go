package av

// Texture is a device resident image. Textures attached to decoded frames
// are borrowed from the decoder and are only valid until the next
// ReceiveFrame call, they are never released by the consumer.
type Texture interface {
	Width() int
	Height() int
	Format() PixelFormat
}

// Frame is a decoded image. Software frames carry host planes, hardware
// frames carry a borrowed Texture and the array slice it lives in.
type Frame struct {
	Width         int
	Height        int
	Format        PixelFormat
	PTS           int64
	BestEffortPTS int64
	Planes        [][]byte
	Strides       []int
	Texture       Texture
	Slice         int
}

func (f *Frame) IsHardware() bool {
	return f.Texture != nil
}

// Reset clears the frame for reuse by the next ReceiveFrame.
func (f *Frame) Reset() {
	*f = Frame{PTS: NoPTS, BestEffortPTS: NoPTS}
}
