package av

// Buffer holds a packet payload. Ref returns a new reference to the same
// payload which must be released independently.
type Buffer interface {
	Bytes() []byte
	Ref() (Buffer, error)
	Release()
}

// Packet is one compressed unit of the video elementary stream. Packets
// returned by a demuxer are reused on the next read, Clone before
// keeping one beyond that.
type Packet struct {
	Seq         uint64
	StreamIndex int
	PTS         int64
	DTS         int64
	Duration    int64
	Pos         int64
	Keyframe    bool
	buf         Buffer
}

// NewPacket wraps data in a packet with undefined timestamps.
func NewPacket(data []byte) *Packet {
	return &Packet{PTS: NoPTS, DTS: NoPTS, Pos: -1, buf: BytesBuffer(data)}
}

func (p *Packet) Data() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

func (p *Packet) Size() int {
	return len(p.Data())
}

func (p *Packet) Buffer() Buffer {
	return p.buf
}

// SetBuffer replaces the payload, releasing the previous one.
func (p *Packet) SetBuffer(b Buffer) {
	if p.buf != nil {
		p.buf.Release()
	}
	p.buf = b
}

// Clone returns a packet with the same fields holding its own reference
// to the payload.
func (p *Packet) Clone() (*Packet, error) {
	c := *p
	c.buf = nil
	if p.buf != nil {
		ref, err := p.buf.Ref()
		if err != nil {
			return nil, err
		}
		c.buf = ref
	}
	return &c, nil
}

func (p *Packet) Release() {
	if p.buf != nil {
		p.buf.Release()
		p.buf = nil
	}
}

// BytesBuffer is an immutable in memory payload.
type BytesBuffer []byte

func (b BytesBuffer) Bytes() []byte { return b }

func (b BytesBuffer) Ref() (Buffer, error) { return b, nil }

func (b BytesBuffer) Release() {}
