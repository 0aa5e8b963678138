package bus

import (
	"fmt"
	"io"
)

// Wire byte values.
const (
	START byte = 0x01
	END   byte = 0x04
	ACK   byte = 0x06
	NACK  byte = 0x15

	msnMarker  byte = 0x20
	lsnMarker  byte = 0x30
	markerMask byte = 0xf0
	nibbleMask byte = 0x0f
)

// headerLen is the number of header bytes before the payload.
const headerLen = 4

// ProtocolCommand is the command code conventionally carried in the
// first payload byte. The codec never looks at it.
type ProtocolCommand byte

// CommandOpen asks the shutter to open.
const CommandOpen ProtocolCommand = 0x07

// Packet is the unit of application data exchanged on the bus.
type Packet struct {
	SenderCategory DeviceCategory
	SenderAddress  Address
	DestCategory   DeviceCategory
	DestAddress    Address
	Payload        []byte
}

// NewPacket creates a packet with the header set and an empty payload.
func NewPacket(senderCategory DeviceCategory, senderAddress Address, destCategory DeviceCategory, destAddress Address) *Packet {
	return &Packet{
		SenderCategory: senderCategory,
		SenderAddress:  senderAddress,
		DestCategory:   destCategory,
		DestAddress:    destAddress,
	}
}

// Append appends payload bytes.
func (p *Packet) Append(data ...byte) *Packet {
	p.Payload = append(p.Payload, data...)
	return p
}

// Command returns the command code in the first payload byte.
func (p *Packet) Command() (ProtocolCommand, bool) {
	if len(p.Payload) == 0 {
		return 0, false
	}
	return ProtocolCommand(p.Payload[0]), true
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	return &c
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s/%d -> %s/%d [% x]",
		p.SenderCategory, p.SenderAddress, p.DestCategory, p.DestAddress, p.Payload)
}

// FrameLen is the length of the wire frame of the packet.
func (p *Packet) FrameLen() int {
	return 2 + 2*(headerLen+len(p.Payload))
}

func (p *Packet) header() [headerLen]byte {
	return [headerLen]byte{
		byte(p.SenderCategory),
		byte(p.SenderAddress),
		byte(p.DestCategory),
		byte(p.DestAddress),
	}
}

// Bytes returns the encoded wire frame.
func (p *Packet) Bytes() []byte {
	b := make([]byte, 0, p.FrameLen())
	b = append(b, START)
	hdr := p.header()
	for _, v := range hdr {
		b = appendNibbles(b, v)
	}
	for _, v := range p.Payload {
		b = appendNibbles(b, v)
	}
	return append(b, END)
}

// WriteTo writes the encoded wire frame in a single Write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// Encode encodes the packet into a wire frame.
func Encode(p *Packet) []byte {
	return p.Bytes()
}

func appendNibbles(b []byte, v byte) []byte {
	return append(b, msnMarker|(v>>4)&nibbleMask, lsnMarker|v&nibbleMask)
}

// Decode maps reassembled frame bytes onto a packet by position.
// Category values are taken as-is.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < headerLen {
		return nil, ErrShortFrame
	}
	pkt := &Packet{
		SenderCategory: DeviceCategory(buf[0]),
		SenderAddress:  Address(buf[1]),
		DestCategory:   DeviceCategory(buf[2]),
		DestAddress:    Address(buf[3]),
	}
	if len(buf) > headerLen {
		pkt.Payload = append([]byte(nil), buf[headerLen:]...)
	}
	return pkt, nil
}

// DecodeFrame decodes the first complete frame found in wire bytes.
func DecodeFrame(wire []byte) (*Packet, error) {
	var parser Parser
	var drop DropReason
	for _, b := range wire {
		pr := parser.Parse(b)
		switch pr.Event {
		case EventPacket:
			return pr.Packet, nil
		case EventDropped:
			drop = pr.Drop
		}
	}
	if drop == DropShortFrame {
		return nil, ErrShortFrame
	}
	return nil, ErrNoFrame
}
