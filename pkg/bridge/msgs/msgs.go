// Package msgs defines the protobuf messages carrying bus traffic off the bus.
package msgs

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/instrbus/pkg/bus"
)

// PacketMsg is a bus packet.
type PacketMsg struct {
	SenderCategory uint32 `protobuf:"varint,1,opt,name=sender_category,json=senderCategory,proto3" json:"sender_category,omitempty"`
	SenderAddress  uint32 `protobuf:"varint,2,opt,name=sender_address,json=senderAddress,proto3" json:"sender_address,omitempty"`
	DestCategory   uint32 `protobuf:"varint,3,opt,name=dest_category,json=destCategory,proto3" json:"dest_category,omitempty"`
	DestAddress    uint32 `protobuf:"varint,4,opt,name=dest_address,json=destAddress,proto3" json:"dest_address,omitempty"`
	Payload        []byte `protobuf:"bytes,5,opt,name=payload,proto3" json:"payload,omitempty"`
}

// Reset implements proto.Message.
func (m *PacketMsg) Reset() { *m = PacketMsg{} }

// String implements proto.Message.
func (m *PacketMsg) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*PacketMsg) ProtoMessage() {}

// SignalMsg is an ACK or NACK seen on the bus.
type SignalMsg struct {
	Ack bool `protobuf:"varint,1,opt,name=ack,proto3" json:"ack,omitempty"`
}

// Reset implements proto.Message.
func (m *SignalMsg) Reset() { *m = SignalMsg{} }

// String implements proto.Message.
func (m *SignalMsg) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*SignalMsg) ProtoMessage() {}

// ErrFieldRange indicates a header field doesn't fit in a byte.
type ErrFieldRange struct {
	Field string
	Value uint32
}

// Error implements error.
func (e *ErrFieldRange) Error() string {
	return fmt.Sprintf("%s out of range: %d", e.Field, e.Value)
}

// FromPacket converts a bus packet.
func FromPacket(pkt *bus.Packet) *PacketMsg {
	return &PacketMsg{
		SenderCategory: uint32(pkt.SenderCategory),
		SenderAddress:  uint32(pkt.SenderAddress),
		DestCategory:   uint32(pkt.DestCategory),
		DestAddress:    uint32(pkt.DestAddress),
		Payload:        pkt.Payload,
	}
}

// Packet converts back to a bus packet.
func (m *PacketMsg) Packet() (*bus.Packet, error) {
	fields := []struct {
		name  string
		value uint32
	}{
		{"sender_category", m.SenderCategory},
		{"sender_address", m.SenderAddress},
		{"dest_category", m.DestCategory},
		{"dest_address", m.DestAddress},
	}
	for _, f := range fields {
		if f.value > 0xff {
			return nil, &ErrFieldRange{Field: f.name, Value: f.value}
		}
	}
	pkt := bus.NewPacket(
		bus.DeviceCategory(m.SenderCategory), bus.Address(m.SenderAddress),
		bus.DeviceCategory(m.DestCategory), bus.Address(m.DestAddress))
	if len(m.Payload) > 0 {
		pkt.Payload = append([]byte(nil), m.Payload...)
	}
	return pkt, nil
}

// FromSignal converts a bus signal.
func FromSignal(sig bus.Signal) *SignalMsg {
	return &SignalMsg{Ack: sig == bus.SignalAck}
}

// EncodePacket serializes a bus packet.
func EncodePacket(pkt *bus.Packet) ([]byte, error) {
	return proto.Marshal(FromPacket(pkt))
}

// DecodePacket deserializes a bus packet.
func DecodePacket(data []byte) (*bus.Packet, error) {
	var m PacketMsg
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m.Packet()
}

// EncodeSignal serializes a bus signal.
func EncodeSignal(sig bus.Signal) ([]byte, error) {
	return proto.Marshal(FromSignal(sig))
}

// DecodeSignal deserializes a bus signal.
func DecodeSignal(data []byte) (bus.Signal, error) {
	var m SignalMsg
	if err := proto.Unmarshal(data, &m); err != nil {
		return 0, err
	}
	if m.Ack {
		return bus.SignalAck, nil
	}
	return bus.SignalNack, nil
}
