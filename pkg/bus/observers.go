package bus

import (
	"container/list"
	"context"
	"sync"
)

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// Signal is an unframed bus-level acknowledgment.
type Signal byte

// Signals.
const (
	SignalAck  = Signal(ACK)
	SignalNack = Signal(NACK)
)

// String implements fmt.Stringer.
func (s Signal) String() string {
	switch s {
	case SignalAck:
		return "ACK"
	case SignalNack:
		return "NACK"
	}
	return "invalid"
}

// SignalHandler is called when ACK or NACK is received.
type SignalHandler interface {
	HandleSignal(context.Context, Signal)
}

// HandleSignalFunc is func type of SignalHandler.
type HandleSignalFunc func(context.Context, Signal)

// HandleSignal implements SignalHandler.
func (f HandleSignalFunc) HandleSignal(ctx context.Context, sig Signal) {
	f(ctx, sig)
}

// DropHandler is called when malformed input is discarded.
type DropHandler interface {
	HandleDrop(context.Context, DropReason)
}

// HandleDropFunc is func type of DropHandler.
type HandleDropFunc func(context.Context, DropReason)

// HandleDrop implements DropHandler.
func (f HandleDropFunc) HandleDrop(ctx context.Context, reason DropReason) {
	f(ctx, reason)
}

// Registration is a registered observer.
type Registration struct {
	observers *observers
	elm       *list.Element
}

// Close removes the observer. It's safe to call more than once.
func (r *Registration) Close() error {
	r.observers.remove(r)
	return nil
}

// observers is a fan-out point, handlers are called in registration order.
type observers struct {
	lock sync.RWMutex
	lst  list.List
}

func (o *observers) add(h interface{}) *Registration {
	o.lock.Lock()
	defer o.lock.Unlock()
	r := &Registration{observers: o}
	r.elm = o.lst.PushBack(h)
	return r
}

func (o *observers) remove(r *Registration) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if r.elm != nil {
		o.lst.Remove(r.elm)
		r.elm = nil
	}
}

func (o *observers) snapshot() []interface{} {
	o.lock.RLock()
	defer o.lock.RUnlock()
	if o.lst.Len() == 0 {
		return nil
	}
	handlers := make([]interface{}, 0, o.lst.Len())
	for elm := o.lst.Front(); elm != nil; elm = elm.Next() {
		handlers = append(handlers, elm.Value)
	}
	return handlers
}
