package mqtt

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/instrbus/pkg/bridge/msgs"
	"github.com/robotalks/instrbus/pkg/bus"
)

// Topic suffixes under <prefix><node>/.
//
//	rx                       received packets, msgs.PacketMsg
//	signal                   received ACK/NACK, msgs.SignalMsg
//	tx                       packets to send, msgs.PacketMsg
//	tx/<category>/<address>  raw payload sent from the bridge's own endpoint
const (
	TopicRx     = "rx"
	TopicSignal = "signal"
	TopicTx     = "tx"
)

// Bridge publishes packets and signals received by a session and sends
// packets published on the tx topics.
type Bridge struct {
	Queue   *Queue
	Session *bus.Session
	Node    string

	// sender of packets built from tx/<category>/<address> messages
	SenderCategory bus.DeviceCategory
	SenderAddress  bus.Address

	regs []*bus.Registration
	subs []*Subscription
}

// NewBridge creates a Bridge.
func NewBridge(q *Queue, s *bus.Session, node string) *Bridge {
	return &Bridge{Queue: q, Session: s, Node: node}
}

// Topic returns the topic (without queue prefix) for a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.Node + "/" + suffix
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// Run implements framework.Runnable. It connects the queue and keeps
// the bridge attached until ctx is done. A failed first connect is
// returned, the client only reconnects after it was connected once.
func (b *Bridge) Run(ctx context.Context) error {
	b.Attach()
	defer b.Detach()
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	<-ctx.Done()
	b.Detach()
	b.Queue.Close()
	return ctx.Err()
}

// Attach registers session observers and subscribes the tx topics.
func (b *Bridge) Attach() {
	b.regs = append(b.regs,
		b.Session.OnPacket(bus.HandlePacketFunc(b.publishPacket)),
		b.Session.OnAck(bus.HandleSignalFunc(b.publishSignal)),
		b.Session.OnNack(bus.HandleSignalFunc(b.publishSignal)),
	)
	b.subs = append(b.subs,
		b.Queue.Sub(b.Topic(TopicTx), b.handleTx),
		b.Queue.Sub(b.Topic(TopicTx)+"/+/+", b.handleTxTo),
	)
}

// Detach reverts Attach.
func (b *Bridge) Detach() {
	for _, reg := range b.regs {
		reg.Close()
	}
	b.regs = nil
	for _, sub := range b.subs {
		if err := sub.Close(); err != nil {
			glog.Warningf("mqtt: unsubscribe: %v", err)
		}
	}
	b.subs = nil
}

func (b *Bridge) publishPacket(ctx context.Context, pkt *bus.Packet) {
	data, err := msgs.EncodePacket(pkt)
	if err != nil {
		glog.Errorf("mqtt: encode %s: %v", pkt, err)
		return
	}
	b.Queue.Pub(b.Topic(TopicRx), data)
}

func (b *Bridge) publishSignal(ctx context.Context, sig bus.Signal) {
	data, err := msgs.EncodeSignal(sig)
	if err != nil {
		glog.Errorf("mqtt: encode %s: %v", sig, err)
		return
	}
	b.Queue.Pub(b.Topic(TopicSignal), data)
}

func (b *Bridge) handleTx(topic string, payload []byte) {
	pkt, err := msgs.DecodePacket(payload)
	if err != nil {
		glog.Warningf("mqtt: invalid packet on %s: %v", topic, err)
		return
	}
	if err := b.Session.SendPacket(pkt); err != nil {
		glog.Errorf("mqtt: send %s: %v", pkt, err)
	}
}

// handleTxTo sends the raw payload to the device named by the last two
// topic levels.
func (b *Bridge) handleTxTo(topic string, payload []byte) {
	levels := strings.Split(topic, "/")
	category, address, err := parseDest(levels[len(levels)-2], levels[len(levels)-1])
	if err != nil {
		glog.Warningf("mqtt: invalid destination %s: %v", topic, err)
		return
	}
	pkt := bus.NewPacket(b.SenderCategory, b.SenderAddress, category, address).Append(payload...)
	if err := b.Session.SendPacket(pkt); err != nil {
		glog.Errorf("mqtt: send %s: %v", pkt, err)
	}
}

func parseDest(category, address string) (bus.DeviceCategory, bus.Address, error) {
	c, err := bus.ParseDeviceCategory(category)
	if err != nil {
		return 0, 0, err
	}
	a, err := bus.ParseAddress(address)
	if err != nil {
		return 0, 0, err
	}
	return c, a, nil
}
