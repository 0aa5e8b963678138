package bus

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultSettleDelay is how long the line is held after a frame is written.
const DefaultSettleDelay = 10 * time.Millisecond

const readChunkSize = 256

// Transport is the byte stream of the bus.
type Transport interface {
	io.Reader
	io.Writer
}

// TxGate is implemented by transports driving a transmit-enable line.
// BeginTx is called before a frame is written, EndTx after the settle delay.
type TxGate interface {
	BeginTx() error
	EndTx() error
}

// Stats is a snapshot of session counters.
type Stats struct {
	Frames  int64
	Acks    int64
	Nacks   int64
	Dropped int64
	Ignored int64
	Sent    int64
}

type sessionStats struct {
	frames  *xsync.Counter
	acks    *xsync.Counter
	nacks   *xsync.Counter
	dropped *xsync.Counter
	ignored *xsync.Counter
	sent    *xsync.Counter
}

func newSessionStats() sessionStats {
	return sessionStats{
		frames:  xsync.NewCounter(),
		acks:    xsync.NewCounter(),
		nacks:   xsync.NewCounter(),
		dropped: xsync.NewCounter(),
		ignored: xsync.NewCounter(),
		sent:    xsync.NewCounter(),
	}
}

// Session sends packets over a transport and notifies observers of
// inbound packets and signals.
//
// Send calls are serialized. Inbound bytes are processed by Run, or by
// Feed for push-based transports; Feed must not be called concurrently
// with itself or with Run.
//
// A sent frame is not correlated with any notification: callers wanting
// replies or acknowledgments must match them and time out on their own.
type Session struct {
	transport   Transport
	settleDelay time.Duration

	sendLock sync.Mutex
	pending  *Packet

	parser Parser

	packetObservers observers
	ackObservers    observers
	nackObservers   observers
	dropObservers   observers

	stats sessionStats
}

// Option configures a Session.
type Option func(*Session)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Session) {
		s.settleDelay = d
	}
}

// NewSession creates a Session owning its receive state.
func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		transport:   t,
		settleDelay: DefaultSettleDelay,
		stats:       newSessionStats(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transport returns the underlying transport.
func (s *Session) Transport() Transport {
	return s.transport
}

// SetHeader starts composing a new packet, replacing the one being composed.
func (s *Session) SetHeader(senderCategory DeviceCategory, senderAddress Address, destCategory DeviceCategory, destAddress Address) {
	s.sendLock.Lock()
	s.pending = NewPacket(senderCategory, senderAddress, destCategory, destAddress)
	s.sendLock.Unlock()
}

// AppendPayload appends bytes to the packet being composed.
func (s *Session) AppendPayload(data ...byte) error {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if s.pending == nil {
		return ErrNoHeader
	}
	s.pending.Append(data...)
	return nil
}

// Composed returns a copy of the packet being composed, or nil.
func (s *Session) Composed() *Packet {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if s.pending == nil {
		return nil
	}
	return s.pending.Clone()
}

// Send transmits the composed packet. The packet stays composed so it
// can be sent again.
func (s *Session) Send() error {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if s.pending == nil {
		return ErrNoHeader
	}
	return s.transmit(s.pending)
}

// SendPacket transmits pkt without touching the composed packet.
func (s *Session) SendPacket(pkt *Packet) error {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	return s.transmit(pkt)
}

func (s *Session) transmit(pkt *Packet) error {
	frame := pkt.Bytes()
	gate, gated := s.transport.(TxGate)
	if gated {
		if err := gate.BeginTx(); err != nil {
			glog.Warningf("TX %s: begin failed: %v", pkt, err)
			return &SendError{Op: "begin", Err: err}
		}
	}
	_, err := s.transport.Write(frame)
	if err == nil && s.settleDelay > 0 {
		time.Sleep(s.settleDelay)
	}
	if gated {
		if endErr := gate.EndTx(); endErr != nil && err == nil {
			glog.Warningf("TX %s: end failed: %v", pkt, endErr)
			return &SendError{Op: "end", Err: endErr}
		}
	}
	if err != nil {
		glog.Warningf("TX %s: write failed: %v", pkt, err)
		return &SendError{Op: "write", Err: err}
	}
	s.stats.sent.Inc()
	if glog.V(2) {
		glog.Infof("TX %s [% x]", pkt, frame)
	}
	return nil
}

// OnPacket registers a handler for received packets.
func (s *Session) OnPacket(h PacketHandler) *Registration {
	return s.packetObservers.add(h)
}

// OnAck registers a handler for ACK.
func (s *Session) OnAck(h SignalHandler) *Registration {
	return s.ackObservers.add(h)
}

// OnNack registers a handler for NACK.
func (s *Session) OnNack(h SignalHandler) *Registration {
	return s.nackObservers.add(h)
}

// OnDrop registers a handler for discarded malformed input.
func (s *Session) OnDrop(h DropHandler) *Registration {
	return s.dropObservers.add(h)
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:  s.stats.frames.Value(),
		Acks:    s.stats.acks.Value(),
		Nacks:   s.stats.nacks.Value(),
		Dropped: s.stats.dropped.Value(),
		Ignored: s.stats.ignored.Value(),
		Sent:    s.stats.sent.Value(),
	}
}

// Buffered returns the number of reassembled bytes of the frame in progress.
func (s *Session) Buffered() int {
	return s.parser.Buffered()
}

// Feed pushes inbound bytes through the receive state machine.
func (s *Session) Feed(ctx context.Context, data ...byte) {
	for _, b := range data {
		s.dispatch(ctx, s.parser.Parse(b))
	}
}

// Run reads the transport and processes inbound bytes until the context
// is canceled or the transport fails. Zero-byte reads are read timeouts.
func (s *Session) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			s.Feed(ctx, data...)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.transport.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case dataCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Session) dispatch(ctx context.Context, pr ParseResult) {
	if pr.Drop != DropNone {
		s.stats.dropped.Inc()
		glog.V(1).Infof("RX dropped: %s", pr.Drop)
		for _, h := range s.dropObservers.snapshot() {
			h.(DropHandler).HandleDrop(ctx, pr.Drop)
		}
	}
	switch pr.Event {
	case EventPacket:
		s.stats.frames.Inc()
		if glog.V(2) {
			glog.Infof("RX %s", pr.Packet)
		}
		handlers := s.packetObservers.snapshot()
		for n, h := range handlers {
			pkt := pr.Packet
			if n+1 < len(handlers) {
				pkt = pkt.Clone()
			}
			h.(PacketHandler).HandlePacket(ctx, pkt)
		}
	case EventAck:
		s.stats.acks.Inc()
		glog.V(2).Info("RX ACK")
		s.notifySignal(ctx, &s.ackObservers, SignalAck)
	case EventNack:
		s.stats.nacks.Inc()
		glog.V(2).Info("RX NACK")
		s.notifySignal(ctx, &s.nackObservers, SignalNack)
	case EventIgnored:
		s.stats.ignored.Inc()
	}
}

func (s *Session) notifySignal(ctx context.Context, o *observers, sig Signal) {
	for _, h := range o.snapshot() {
		h.(SignalHandler).HandleSignal(ctx, sig)
	}
}
