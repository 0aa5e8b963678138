package bus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	lock     sync.Mutex
	written  bytes.Buffer
	ops      []string
	writeErr error
	beginErr error
	readCh   chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readCh: make(chan []byte, 4)}
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	data, ok := <-f.readCh
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ops = append(f.ops, "write")
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakeTransport) BeginTx() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ops = append(f.ops, "begin")
	return f.beginErr
}

func (f *fakeTransport) EndTx() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.ops = append(f.ops, "end")
	return nil
}

type recorder struct {
	lock    sync.Mutex
	events  []string
	packets []*Packet
	drops   []DropReason
}

func (r *recorder) watch(s *Session) *recorder {
	s.OnPacket(HandlePacketFunc(func(ctx context.Context, pkt *Packet) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.events = append(r.events, "packet")
		r.packets = append(r.packets, pkt)
	}))
	signal := HandleSignalFunc(func(ctx context.Context, sig Signal) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.events = append(r.events, sig.String())
	})
	s.OnAck(signal)
	s.OnNack(signal)
	s.OnDrop(HandleDropFunc(func(ctx context.Context, reason DropReason) {
		r.lock.Lock()
		defer r.lock.Unlock()
		r.drops = append(r.drops, reason)
	}))
	return r
}

func (r *recorder) snapshot() ([]string, []*Packet) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.events...), append([]*Packet(nil), r.packets...)
}

func TestSessionSend(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(tr, WithSettleDelay(time.Millisecond))

	require.Equal(t, ErrNoHeader, s.AppendPayload(1))
	require.Equal(t, ErrNoHeader, s.Send())
	require.Nil(t, s.Composed())

	s.SetHeader(CategoryShutter, 5, CategoryMaster, 1)
	require.NoError(t, s.AppendPayload(byte(CommandOpen)))
	require.Equal(t, shutterOpen(), s.Composed())
	require.NoError(t, s.Send())
	require.Equal(t, []byte{0x01, 0x20, 0x39, 0x20, 0x35, 0x20, 0x30, 0x20, 0x31, 0x20, 0x37, 0x04}, tr.written.Bytes())
	require.Equal(t, []string{"begin", "write", "end"}, tr.ops)

	// composed packet is kept for another attempt
	require.NoError(t, s.Send())
	require.Equal(t, append(shutterOpen().Bytes(), shutterOpen().Bytes()...), tr.written.Bytes())

	// SetHeader replaces the packet under composition
	s.SetHeader(CategoryMaster, 1, CategoryPressure, 3)
	require.Equal(t, NewPacket(CategoryMaster, 1, CategoryPressure, 3), s.Composed())
	require.Equal(t, int64(2), s.Stats().Sent)
}

func TestSessionSendPacket(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(tr, WithSettleDelay(0))
	pkt := NewPacket(CategoryMaster, 1, CategoryRotaryActuator, 4).Append(1, 2, 3)
	require.NoError(t, s.SendPacket(pkt))
	require.Equal(t, pkt.Bytes(), tr.written.Bytes())
	require.Nil(t, s.Composed())
}

func TestSessionSendErrors(t *testing.T) {
	errBoom := errors.New("port closed")

	tr := newFakeTransport()
	tr.writeErr = errBoom
	s := NewSession(tr, WithSettleDelay(0))
	err := s.SendPacket(shutterOpen())
	require.Error(t, err)
	require.True(t, errors.Is(err, errBoom))
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, "write", sendErr.Op)
	require.Equal(t, []string{"begin", "write", "end"}, tr.ops)
	require.Zero(t, s.Stats().Sent)

	tr = newFakeTransport()
	tr.beginErr = errBoom
	s = NewSession(tr, WithSettleDelay(0))
	err = s.SendPacket(shutterOpen())
	require.True(t, errors.Is(err, errBoom))
	require.Equal(t, []string{"begin"}, tr.ops)
	require.Zero(t, tr.written.Len())
}

func TestSessionReceive(t *testing.T) {
	probe := NewPacket(CategoryLuminosity, 7, CategoryMaster, 1).Append(0x03, 0xe8)
	testCases := []struct {
		name    string
		in      []byte
		events  []string
		packets []*Packet
	}{
		{
			name:    "garbage then frame",
			in:      append([]byte{0xff, 0x00, 0x20, 0x31, END, 0x3a, 0x2b, 0x7e}, probe.Bytes()...),
			events:  []string{"packet"},
			packets: []*Packet{probe},
		},
		{
			name:    "restart mid frame",
			in:      append(append([]byte{}, shutterOpen().Bytes()[:6]...), probe.Bytes()...),
			events:  []string{"packet"},
			packets: []*Packet{probe},
		},
		{
			name:   "signals only",
			in:     []byte{ACK, NACK, ACK},
			events: []string{"ACK", "NACK", "ACK"},
		},
		{
			name:    "back to back frames",
			in:      append(shutterOpen().Bytes(), probe.Bytes()...),
			events:  []string{"packet", "packet"},
			packets: []*Packet{shutterOpen(), probe},
		},
		{
			name:    "signal between frames",
			in:      append(append(shutterOpen().Bytes(), ACK), probe.Bytes()...),
			events:  []string{"packet", "ACK", "packet"},
			packets: []*Packet{shutterOpen(), probe},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession(newFakeTransport())
			r := (&recorder{}).watch(s)
			s.Feed(context.Background(), tc.in...)
			events, packets := r.snapshot()
			require.Equal(t, tc.events, events)
			require.Equal(t, tc.packets, packets)
			require.Zero(t, s.Buffered())
		})
	}
}

func TestSessionFeedByteByByte(t *testing.T) {
	s := NewSession(newFakeTransport())
	r := (&recorder{}).watch(s)
	for _, b := range shutterOpen().Bytes() {
		s.Feed(context.Background(), b)
	}
	_, packets := r.snapshot()
	require.Equal(t, []*Packet{shutterOpen()}, packets)
}

func TestSessionDrops(t *testing.T) {
	s := NewSession(newFakeTransport())
	r := (&recorder{}).watch(s)
	s.Feed(context.Background(), START, 0x31, 0x20, 0x39, END, 0x20, 0x31)
	require.Equal(t, []DropReason{DropOrphanLow, DropShortFrame}, r.drops)
	stats := s.Stats()
	require.Equal(t, int64(2), stats.Dropped)
	require.Equal(t, int64(2), stats.Ignored)
	require.Zero(t, stats.Frames)
}

func TestSessionObservers(t *testing.T) {
	s := NewSession(newFakeTransport())
	var first, second []*Packet
	reg := s.OnPacket(HandlePacketFunc(func(ctx context.Context, pkt *Packet) {
		pkt.Payload[0] = 0xee
		first = append(first, pkt)
	}))
	s.OnPacket(HandlePacketFunc(func(ctx context.Context, pkt *Packet) {
		second = append(second, pkt)
	}))

	s.Feed(context.Background(), shutterOpen().Bytes()...)
	require.Len(t, first, 1)
	require.Equal(t, []*Packet{shutterOpen()}, second)

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())
	s.Feed(context.Background(), shutterOpen().Bytes()...)
	require.Len(t, first, 1)
	require.Len(t, second, 2)

	// no observers is fine
	s = NewSession(newFakeTransport())
	s.Feed(context.Background(), append(shutterOpen().Bytes(), ACK, NACK)...)
	require.Equal(t, Stats{Frames: 1, Acks: 1, Nacks: 1}, s.Stats())
}

func TestSessionRun(t *testing.T) {
	tr := newFakeTransport()
	s := NewSession(tr)
	r := (&recorder{}).watch(s)

	frame := shutterOpen().Bytes()
	tr.readCh <- frame[:3]
	tr.readCh <- frame[3:]
	tr.readCh <- []byte{ACK}
	close(tr.readCh)

	err := s.Run(context.Background())
	require.Equal(t, io.EOF, err)
	events, packets := r.snapshot()
	require.Equal(t, []string{"packet", "ACK"}, events)
	require.Equal(t, []*Packet{shutterOpen()}, packets)
}

func TestSessionRunCanceled(t *testing.T) {
	s := NewSession(newFakeTransport())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}
