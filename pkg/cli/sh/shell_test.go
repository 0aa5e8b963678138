package sh

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/cli"
	"github.com/robotalks/instrbus/pkg/env"
)

type fakeLine struct {
	bytes.Buffer
}

func (l *fakeLine) Read(p []byte) (int, error) { return 0, nil }
func (l *fakeLine) Close() error              { return nil }

func newTestShell() (*Shell, *fakeLine, *bytes.Buffer) {
	line := &fakeLine{}
	conf := env.NewConfig()
	conf.Category, conf.Address = "master", 1
	e := &env.Env{
		Config:    conf,
		Transport: line,
		Session:   bus.NewSession(line, bus.WithSettleDelay(0)),
		Category:  bus.CategoryMaster,
		Address:   1,
	}
	var out bytes.Buffer
	s := &Shell{Config: conf, out: &out}
	s.Attach(e)
	return s, line, &out
}

func TestShellCompose(t *testing.T) {
	s, line, _ := newTestShell()
	require.Equal(t, bus.ErrNoHeader, s.Payload([]string{"07"}))
	require.NoError(t, s.Header([]string{"shutter", "5", "0", "1"}))
	require.NoError(t, s.Payload([]string{"07"}))
	require.NoError(t, s.Send())
	require.Equal(t, "01 20 39 20 35 20 30 20 31 20 37 04", cli.FormatFrame(line.Bytes()))

	line.Reset()
	require.NoError(t, s.Header([]string{"master", "1", "rotary-actuator", "2", "10", "20"}))
	require.NoError(t, s.Send())
	require.Equal(t, bus.NewPacket(bus.CategoryMaster, 1, bus.CategoryRotaryActuator, 2).Append(0x10, 0x20).Bytes(), line.Bytes())

	// a bad payload leaves the composed packet untouched
	composed := s.Env.Session.Composed()
	require.Error(t, s.Header([]string{"shutter", "5", "master", "1", "zz"}))
	require.Equal(t, composed, s.Env.Session.Composed())
}

func TestShellSendTo(t *testing.T) {
	s, line, _ := newTestShell()
	require.NoError(t, s.SendTo([]string{"shutter", "5", "07"}))
	require.Equal(t, bus.NewPacket(bus.CategoryMaster, 1, bus.CategoryShutter, 5).Append(0x07).Bytes(), line.Bytes())
	require.Error(t, s.SendTo([]string{"shutter"}))
	require.Error(t, s.SendTo([]string{"shutter", "5", "xyz"}))
}

func TestShellPrintsTraffic(t *testing.T) {
	s, _, out := newTestShell()
	pkt := bus.NewPacket(bus.CategoryShutter, 5, bus.CategoryMaster, 1).Append(0x07)
	s.Env.Session.Feed(context.Background(), append(pkt.Bytes(), bus.ACK, bus.START, bus.END)...)
	require.Equal(t, "RX shutter/5 -> master/1 [07]\nRX ACK\nRX dropped: short frame\n", out.String())

	e := s.Env
	s.Detach()
	require.Nil(t, s.Env)
	out.Reset()
	e.Session.Feed(context.Background(), bus.NACK)
	require.Empty(t, out.String())
}
