package env

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/bus/transport/serial"
	"github.com/robotalks/instrbus/pkg/bus/transport/websocket"
)

func TestLoadEnv(t *testing.T) {
	vars := map[string]string{
		"INSTRBUS_PORT":     "/dev/ttyS3",
		"INSTRBUS_BAUD":     "19200",
		"INSTRBUS_TXEN":     "gpio:GPIO22",
		"INSTRBUS_MQTT_URL": "mqtt://broker/lab/",
		"INSTRBUS_NODE":     "bench",
	}
	c := Config{BaudRate: 57600}
	loadEnv(&c, func(key string) string { return vars[key] })
	require.Equal(t, "/dev/ttyS3", c.Port)
	require.Equal(t, 19200, c.BaudRate)
	require.Equal(t, "gpio:GPIO22", c.TxEnable)
	require.Equal(t, "mqtt://broker/lab/", c.MQTTBrokerURL)
	require.Equal(t, "bench", c.NodeID)

	c = Config{BaudRate: 57600}
	loadEnv(&c, func(key string) string {
		if key == "INSTRBUS_BAUD" {
			return "fast"
		}
		return ""
	})
	require.Equal(t, 57600, c.BaudRate)
}

func TestConfig(t *testing.T) {
	c := NewConfig()
	require.NotSame(t, Default(), c)
	require.NotEmpty(t, c.NodeID)

	c.Category, c.Address = "shutter", 5
	category, address, err := c.Self()
	require.NoError(t, err)
	require.Equal(t, bus.CategoryShutter, category)
	require.Equal(t, bus.Address(5), address)

	c.Address = 300
	_, _, err = c.Self()
	require.Error(t, err)

	c.Port, c.BaudRate, c.TxEnable = "/dev/ttyAMA0", 0, "dtr"
	sc, err := c.SerialConfig()
	require.NoError(t, err)
	require.Equal(t, serial.Config{Name: "/dev/ttyAMA0", TxEnable: serial.TxEnable{Kind: serial.TxEnableDTR}}, sc)
	require.Equal(t, serial.DefaultBaudRate, sc.Mode().BaudRate)

	c.TxEnable = "cts"
	_, err = c.SerialConfig()
	require.Error(t, err)

	require.False(t, c.IsRemote())
	c.Port = "wss://gateway/bus"
	require.True(t, c.IsRemote())
}

type loopback struct {
	ch chan []byte
}

func (l *loopback) Read(p []byte) (int, error) {
	select {
	case data := <-l.ch:
		return copy(p, data), nil
	case <-time.After(10 * time.Millisecond):
		return 0, nil
	}
}

func (l *loopback) Write(p []byte) (int, error) {
	l.ch <- append([]byte(nil), p...)
	return len(p), nil
}

func TestRemoteEnv(t *testing.T) {
	server := httptest.NewServer(websocket.Handler(&loopback{ch: make(chan []byte, 4)}))
	defer server.Close()

	c := NewConfig()
	c.Port = "ws" + strings.TrimPrefix(server.URL, "http")
	c.Origin = server.URL
	c.SettleDelay = 0
	c.Category, c.Address = "temperature", 3
	e, err := c.NewEnv()
	require.NoError(t, err)
	require.Equal(t, bus.CategoryTemperature, e.Category)
	require.Equal(t, bus.Address(3), e.Address)

	// the sender is fixed when the bus is opened
	c.Category, c.Address = "toaster", 0x100
	sent := e.NewPacket(bus.CategoryMaster, 1)
	require.Equal(t, bus.CategoryTemperature, sent.SenderCategory)
	require.Equal(t, bus.Address(3), sent.SenderAddress)

	pktCh := make(chan *bus.Packet, 1)
	e.Session.OnPacket(bus.HandlePacketFunc(func(ctx context.Context, pkt *bus.Packet) {
		pktCh <- pkt
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(ctx)
	}()

	pkt := e.NewPacket(bus.CategoryShutter, 5).Append(byte(bus.CommandOpen))
	require.NoError(t, e.Session.SendPacket(pkt))
	select {
	case got := <-pktCh:
		require.Equal(t, pkt, got)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for echoed packet")
	}

	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session to stop")
	}
}

func TestNewEnvErrors(t *testing.T) {
	c := NewConfig()
	c.Category = "toaster"
	_, err := c.NewEnv()
	require.Error(t, err)

	c = NewConfig()
	c.Port = ""
	_, err = c.NewEnv()
	require.Error(t, err)
}
