package env

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/bus/transport/serial"
	"github.com/robotalks/instrbus/pkg/bus/transport/websocket"
	"github.com/robotalks/instrbus/pkg/framework"
)

// Transport is a closable bus transport.
type Transport interface {
	bus.Transport
	io.Closer
}

// Env is an opened bus.
type Env struct {
	Config    *Config
	Transport Transport
	Session   *bus.Session

	// sender of packets created by NewPacket, parsed when the bus is opened
	Category bus.DeviceCategory
	Address  bus.Address
}

// OpenTransport opens the transport selected by Port.
func (c *Config) OpenTransport() (Transport, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("bus port must be specified")
	}
	if c.IsRemote() {
		conn, err := websocket.Dial(c.Port, c.Origin)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", c.Port, err)
		}
		return conn, nil
	}
	sc, err := c.SerialConfig()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(sc)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// NewEnv opens the transport and creates the session.
func (c *Config) NewEnv() (*Env, error) {
	category, address, err := c.Self()
	if err != nil {
		return nil, err
	}
	t, err := c.OpenTransport()
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("bus opened on %s", c.Port)
	return &Env{
		Config:    c,
		Transport: t,
		Session:   bus.NewSession(t, bus.WithSettleDelay(c.SettleDelay)),
		Category:  category,
		Address:   address,
	}, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// NewPacket creates a packet sent from this node.
func (e *Env) NewPacket(destCategory bus.DeviceCategory, destAddress bus.Address) *bus.Packet {
	return bus.NewPacket(e.Category, e.Address, destCategory, destAddress)
}

// Name implements framework.Named.
func (e *Env) Name() string {
	return "bus-session"
}

// Run implements framework.Runnable. The transport is closed when Run returns.
func (e *Env) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, e.Transport, func() error {
		return e.Session.Run(ctx)
	})
}

// Close closes the transport.
func (e *Env) Close() error {
	return e.Transport.Close()
}
