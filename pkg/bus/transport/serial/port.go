// Package serial implements the bus byte transport over a serial line.
package serial

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	goserial "go.bug.st/serial"
)

// Line settings of the bus.
const (
	DefaultBaudRate    = 57600
	DefaultReadTimeout = 100 * time.Millisecond
)

// Config configures a serial port.
type Config struct {
	Name        string
	BaudRate    int
	TxEnable    TxEnable
	ReadTimeout time.Duration
}

// Mode returns the serial line mode: 8 data bits, no parity, 1 stop bit.
func (c Config) Mode() *goserial.Mode {
	baud := c.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
}

// Port is a bus transport over a serial port. Reads return 0 bytes on
// read timeout so the reader can check for cancellation.
type Port struct {
	port   goserial.Port
	txen   Line
	config Config

	closeOnce sync.Once
}

// Open opens the serial port and asserts the transmit-enable line.
func Open(c Config) (*Port, error) {
	port, err := goserial.Open(c.Name, c.Mode())
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", c.Name, err)
	}
	p, err := newPort(port, c)
	if err != nil {
		port.Close()
		return nil, err
	}
	glog.Infof("serial: opened %s at %d baud (tx-enable %s)", c.Name, c.Mode().BaudRate, c.TxEnable)
	return p, nil
}

func newPort(port goserial.Port, c Config) (*Port, error) {
	timeout := c.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, fmt.Errorf("serial: set read timeout: %w", err)
	}
	txen, err := c.TxEnable.line(port)
	if err != nil {
		return nil, fmt.Errorf("serial: tx-enable: %w", err)
	}
	p := &Port{port: port, txen: txen, config: c}
	if err := p.setLine(true); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the configuration the port was opened with.
func (p *Port) Config() Config {
	return p.config
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// BeginTx deasserts the transmit-enable line for the duration of a send.
func (p *Port) BeginTx() error {
	return p.setLine(false)
}

// EndTx waits for the output to drain and reasserts the transmit-enable line.
func (p *Port) EndTx() error {
	if err := p.port.Drain(); err != nil {
		return fmt.Errorf("serial: drain: %w", err)
	}
	return p.setLine(true)
}

func (p *Port) setLine(asserted bool) error {
	if p.txen == nil {
		return nil
	}
	if err := p.txen.Set(asserted); err != nil {
		return fmt.Errorf("serial: set tx-enable %v: %w", asserted, err)
	}
	return nil
}

// Close implements io.Closer.
func (p *Port) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.port.Close()
	})
	return
}
