package serial

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Line is a transmit-enable control line.
type Line interface {
	Set(asserted bool) error
}

// LineFunc is func type of Line.
type LineFunc func(asserted bool) error

// Set implements Line.
func (f LineFunc) Set(asserted bool) error {
	return f(asserted)
}

type modemLines interface {
	SetRTS(bool) error
	SetDTR(bool) error
}

// TxEnableKind selects what drives the transmit-enable line.
type TxEnableKind string

// Transmit-enable line kinds.
const (
	TxEnableNone TxEnableKind = "none"
	TxEnableRTS  TxEnableKind = "rts"
	TxEnableDTR  TxEnableKind = "dtr"
	TxEnableGPIO TxEnableKind = "gpio"
)

// TxEnable describes the transmit-enable line, e.g. "rts" or "gpio:GPIO17".
type TxEnable struct {
	Kind TxEnableKind
	Pin  string
}

// ParseTxEnable parses the textual form of TxEnable.
func ParseTxEnable(s string) (TxEnable, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == string(TxEnableNone):
		return TxEnable{Kind: TxEnableNone}, nil
	case s == string(TxEnableRTS):
		return TxEnable{Kind: TxEnableRTS}, nil
	case s == string(TxEnableDTR):
		return TxEnable{Kind: TxEnableDTR}, nil
	case strings.HasPrefix(s, string(TxEnableGPIO)+":"):
		pin := s[len(TxEnableGPIO)+1:]
		if pin == "" {
			return TxEnable{}, fmt.Errorf("gpio pin name missing in %q", s)
		}
		return TxEnable{Kind: TxEnableGPIO, Pin: strings.ToUpper(pin)}, nil
	}
	return TxEnable{}, fmt.Errorf("invalid tx-enable line %q", s)
}

// String implements fmt.Stringer.
func (t TxEnable) String() string {
	if t.Kind == TxEnableGPIO {
		return string(t.Kind) + ":" + t.Pin
	}
	if t.Kind == "" {
		return string(TxEnableNone)
	}
	return string(t.Kind)
}

// line creates the Line on an opened port, nil for TxEnableNone.
func (t TxEnable) line(port modemLines) (Line, error) {
	switch t.Kind {
	case "", TxEnableNone:
		return nil, nil
	case TxEnableRTS:
		return LineFunc(port.SetRTS), nil
	case TxEnableDTR:
		return LineFunc(port.SetDTR), nil
	case TxEnableGPIO:
		return openGPIOLine(t.Pin)
	}
	return nil, fmt.Errorf("unsupported tx-enable line %q", t.Kind)
}

func openGPIOLine(name string) (Line, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return LineFunc(func(asserted bool) error {
		level := gpio.Low
		if asserted {
			level = gpio.High
		}
		return pin.Out(level)
	}), nil
}
