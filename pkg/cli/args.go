// Package cli holds argument helpers shared by the command line tools.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/instrbus/pkg/bus"
)

// ParseBytes parses hex bytes, e.g. "07", "0x7f", "ff".
func ParseBytes(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		str := strings.TrimPrefix(strings.ToLower(arg), "0x")
		v, err := strconv.ParseUint(str, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", arg)
		}
		data = append(data, byte(v))
	}
	return data, nil
}

// ParseEndpoint parses a category and address pair.
func ParseEndpoint(category, address string) (bus.DeviceCategory, bus.Address, error) {
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

// ParseHeader parses "senderCategory senderAddress destCategory destAddress".
func ParseHeader(args []string) (*bus.Packet, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("header needs 4 fields")
	}
	sc, sa, err := ParseEndpoint(args[0], args[1])
	if err != nil {
		return nil, err
	}
	dc, da, err := ParseEndpoint(args[2], args[3])
	if err != nil {
		return nil, err
	}
	return bus.NewPacket(sc, sa, dc, da), nil
}

// FormatFrame prints wire bytes.
func FormatFrame(frame []byte) string {
	return fmt.Sprintf("% x", frame)
}
