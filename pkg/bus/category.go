package bus

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceCategory identifies a class of bus participant.
type DeviceCategory byte

// Device categories, ordinals are the wire values.
const (
	CategoryMaster DeviceCategory = iota
	CategoryTemperature
	CategoryPressure
	CategoryHumidity
	CategoryLuminosity
	CategoryLinearActuator
	CategoryRotaryActuator
	CategoryLinearEncoder
	CategoryRotaryEncoder
	CategoryShutter

	categoryCount
)

var categoryNames = [categoryCount]string{
	"master",
	"temperature",
	"pressure",
	"humidity",
	"luminosity",
	"linear-actuator",
	"rotary-actuator",
	"linear-encoder",
	"rotary-encoder",
	"shutter",
}

// IsKnown indicates the value is one of the defined categories.
// Decoding never rejects unknown values.
func (c DeviceCategory) IsKnown() bool {
	return c < categoryCount
}

// String implements fmt.Stringer.
func (c DeviceCategory) String() string {
	if c.IsKnown() {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", byte(c))
}

// ParseDeviceCategory accepts a category name or a number in 0-255.
func ParseDeviceCategory(s string) (DeviceCategory, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for n, str := range categoryNames {
		if str == name {
			return DeviceCategory(n), nil
		}
	}
	v, err := strconv.ParseUint(name, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid device category %q", s)
	}
	return DeviceCategory(v), nil
}

// Address identifies a device instance within a category.
type Address byte

// AddressUnassigned is held by a device which has not been given an address.
const AddressUnassigned Address = 0

// ParseAddress parses a bus address in 0-255.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid bus address %q", s)
	}
	return Address(v), nil
}
