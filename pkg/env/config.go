// Package env configures a bus process from defaults, environment
// variables and command line flags, and opens the bus from it.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/instrbus/pkg/bus"
	"github.com/robotalks/instrbus/pkg/bus/transport/serial"
)

// Config provides common options to open the bus.
type Config struct {
	// Port is a serial device, or a ws:// URL of a remote line.
	Port        string
	BaudRate    int
	TxEnable    string
	SettleDelay time.Duration
	// Origin is sent when Port is a websocket URL.
	Origin string

	// Category and Address identify this node when composing packets.
	Category string
	Address  uint

	// MQTTBrokerURL specifies the MQTT broker to bridge to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// NodeID names this bus under the MQTT topic prefix.
	NodeID string
}

var defaultConfig = Config{
	Port:          "/dev/ttyUSB0",
	BaudRate:      serial.DefaultBaudRate,
	TxEnable:      "rts",
	SettleDelay:   bus.DefaultSettleDelay,
	Origin:        "http://localhost/",
	Category:      "master",
	Address:       1,
	MQTTBrokerURL: "mqtt://localhost:1883/instrbus/",
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
	if defaultConfig.NodeID == "" {
		defaultConfig.NodeID = nodeID()
	}
}

func loadEnv(c *Config, getenv func(string) string) {
	if val := getenv("INSTRBUS_PORT"); val != "" {
		c.Port = val
	}
	if val := getenv("INSTRBUS_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			c.BaudRate = baud
		} else {
			glog.Warningf("ignore invalid INSTRBUS_BAUD %q", val)
		}
	}
	if val := getenv("INSTRBUS_TXEN"); val != "" {
		c.TxEnable = val
	}
	if val := getenv("INSTRBUS_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("INSTRBUS_NODE"); val != "" {
		c.NodeID = val
	}
}

func nodeID() string {
	id, err := machineid.ProtectedID("instrbus")
	if err != nil {
		if id, err = os.Hostname(); err != nil {
			return "instrbus"
		}
		return id
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SetupFlags sets command line flags on fs.
func SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial device or ws:// URL of the bus.")
	fs.IntVar(&defaultConfig.BaudRate, "baud", defaultConfig.BaudRate, "Serial baud rate.")
	fs.StringVar(&defaultConfig.TxEnable, "txen", defaultConfig.TxEnable, "Transmit-enable line: none, rts, dtr or gpio:<pin>.")
	fs.DurationVar(&defaultConfig.SettleDelay, "settle", defaultConfig.SettleDelay, "Line settle delay after each frame.")
	fs.StringVar(&defaultConfig.Origin, "origin", defaultConfig.Origin, "Websocket origin.")
	fs.StringVar(&defaultConfig.Category, "category", defaultConfig.Category, "Device category of this node.")
	fs.UintVar(&defaultConfig.Address, "address", defaultConfig.Address, "Bus address of this node.")
	fs.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
	fs.StringVar(&defaultConfig.NodeID, "node", defaultConfig.NodeID, "Node ID used in MQTT topics.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// IsRemote indicates Port is a websocket URL.
func (c *Config) IsRemote() bool {
	return strings.HasPrefix(c.Port, "ws://") || strings.HasPrefix(c.Port, "wss://")
}

// Self returns the category and address of this node.
func (c *Config) Self() (bus.DeviceCategory, bus.Address, error) {
	category, err := bus.ParseDeviceCategory(c.Category)
	if err != nil {
		return 0, 0, err
	}
	if c.Address > 0xff {
		return 0, 0, fmt.Errorf("invalid bus address %d", c.Address)
	}
	return category, bus.Address(c.Address), nil
}

// SerialConfig returns the serial port configuration.
func (c *Config) SerialConfig() (serial.Config, error) {
	txen, err := serial.ParseTxEnable(c.TxEnable)
	if err != nil {
		return serial.Config{}, err
	}
	return serial.Config{Name: c.Port, BaudRate: c.BaudRate, TxEnable: txen}, nil
}
