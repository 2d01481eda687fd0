// Package config loads the device list consumed by the iskra-monitor and
// iskra-mqtt commands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/log"
)

// Protocol selects the transport for one configured device.
type Protocol string

const (
	ProtocolModbusTCP Protocol = "modbus-tcp"
	ProtocolModbusRTU Protocol = "modbus-rtu"
	ProtocolRest      Protocol = "rest"
)

// DeviceConfig is one entry of the devices list.
type DeviceConfig struct {
	// Name labels the device in output; defaults to the address.
	Name string `yaml:"name"`

	// Protocol is modbus-tcp, modbus-rtu or rest.
	Protocol Protocol `yaml:"protocol"`

	// Address is "host:port" (modbus-tcp), a serial port path
	// (modbus-rtu) or the base URL (rest).
	Address string `yaml:"address"`

	// Unit is the Modbus unit address; zero takes the meter default.
	Unit byte `yaml:"unit"`

	// Serial parameters for modbus-rtu; zero values take the meter
	// factory defaults.
	BaudRate int    `yaml:"baud_rate"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`

	// REST credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Duration wraps time.Duration so the file can use "10s" notation.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the file root.
type Config struct {
	Devices []DeviceConfig `yaml:"devices"`

	// Interval between update cycles. Defaults to 10s.
	Interval Duration `yaml:"interval"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Interval == 0 {
		cfg.Interval = Duration(10 * time.Second)
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("config %s: no devices", path)
	}
	for i := range cfg.Devices {
		d := &cfg.Devices[i]
		if d.Address == "" {
			return nil, fmt.Errorf("config %s: device %d: address is required", path, i)
		}
		if d.Name == "" {
			d.Name = d.Address
		}
		switch d.Protocol {
		case ProtocolModbusTCP, ProtocolModbusRTU, ProtocolRest:
		case "":
			d.Protocol = ProtocolModbusTCP
		default:
			return nil, fmt.Errorf("config %s: device %q: unknown protocol %q", path, d.Name, d.Protocol)
		}
	}
	return &cfg, nil
}

// NewAdapter builds the transport adapter for this device entry.
func (d DeviceConfig) NewAdapter(logger *slog.Logger, events log.Logger) adapters.Adapter {
	switch d.Protocol {
	case ProtocolModbusRTU:
		return adapters.NewModbusRTU(adapters.RTUConfig{
			Port:     d.Address,
			Unit:     d.Unit,
			BaudRate: d.BaudRate,
			Parity:   d.Parity,
			StopBits: d.StopBits,
			Logger:   logger,
			Events:   events,
		})
	case ProtocolRest:
		return adapters.NewRest(adapters.RestConfig{
			Endpoint: d.Address,
			Auth:     adapters.Auth{Username: d.Username, Password: d.Password},
			Logger:   logger,
			Events:   events,
		})
	default:
		return adapters.NewModbusTCP(adapters.TCPConfig{
			Address: d.Address,
			Unit:    d.Unit,
			Logger:  logger,
			Events:  events,
		})
	}
}
