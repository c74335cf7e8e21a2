// Package config loads the car's hardware description.
package config

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/w1xm/rccar_interface/drive"
	"github.com/w1xm/rccar_interface/motor"
	"gopkg.in/yaml.v2"
)

// Backend selects what the drive controller actuates.
const (
	BackendGPIO   = "gpio"
	BackendModbus = "modbus"
	BackendSim    = "sim"
)

type ModbusConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	SlaveID byte   `yaml:"slave_id"`
}

type Config struct {
	Backend      string            `yaml:"backend"`
	MaxMagnitude int               `yaml:"max_magnitude"`
	Presets      drive.Magnitudes  `yaml:"presets"`
	Board        motor.BoardConfig `yaml:"board"`
	Modbus       ModbusConfig      `yaml:"modbus"`
}

// Default matches the reference wiring of a TB6612FNG breakout.
func Default() Config {
	return Config{
		Backend:      BackendGPIO,
		MaxMagnitude: drive.MaxMagnitude,
		Presets:      drive.DefaultMagnitudes,
		Board: motor.BoardConfig{
			Left:         motor.ChannelPins{IN1: "GPIO27", IN2: "GPIO14", PWM: "GPIO12"},
			Right:        motor.ChannelPins{IN1: "GPIO25", IN2: "GPIO33", PWM: "GPIO32"},
			Standby:      "GPIO26",
			PWMFrequency: 1000,
		},
		Modbus: ModbusConfig{
			Baud:    19200,
			SlaveID: 1,
		},
	}
}

// Parse overlays YAML data on Default and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	c.Board.MaxMagnitude = c.MaxMagnitude
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads path. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		c := Default()
		c.Board.MaxMagnitude = c.MaxMagnitude
		return c, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if c.MaxMagnitude <= 0 {
		return errors.Errorf("max_magnitude must be positive, got %d", c.MaxMagnitude)
	}
	if err := c.Presets.Validate(c.MaxMagnitude); err != nil {
		return errors.Wrap(err, "presets")
	}
	switch c.Backend {
	case BackendGPIO:
		for name, pin := range map[string]string{
			"left.in1":  c.Board.Left.IN1,
			"left.in2":  c.Board.Left.IN2,
			"left.pwm":  c.Board.Left.PWM,
			"right.in1": c.Board.Right.IN1,
			"right.in2": c.Board.Right.IN2,
			"right.pwm": c.Board.Right.PWM,
		} {
			if pin == "" {
				return errors.Errorf("board.%s is not set", name)
			}
		}
		if c.Board.PWMFrequency <= 0 {
			return errors.Errorf("board.pwm_frequency must be positive, got %d", c.Board.PWMFrequency)
		}
	case BackendModbus:
		if c.Modbus.Port == "" {
			return errors.New("modbus.port is not set")
		}
	case BackendSim:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
