package motor

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// ChannelPins names the pins of one H-bridge channel.
type ChannelPins struct {
	IN1 string `yaml:"in1"`
	IN2 string `yaml:"in2"`
	PWM string `yaml:"pwm"`
}

// BoardConfig describes how a dual H-bridge is wired to the host.
type BoardConfig struct {
	Left  ChannelPins `yaml:"left"`
	Right ChannelPins `yaml:"right"`
	// Standby is the driver's active-high enable pin. Optional.
	Standby string `yaml:"standby"`
	// PWMFrequency in hertz.
	PWMFrequency int `yaml:"pwm_frequency"`
	MaxMagnitude int `yaml:"-"`
}

// Board owns the pins of a dual H-bridge.
type Board struct {
	logger      *zap.SugaredLogger
	standby     gpio.PinOut
	Left, Right *HBridge
}

// PinResolver looks up a pin by name. gpioreg.ByName is the default.
type PinResolver func(name string) gpio.PinIO

func resolve(byName PinResolver, name string) (gpio.PinIO, error) {
	p := byName(name)
	if p == nil {
		return nil, errors.Errorf("no pin found for %q", name)
	}
	return p, nil
}

func openChannel(byName PinResolver, pins ChannelPins, freq physic.Frequency, max int) (*HBridge, error) {
	in1, err := resolve(byName, pins.IN1)
	if err != nil {
		return nil, err
	}
	in2, err := resolve(byName, pins.IN2)
	if err != nil {
		return nil, err
	}
	pwm, err := resolve(byName, pins.PWM)
	if err != nil {
		return nil, err
	}
	h := NewHBridge(in1, in2, pwm, freq, max)
	if err := h.Drive(0); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenBoard initializes the host drivers and opens the pins in cfg.
func OpenBoard(logger *zap.SugaredLogger, cfg BoardConfig) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing host")
	}
	return openBoard(logger, cfg, gpioreg.ByName)
}

func openBoard(logger *zap.SugaredLogger, cfg BoardConfig, byName PinResolver) (*Board, error) {
	freq := physic.Frequency(cfg.PWMFrequency) * physic.Hertz
	b := &Board{logger: logger}
	var err error
	if b.Left, err = openChannel(byName, cfg.Left, freq, cfg.MaxMagnitude); err != nil {
		return nil, errors.Wrap(err, "opening left channel")
	}
	if b.Right, err = openChannel(byName, cfg.Right, freq, cfg.MaxMagnitude); err != nil {
		return nil, errors.Wrap(err, "opening right channel")
	}
	if cfg.Standby != "" {
		stby, err := resolve(byName, cfg.Standby)
		if err != nil {
			return nil, err
		}
		if err := stby.Out(gpio.High); err != nil {
			return nil, errors.Wrap(err, "leaving standby")
		}
		b.standby = stby
	}
	logger.Infow("opened motor driver", "left", cfg.Left, "right", cfg.Right, "standby", cfg.Standby, "frequency", freq)
	return b, nil
}

// Close brakes both channels and puts the driver in standby.
func (b *Board) Close() error {
	var errs []error
	for _, h := range []*HBridge{b.Left, b.Right} {
		if err := h.Drive(0); err != nil {
			errs = append(errs, err)
		}
	}
	if b.standby != nil {
		if err := b.standby.Out(gpio.Low); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("closing board: %v", errs)
	}
	b.logger.Info("motor driver in standby")
	return nil
}
