package motor

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// HBridge drives one channel of a dual H-bridge such as the TB6612FNG.
//
// IN1 and IN2 select polarity and PWM sets the duty cycle. Zero drives both
// polarity inputs high, which shorts the motor and brakes it.
type HBridge struct {
	in1, in2 gpio.PinOut
	pwm      gpio.PinOut
	freq     physic.Frequency
	max      int

	mu    sync.Mutex
	value int
}

// NewHBridge wraps three already-resolved pins. max is the magnitude that
// maps to a 100% duty cycle.
func NewHBridge(in1, in2, pwm gpio.PinOut, freq physic.Frequency, max int) *HBridge {
	return &HBridge{in1: in1, in2: in2, pwm: pwm, freq: freq, max: max}
}

func (h *HBridge) duty(magnitude int) gpio.Duty {
	if magnitude >= h.max {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(gpio.DutyMax) * int64(magnitude) / int64(h.max))
}

func (h *HBridge) Drive(value int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	in1, in2 := gpio.High, gpio.High
	magnitude := 0
	switch {
	case value > 0:
		in2 = gpio.Low
		magnitude = value
	case value < 0:
		in1 = gpio.Low
		magnitude = -value
	}
	if err := h.in1.Out(in1); err != nil {
		return errors.Wrapf(err, "setting %s", h.in1)
	}
	if err := h.in2.Out(in2); err != nil {
		return errors.Wrapf(err, "setting %s", h.in2)
	}
	if err := h.pwm.PWM(h.duty(magnitude), h.freq); err != nil {
		return errors.Wrapf(err, "setting duty on %s", h.pwm)
	}
	h.value = value
	return nil
}

// Value returns the last value successfully driven.
func (h *HBridge) Value() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}
