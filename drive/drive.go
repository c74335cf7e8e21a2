// Package drive owns the motion state of a differential-drive car.
package drive

import (
	"fmt"

	"github.com/w1xm/rccar_interface/motor"
	"go.uber.org/zap"
)

// MaxMagnitude is the top of an 8-bit duty-cycle range.
const MaxMagnitude = 255

// Channel selects one of the two independently driven motors.
type Channel int

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Status is a snapshot of the controller state.
type Status struct {
	Preset Preset
	// Magnitude is the duty-cycle level of Preset.
	Magnitude int
	// Left and Right are the signed commanded values. Zero means braked.
	Left, Right int
}

type StatusCallback func(status Status)

type Options struct {
	// MaxMagnitude bounds channel values. Defaults to MaxMagnitude.
	MaxMagnitude int
	// Magnitudes defaults to DefaultMagnitudes.
	Magnitudes *Magnitudes
	// StatusCallback, if set, is called after every applied operation.
	StatusCallback StatusCallback
}

// Controller translates motion directives into per-channel signed values and
// is the only writer of actuator state.
//
// Controller does no locking; callers must serialize access.
type Controller struct {
	logger     *zap.SugaredLogger
	motors     [2]motor.Motor
	max        int
	magnitudes Magnitudes

	statusCallback StatusCallback

	preset Preset
	values [2]int
}

// New returns a controller with the Normal preset and both channels braked.
// The motors are driven to zero immediately.
func New(logger *zap.SugaredLogger, left, right motor.Motor, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if left == nil {
		left = motor.Null{}
	}
	if right == nil {
		right = motor.Null{}
	}
	c := &Controller{
		logger:         logger,
		motors:         [2]motor.Motor{left, right},
		max:            opts.MaxMagnitude,
		magnitudes:     DefaultMagnitudes,
		statusCallback: opts.StatusCallback,
		preset:         Normal,
	}
	if c.max <= 0 {
		c.max = MaxMagnitude
	}
	if opts.Magnitudes != nil {
		c.magnitudes = *opts.Magnitudes
	}
	c.set(Left, 0)
	c.set(Right, 0)
	return c
}

func (c *Controller) clamp(value int) int {
	if value > c.max {
		return c.max
	} else if value < -c.max {
		return -c.max
	}
	return value
}

func (c *Controller) set(ch Channel, value int) {
	value = c.clamp(value)
	c.values[ch] = value
	if err := c.motors[ch].Drive(value); err != nil {
		c.logger.Errorw("driving motor", "channel", ch, "value", value, "error", err)
	}
}

func (c *Controller) notifyStatus() {
	if c.statusCallback != nil {
		c.statusCallback(c.Status())
	}
}

func (c *Controller) magnitude() int {
	return c.magnitudes.Of(c.preset)
}

// SetChannel commands one channel directly, bypassing the preset.
func (c *Controller) SetChannel(ch Channel, value int) {
	c.logger.Debugw("setting channel", "channel", ch, "value", value)
	c.set(ch, value)
	c.notifyStatus()
}

// SetChannels commands both channels at once, bypassing the preset.
func (c *Controller) SetChannels(left, right int) {
	c.logger.Infow("car is driving differentially", "left", left, "right", right)
	c.set(Left, left)
	c.set(Right, right)
	c.notifyStatus()
}

// TurnLeft pivots in place counter-clockwise.
func (c *Controller) TurnLeft() {
	c.logger.Infow("car is turning left", "preset", c.preset)
	m := c.magnitude()
	c.set(Left, -m)
	c.set(Right, m)
	c.notifyStatus()
}

// TurnRight pivots in place clockwise.
func (c *Controller) TurnRight() {
	c.logger.Infow("car is turning right", "preset", c.preset)
	m := c.magnitude()
	c.set(Left, m)
	c.set(Right, -m)
	c.notifyStatus()
}

// MoveForward drives both channels forward at the preset magnitude.
func (c *Controller) MoveForward() {
	c.logger.Infow("car is moving forward", "preset", c.preset)
	m := c.magnitude()
	c.set(Left, m)
	c.set(Right, m)
	c.notifyStatus()
}

// MoveBackward drives both channels in reverse at the preset magnitude.
func (c *Controller) MoveBackward() {
	c.logger.Infow("car is moving backward", "preset", c.preset)
	m := c.magnitude()
	c.set(Left, -m)
	c.set(Right, -m)
	c.notifyStatus()
}

// Stop brakes both channels.
func (c *Controller) Stop() {
	c.logger.Info("car is stopping")
	c.set(Left, 0)
	c.set(Right, 0)
	c.notifyStatus()
}

// SetPreset changes the speed used by later directional commands. Channels
// already in motion keep their current values.
func (c *Controller) SetPreset(p Preset) {
	c.logger.Infow("car is changing speed", "preset", p)
	c.preset = p
	c.notifyStatus()
}

// Preset returns the active speed preset.
func (c *Controller) Preset() Preset {
	return c.preset
}

// Value returns the commanded value of ch.
func (c *Controller) Value(ch Channel) int {
	return c.values[ch]
}

// Status returns a snapshot of the preset and both channel values.
func (c *Controller) Status() Status {
	return Status{
		Preset:    c.preset,
		Magnitude: c.magnitude(),
		Left:      c.values[Left],
		Right:     c.values[Right],
	}
}
