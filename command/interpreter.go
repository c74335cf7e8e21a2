package command

import (
	"fmt"

	"github.com/w1xm/rccar_interface/drive"
	"go.uber.org/zap"
)

// Driver is the set of motion operations a command can invoke.
// *drive.Controller implements it.
type Driver interface {
	MoveForward()
	MoveBackward()
	TurnLeft()
	TurnRight()
	Stop()
	SetPreset(p drive.Preset)
	SetChannels(left, right int)
}

var _ Driver = (*drive.Controller)(nil)

// Interpreter applies text commands to a Driver.
//
// Interpreter is not safe for concurrent use; the Driver it wraps has no
// locking of its own.
type Interpreter struct {
	logger *zap.SugaredLogger
	driver Driver
}

func NewInterpreter(logger *zap.SugaredLogger, driver Driver) *Interpreter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Interpreter{logger: logger, driver: driver}
}

// Handle parses text and applies it. Text that does not parse is dropped
// without touching the driver; the sender gets no indication.
// Handle reports whether the command was applied.
func (in *Interpreter) Handle(text string) bool {
	cmd, err := Parse(text)
	if err != nil {
		in.logger.Debugw("ignoring command", "error", err)
		return false
	}
	if err := Apply(in.driver, cmd); err != nil {
		in.logger.Warnw("ignoring command", "command", cmd, "error", err)
		return false
	}
	return true
}

// Apply invokes the Driver operation for cmd.
func Apply(d Driver, cmd Command) error {
	switch cmd.Kind {
	case Forward:
		d.MoveForward()
	case Backward:
		d.MoveBackward()
	case TurnLeft:
		d.TurnLeft()
	case TurnRight:
		d.TurnRight()
	case Stop:
		d.Stop()
	case SetSlow:
		d.SetPreset(drive.Slow)
	case SetNormal:
		d.SetPreset(drive.Normal)
	case SetFast:
		d.SetPreset(drive.Fast)
	case Manual:
		d.SetChannels(cmd.Left, cmd.Right)
	default:
		return fmt.Errorf("unhandled command kind %v", cmd.Kind)
	}
	return nil
}
