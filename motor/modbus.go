package motor

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/w1xm/rccar_interface/internal/modbus"
	"go.uber.org/zap"
)

// Holding register layout of a two-channel Modbus DC motor driver. Each
// channel occupies two consecutive registers starting at 2*channel.
const (
	// Mode register values.
	ModeBrake   = 0
	ModeForward = 1
	ModeReverse = 2

	registersPerChannel = 2
	// Input register 0 holds the driver fault code.
	faultRegister = 0
)

// ModbusDriver is a dual-channel motor driver on a Modbus RTU bus.
type ModbusDriver struct {
	logger *zap.SugaredLogger
	client *modbus.Client
	max    int

	mu    sync.Mutex
	fault uint16
}

// ConnectModbus starts talking to a motor driver on port. max is the
// magnitude that maps to the driver's full-scale duty register value.
func ConnectModbus(ctx context.Context, logger *zap.SugaredLogger, port string, baud int, slaveID byte, max int) (*ModbusDriver, error) {
	d := &ModbusDriver{
		logger: logger,
		max:    max,
		client: &modbus.Client{
			Port:     port,
			BaudRate: baud,
			SlaveId:  slaveID,
			Logger:   logger,
		},
	}
	d.client.Poll = d.pollOnce
	return d, d.client.Connect(ctx)
}

func (d *ModbusDriver) pollOnce() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	results, err := d.client.ReadInputRegisters(faultRegister, 1)
	if err != nil {
		return err
	}
	fault := binary.BigEndian.Uint16(results)
	if fault != d.fault {
		d.logger.Warnw("motor driver fault changed", "old", d.fault, "new", fault)
		d.fault = fault
	}
	return nil
}

// Fault returns the most recently polled fault code.
func (d *ModbusDriver) Fault() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fault
}

// channelRegisters returns the mode and duty registers for a signed value.
func channelRegisters(value, max int) (mode, duty uint16) {
	switch {
	case value > 0:
		mode = ModeForward
	case value < 0:
		mode = ModeReverse
		value = -value
	default:
		return ModeBrake, 0
	}
	if value > max {
		value = max
	}
	return mode, uint16(value)
}

func (d *ModbusDriver) drive(channel, value int) error {
	mode, duty := channelRegisters(value, d.max)
	d.mu.Lock()
	defer d.mu.Unlock()
	addr := uint16(channel * registersPerChannel)
	if _, err := d.client.WriteMultipleRegisters(addr, registersPerChannel, modbus.Registers(mode, duty)); err != nil {
		return errors.Wrapf(err, "writing channel %d", channel)
	}
	return nil
}

// Channel returns the Motor for channel 0 or 1.
func (d *ModbusDriver) Channel(channel int) Motor {
	return modbusChannel{d, channel}
}

// Close brakes both channels and releases the port.
func (d *ModbusDriver) Close() error {
	for ch := 0; ch < 2; ch++ {
		if err := d.drive(ch, 0); err != nil {
			d.logger.Warnw("braking on close", "channel", ch, "error", err)
		}
	}
	return d.client.Close()
}

type modbusChannel struct {
	d       *ModbusDriver
	channel int
}

func (c modbusChannel) Drive(value int) error {
	return c.d.drive(c.channel, value)
}
