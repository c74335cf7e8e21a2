package motor

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	gomodbus "github.com/goburrow/modbus"
	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/rccar_interface/internal/modbus"
	"go.uber.org/zap"
)

func TestChannelRegisters(t *testing.T) {
	for _, test := range []struct {
		value      int
		mode, duty uint16
	}{
		{0, ModeBrake, 0},
		{120, ModeForward, 120},
		{-80, ModeReverse, 80},
		{255, ModeForward, 255},
		{-400, ModeReverse, 255},
	} {
		t.Run(fmt.Sprint(test.value), func(t *testing.T) {
			mode, duty := channelRegisters(test.value, 255)
			if mode != test.mode || duty != test.duty {
				t.Errorf("channelRegisters(%d) = (%d, %d), want (%d, %d)", test.value, mode, duty, test.mode, test.duty)
			}
		})
	}
}

func TestRegisters(t *testing.T) {
	got := modbus.Registers(ModeReverse, 0x01ff)
	if diff := cmp.Diff(got, []byte{0x00, 0x02, 0x01, 0xff}); diff != "" {
		t.Errorf("unexpected bytes: got(-)/want(+):\n%s", diff)
	}
}

type registerWrite struct {
	Address, Quantity uint16
	Value             []byte
}

// fakeBus records register writes and serves a fault code from input
// register 0. Methods it does not override panic through the nil embed.
type fakeBus struct {
	gomodbus.Client
	writes []registerWrite
	fault  uint16
	err    error
}

func (f *fakeBus) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.writes = append(f.writes, registerWrite{address, quantity, value})
	return nil, f.err
}

func (f *fakeBus) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return modbus.Registers(f.fault), nil
}

func newFakeDriver(bus *fakeBus) *ModbusDriver {
	return &ModbusDriver{
		logger: zap.NewNop().Sugar(),
		max:    255,
		client: &modbus.Client{Client: bus},
	}
}

func TestModbusDrive(t *testing.T) {
	bus := &fakeBus{}
	d := newFakeDriver(bus)
	if err := d.Channel(0).Drive(120); err != nil {
		t.Fatal(err)
	}
	if err := d.Channel(1).Drive(-300); err != nil {
		t.Fatal(err)
	}
	if err := d.Channel(1).Drive(0); err != nil {
		t.Fatal(err)
	}
	want := []registerWrite{
		{0, 2, []byte{0, ModeForward, 0, 120}},
		{2, 2, []byte{0, ModeReverse, 0, 255}},
		{2, 2, []byte{0, ModeBrake, 0, 0}},
	}
	if diff := cmp.Diff(bus.writes, want); diff != "" {
		t.Errorf("unexpected writes: got(-)/want(+):\n%s", diff)
	}
}

func TestModbusDriveError(t *testing.T) {
	bus := &fakeBus{err: errors.New("timeout")}
	err := newFakeDriver(bus).Channel(1).Drive(10)
	if err == nil || !strings.Contains(err.Error(), "writing channel 1") {
		t.Errorf("Drive error = %v, want one naming channel 1", err)
	}
}

func TestModbusPollFault(t *testing.T) {
	bus := &fakeBus{fault: 7}
	d := newFakeDriver(bus)
	if err := d.pollOnce(); err != nil {
		t.Fatal(err)
	}
	if got := d.Fault(); got != 7 {
		t.Errorf("Fault() = %d, want 7", got)
	}
	bus.fault = 0
	if err := d.pollOnce(); err != nil {
		t.Fatal(err)
	}
	if got := d.Fault(); got != 0 {
		t.Errorf("Fault() after clear = %d, want 0", got)
	}
	bus.err = errors.New("crc error")
	if err := d.pollOnce(); err == nil {
		t.Error("pollOnce succeeded on a bus error")
	}
}

func TestModbusCloseBrakes(t *testing.T) {
	bus := &fakeBus{}
	d := newFakeDriver(bus)
	if err := d.Channel(0).Drive(50); err != nil {
		t.Fatal(err)
	}
	bus.writes = nil
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	want := []registerWrite{
		{0, 2, []byte{0, ModeBrake, 0, 0}},
		{2, 2, []byte{0, ModeBrake, 0, 0}},
	}
	if diff := cmp.Diff(bus.writes, want); diff != "" {
		t.Errorf("unexpected writes: got(-)/want(+):\n%s", diff)
	}
}
