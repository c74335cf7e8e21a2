// Package modbus wraps a Modbus RTU client with a reconnect and poll loop.
package modbus

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"
)

type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Client struct {
	Port string
	// BaudRate defaults to 19200
	BaudRate int
	SlaveId  byte
	// PollInterval defaults to 100ms
	PollInterval time.Duration

	// Poll function to be called in a loop while the connection is active
	Poll func() error

	Logger *zap.SugaredLogger

	handler modbusHandler
	modbus.Client
}

func (c *Client) Connect(ctx context.Context) error {
	if c.BaudRate == 0 {
		c.BaudRate = 19200
	}
	if c.PollInterval == 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	handler := modbus.NewRTUClientHandler(c.Port)
	handler.BaudRate = c.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = c.SlaveId
	c.handler = handler

	c.Client = modbus.NewClient(c.handler)
	go c.reconnectLoop(ctx)
	return nil
}

func (c *Client) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}

		err := c.handler.Connect()
		if err != nil {
			c.Logger.Warnw("opening modbus port", "port", c.Port, "error", err)
			continue
		}
		c.Logger.Infow("opened modbus port", "port", c.Port)
		if err := c.watch(ctx); err != nil {
			c.Logger.Warnw("watching modbus port", "port", c.Port, "error", err)
		}
	}
}

func (c *Client) watch(ctx context.Context) error {
	defer c.handler.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.PollInterval):
		}
		if c.Poll == nil {
			continue
		}
		if err := c.Poll(); err != nil {
			return err
		}
	}
}

// Close closes the underlying port. The reconnect loop stops with its context.
func (c *Client) Close() error {
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// Registers packs 16-bit values big-endian for a multiple-register write.
func Registers(values ...uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}
