// Package ipc mirrors the car's state into Redis and accepts commands from it.
package ipc

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/w1xm/rccar_interface/drive"
	"go.uber.org/zap"
)

const (
	// StatusKey is the hash holding the latest drive status.
	StatusKey = "car"
	// CommandChannel carries text commands in the same form as the websocket.
	CommandChannel = "car:command"
)

// StatusChannel is published to after every status write.
var StatusChannel = StatusKey + " status"

// statusFields flattens a status into hash fields.
func statusFields(s drive.Status) map[string]interface{} {
	return map[string]interface{}{
		"preset":    s.Preset.String(),
		"magnitude": s.Magnitude,
		"left":      s.Left,
		"right":     s.Right,
	}
}

type Publisher struct {
	logger *zap.SugaredLogger
	redis  *redis.Client
	mu     sync.Mutex
	ctx    context.Context
	// done is closed when the StatusCallback sender exits.
	done chan struct{}
}

func NewPublisher(ctx context.Context, logger *zap.SugaredLogger, client *redis.Client) *Publisher {
	return &Publisher{logger: logger, redis: client, ctx: ctx}
}

// SendStatus writes s to StatusKey and announces it on StatusChannel.
func (p *Publisher) SendStatus(ctx context.Context, s drive.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pipe := p.redis.Pipeline()
	pipe.HSet(ctx, StatusKey, statusFields(s))
	pipe.Publish(ctx, StatusChannel, s.Preset.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to send status: %w", err)
	}
	return nil
}

// StatusCallback publishes asynchronously so Redis latency never stalls the
// command path. Publishes are applied in order.
func (p *Publisher) StatusCallback() drive.StatusCallback {
	ch := make(chan drive.Status, 16)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.ctx.Done():
				return
			case s := <-ch:
				if err := p.SendStatus(p.ctx, s); err != nil {
					p.logger.Warnw("publishing status", "error", err)
				}
			}
		}
	}()
	return func(s drive.Status) {
		select {
		case ch <- s:
		default:
			p.logger.Warn("status publish queue full; dropping update")
		}
	}
}

// Finish waits for the StatusCallback sender to exit, which happens once the
// publisher's context is done, and then writes s synchronously so it is the
// last status Redis sees.
func (p *Publisher) Finish(ctx context.Context, s drive.Status) error {
	if p.done != nil {
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.SendStatus(ctx, s)
}

// Subscribe delivers every message on CommandChannel to handle until ctx is
// done.
func Subscribe(ctx context.Context, logger *zap.SugaredLogger, client *redis.Client, handle func(text string)) error {
	sub := client.Subscribe(ctx, CommandChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribing to %s: %w", CommandChannel, err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					logger.Warn("redis command subscription closed")
					return
				}
				logger.Debugw("redis command", "payload", msg.Payload)
				handle(msg.Payload)
			}
		}
	}()
	return nil
}
