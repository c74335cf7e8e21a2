// Package command parses the car's text protocol.
//
// A command is one complete text message. Two forms exist:
//
//	M:<left>,<right>   raw signed magnitudes for each motor
//	<word>             one of left, right, up, down, stop,
//	                   slow-speed, normal-speed, fast-speed
//
// Matching is exact and case-sensitive; nothing is trimmed.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedDifferential is returned for an M: command whose payload is
	// not exactly two signed decimal integers.
	ErrMalformedDifferential = errors.New("malformed differential command")
	// ErrUnrecognized is returned for text outside the vocabulary.
	ErrUnrecognized = errors.New("unrecognized command")
)

// Kind identifies a command variant.
type Kind int

const (
	Forward Kind = iota
	Backward
	TurnLeft
	TurnRight
	Stop
	SetSlow
	SetNormal
	SetFast
	Manual
)

func (k Kind) String() string {
	switch k {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case TurnLeft:
		return "turn-left"
	case TurnRight:
		return "turn-right"
	case Stop:
		return "stop"
	case SetSlow:
		return "set-slow"
	case SetNormal:
		return "set-normal"
	case SetFast:
		return "set-fast"
	case Manual:
		return "manual"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a parsed command. Left and Right are only meaningful for Manual.
type Command struct {
	Kind        Kind
	Left, Right int
}

func (c Command) String() string {
	if c.Kind == Manual {
		return fmt.Sprintf("M:%d,%d", c.Left, c.Right)
	}
	for word, k := range vocabulary {
		if k == c.Kind {
			return word
		}
	}
	return c.Kind.String()
}

// DifferentialPrefix introduces a raw two-channel command.
const DifferentialPrefix = "M:"

var vocabulary = map[string]Kind{
	"up":           Forward,
	"down":         Backward,
	"left":         TurnLeft,
	"right":        TurnRight,
	"stop":         Stop,
	"slow-speed":   SetSlow,
	"normal-speed": SetNormal,
	"fast-speed":   SetFast,
}

// Parse converts one text message into a Command.
func Parse(text string) (Command, error) {
	if strings.HasPrefix(text, DifferentialPrefix) {
		left, right, err := parseDifferential(text[len(DifferentialPrefix):])
		if err != nil {
			return Command{}, fmt.Errorf("%w: %q: %v", ErrMalformedDifferential, text, err)
		}
		return Command{Kind: Manual, Left: left, Right: right}, nil
	}
	if k, ok := vocabulary[text]; ok {
		return Command{Kind: k}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
}

func parseDifferential(payload string) (int, int, error) {
	parts := strings.Split(payload, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want 2 values, got %d", len(parts))
	}
	var values [2]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, err
		}
		values[i] = v
	}
	return values[0], values[1], nil
}

// ManualText builds the wire form of a differential command.
func ManualText(left, right int) string {
	return Command{Kind: Manual, Left: left, Right: right}.String()
}
