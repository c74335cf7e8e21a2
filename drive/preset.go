package drive

import (
	"fmt"
	"strings"
)

// Preset is a named speed level selectable by command.
type Preset int

const (
	Slow Preset = iota
	Normal
	Fast
)

// Presets lists every preset in ascending order.
var Presets = []Preset{Slow, Normal, Fast}

func (p Preset) String() string {
	switch p {
	case Slow:
		return "slow"
	case Normal:
		return "normal"
	case Fast:
		return "fast"
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

func (p Preset) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Preset) UnmarshalText(text []byte) error {
	v, err := ParsePreset(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePreset accepts the lower-case preset names produced by String.
func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown preset %q", s)
}

// Magnitudes maps each preset to a duty-cycle magnitude in [0, MaxMagnitude].
type Magnitudes struct {
	Slow   int `yaml:"slow"`
	Normal int `yaml:"normal"`
	Fast   int `yaml:"fast"`
}

// DefaultMagnitudes are the levels for an 8-bit PWM range.
var DefaultMagnitudes = Magnitudes{Slow: 100, Normal: 180, Fast: 255}

// Of returns the magnitude for p.
func (m Magnitudes) Of(p Preset) int {
	switch p {
	case Slow:
		return m.Slow
	case Normal:
		return m.Normal
	case Fast:
		return m.Fast
	}
	return 0
}

// Validate checks every magnitude lies within [0, max].
func (m Magnitudes) Validate(max int) error {
	for _, p := range Presets {
		if v := m.Of(p); v < 0 || v > max {
			return fmt.Errorf("%s magnitude %d outside [0, %d]", p, v, max)
		}
	}
	return nil
}
