// Package motor drives the two wheels of the car.
package motor

// Motor is a single bidirectional drive channel.
//
// Drive takes a signed value already bounded by the controller's maximum
// magnitude. Positive runs the channel forward in its own frame, negative
// reverses it, and zero brakes it by shorting the windings rather than letting
// it coast.
type Motor interface {
	Drive(value int) error
}

// Closer is implemented by backends that hold hardware resources.
type Closer interface {
	Close() error
}

// Null discards every command. It stands in for a channel with nothing wired.
type Null struct{}

func (Null) Drive(int) error { return nil }
