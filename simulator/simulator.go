// Package simulator models a differential-drive car so the server can run
// without hardware.
package simulator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/w1xm/rccar_interface/motor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Wheel speed in m/s at full magnitude
	maxSpeed = 0.5
	// Maximum acceleration while driving, m/s^2
	maxAccel = 1.0
	// Deceleration with the windings shorted, m/s^2
	brakeAccel = 4.0
	// Distance between the wheels in meters
	wheelBase = 0.15
	// Discrete simulation step size
	stepSize = 25 * time.Millisecond
	// Interval between status reports
	reportInterval = 200 * time.Millisecond
)

type Status struct {
	// Commanded values per wheel
	CommandLeft, CommandRight int
	// Wheel surface speeds in m/s
	LeftSpeed, RightSpeed float64
	// Pose relative to the start, meters and degrees counter-clockwise
	X, Y, Heading float64
	// Odometer in meters
	Distance float64
}

type StatusCallback func(status Status)

type Simulator struct {
	logger         *zap.SugaredLogger
	max            int
	statusCallback StatusCallback

	mu     sync.Mutex
	status Status
	last   Status
}

// New returns a simulator whose wheels accept values in [-max, max].
func New(logger *zap.SugaredLogger, max int, statusCallback StatusCallback) *Simulator {
	return &Simulator{logger: logger, max: max, statusCallback: statusCallback}
}

type wheel struct {
	s     *Simulator
	right bool
}

func (w wheel) Drive(value int) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.right {
		w.s.status.CommandRight = value
	} else {
		w.s.status.CommandLeft = value
	}
	return nil
}

func (s *Simulator) Left() motor.Motor  { return wheel{s, false} }
func (s *Simulator) Right() motor.Motor { return wheel{s, true} }

func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Simulator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.NewTicker(stepSize)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.step(stepSize.Seconds())
		}
	})
	g.Go(func() error {
		t := time.NewTicker(reportInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.report()
		}
	})
	return g.Wait()
}

func (s *Simulator) report() {
	s.mu.Lock()
	status := s.status
	changed := status != s.last
	s.last = status
	s.mu.Unlock()
	if !changed {
		return
	}
	s.logger.Debugw("simulated car", "x", status.X, "y", status.Y, "heading", status.Heading)
	if s.statusCallback != nil {
		s.statusCallback(status)
	}
}

// target converts a commanded value into a wheel speed.
func (s *Simulator) target(value int) float64 {
	return maxSpeed * float64(value) / float64(s.max)
}

// servo moves speed toward target by at most accel*dt.
func servo(speed, target, accel, dt float64) float64 {
	delta := math.Abs(target - speed)
	if delta > accel*dt {
		delta = accel * dt
	}
	if target < speed {
		delta = -delta
	}
	return speed + delta
}

func wheelStep(speed float64, value int, target, dt float64) float64 {
	if value == 0 {
		return servo(speed, 0, brakeAccel, dt)
	}
	return servo(speed, target, maxAccel, dt)
}

func (s *Simulator) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.status
	st.LeftSpeed = wheelStep(st.LeftSpeed, st.CommandLeft, s.target(st.CommandLeft), dt)
	st.RightSpeed = wheelStep(st.RightSpeed, st.CommandRight, s.target(st.CommandRight), dt)

	v := (st.LeftSpeed + st.RightSpeed) / 2
	omega := (st.RightSpeed - st.LeftSpeed) / wheelBase
	heading := st.Heading * math.Pi / 180
	st.X += v * math.Cos(heading) * dt
	st.Y += v * math.Sin(heading) * dt
	st.Distance += math.Abs(v) * dt
	heading += omega * dt
	st.Heading = math.Mod(heading*180/math.Pi+360, 360)
}
