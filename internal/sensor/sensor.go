// Package sensor defines the heart-rate sensor collaborator consumed by the
// watch session, and an emulated sensor that implements it.
package sensor

import (
	"context"
	"time"
)

// Availability is the sensor's reported readiness
type Availability int

const (
	// Unavailable means the sensor cannot deliver readings
	Unavailable Availability = iota
	// Acquiring means the sensor is searching for a signal
	Acquiring
	// Available means readings are flowing
	Available
)

// String returns the lower-case availability name
func (a Availability) String() string {
	switch a {
	case Unavailable:
		return "unavailable"
	case Acquiring:
		return "acquiring"
	case Available:
		return "available"
	default:
		return "unknown"
	}
}

// Sample is one raw reading stamped with the device uptime clock
type Sample struct {
	Uptime time.Duration
	BPM    float64
}

// Listener receives sensor callbacks
type Listener interface {
	OnAvailability(Availability)
	OnSamples([]Sample)
}

// Controller starts and stops an exercise on the sensor side. Session start
// and stop commands wait for these acknowledgements.
type Controller interface {
	BeginExercise(ctx context.Context) error
	EndExercise(ctx context.Context) error
}

// Clock provides wall-clock time and monotonic device uptime
type Clock interface {
	Now() time.Time
	Uptime() time.Duration
}

// SystemClock is a Clock backed by the process monotonic clock
type SystemClock struct {
	boot time.Time
}

// NewSystemClock returns a clock whose uptime counts from now
func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

// Now returns the current wall-clock time
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Uptime returns the monotonic time since the clock was created
func (c *SystemClock) Uptime() time.Duration {
	return time.Since(c.boot)
}

// MarshalText encodes the availability by name
func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
