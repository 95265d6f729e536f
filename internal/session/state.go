// Package session implements the watch-side recording session: the state
// machine, the sample accumulator and the record aggregator.
package session

import (
	"errors"
	"fmt"
)

// State is the recording session state
type State int

const (
	// Inactive means no sensor signal and no session
	Inactive State = iota
	// Preparing means the sensor is acquiring a signal
	Preparing
	// Ready means the sensor is available and a session can start
	Ready
	// Recording means samples are being buffered
	Recording
	// Finalizing means the sensor acknowledged a stop and the record is being built
	Finalizing
)

var stateNames = map[State]string{
	Inactive:   "inactive",
	Preparing:  "preparing",
	Ready:      "ready",
	Recording:  "recording",
	Finalizing: "finalizing",
}

// String returns the lower-case state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is returned when a command is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrStopped is returned when the machine's event loop is not running
	ErrStopped = errors.New("session machine stopped")
)

func invalidTransition(from State, command string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, command, from)
}
