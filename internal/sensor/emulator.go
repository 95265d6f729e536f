package sensor

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	// ErrAlreadyRegistered is returned when a second listener is registered
	ErrAlreadyRegistered = errors.New("sensor listener already registered")

	// ErrNotRegistered is returned when the emulator has no listener
	ErrNotRegistered = errors.New("sensor listener not registered")
)

const (
	minWalkBPM = 40.0
	maxWalkBPM = 200.0
)

// EmulatorConfig tunes the emulated sensor
type EmulatorConfig struct {
	Interval    time.Duration // time between sample batches
	Warmup      time.Duration // time spent Acquiring before Available
	BaseBPM     float64       // starting point of the random walk
	Seed        uint64
	DropRate    float64 // probability that a sample reads 0
	ShuffleRate float64 // probability that a batch is delivered in reverse order
}

// DefaultEmulatorConfig returns the settings used by the watch agent
func DefaultEmulatorConfig() EmulatorConfig {
	return EmulatorConfig{
		Interval:    time.Second,
		Warmup:      3 * time.Second,
		BaseBPM:     72,
		Seed:        1,
		DropRate:    0.05,
		ShuffleRate: 0.1,
	}
}

// Emulator is a simulated heart-rate sensor producing batched samples along a
// bounded random walk.
type Emulator struct {
	cfg    EmulatorConfig
	clock  Clock
	logger *log.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	bpm      float64
	listener Listener
	cancel   context.CancelFunc
	done     chan struct{}
	rearm    chan struct{}
	active   bool
}

// NewEmulator creates an emulator using clock for sample timestamps
func NewEmulator(cfg EmulatorConfig, clock Clock, logger *log.Logger) *Emulator {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BaseBPM <= 0 {
		cfg.BaseBPM = 72
	}
	return &Emulator{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		bpm:    cfg.BaseBPM,
	}
}

// Register attaches listener and starts producing callbacks
func (e *Emulator) Register(listener Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener != nil {
		return ErrAlreadyRegistered
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.listener = listener
	e.cancel = cancel
	e.done = make(chan struct{})
	e.rearm = make(chan struct{}, 1)
	go e.run(ctx, listener, e.done, e.rearm)

	return nil
}

// Unregister stops callbacks and reports the sensor as unavailable
func (e *Emulator) Unregister() error {
	e.mu.Lock()
	listener, cancel, done := e.listener, e.cancel, e.done
	e.listener, e.cancel, e.done, e.rearm = nil, nil, nil, nil
	e.active = false
	e.mu.Unlock()

	if listener == nil {
		return ErrNotRegistered
	}
	cancel()
	<-done
	listener.OnAvailability(Unavailable)
	return nil
}

// BeginExercise marks the exercise active
func (e *Emulator) BeginExercise(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ErrNotRegistered
	}
	e.active = true
	return nil
}

// EndExercise marks the exercise finished. The sensor then warms up again
// and reports Acquiring followed by Available, from its own goroutine.
func (e *Emulator) EndExercise(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active && e.rearm != nil {
		select {
		case e.rearm <- struct{}{}:
		default:
		}
	}
	e.active = false
	return nil
}

// ExerciseActive reports whether an exercise is in progress
func (e *Emulator) ExerciseActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Emulator) run(ctx context.Context, listener Listener, done, rearm chan struct{}) {
	defer close(done)

	if !e.warmup(ctx, listener) {
		return
	}
	e.logger.Printf("Sensor emulator available (interval=%s, base=%.0f bpm)", e.cfg.Interval, e.cfg.BaseBPM)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rearm:
			if !e.warmup(ctx, listener) {
				return
			}
		case <-ticker.C:
			listener.OnSamples(e.NextBatch())
		}
	}
}

// warmup reports Acquiring, waits out the warm-up period and reports
// Available. It returns false if ctx ended first.
func (e *Emulator) warmup(ctx context.Context, listener Listener) bool {
	listener.OnAvailability(Acquiring)
	if e.cfg.Warmup > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(e.cfg.Warmup):
		}
	}
	listener.OnAvailability(Available)
	return true
}

// NextBatch produces the next batch of samples ending at the current uptime
func (e *Emulator) NextBatch() []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Uptime()
	n := 1 + e.rng.IntN(3)
	step := e.cfg.Interval / time.Duration(n)

	batch := make([]Sample, n)
	for i := 0; i < n; i++ {
		e.bpm += e.rng.NormFloat64() * 2
		e.bpm = min(max(e.bpm, minWalkBPM), maxWalkBPM)

		reading := e.bpm
		if e.rng.Float64() < e.cfg.DropRate {
			reading = 0
		}
		batch[i] = Sample{
			Uptime: now - time.Duration(n-1-i)*step,
			BPM:    reading,
		}
	}

	if n > 1 && e.rng.Float64() < e.cfg.ShuffleRate {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			batch[i], batch[j] = batch[j], batch[i]
		}
	}
	return batch
}
