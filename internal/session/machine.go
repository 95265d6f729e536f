package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sebasr/bpmetrics/internal/live"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/sensor"
)

// RecordSink receives finalized records. Submit must not block the caller.
type RecordSink interface {
	Submit(rec *models.WatchRecord)
}

// RecordSinkFunc adapts a function to RecordSink
type RecordSinkFunc func(rec *models.WatchRecord)

// Submit calls f(rec)
func (f RecordSinkFunc) Submit(rec *models.WatchRecord) { f(rec) }

// Snapshot is the externally observable session status
type Snapshot struct {
	State        State               `json:"state"`
	Availability sensor.Availability `json:"availability"`
	LiveBPM      float64             `json:"liveBpm"`
	ElapsedMs    int64               `json:"elapsedMs"`
	Points       int                 `json:"points"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
}

// Options configures a Machine
type Options struct {
	Controller sensor.Controller
	Clock      sensor.Clock
	Sink       RecordSink
	Logger     *log.Logger
	Metrics    *metrics.Collector
}

// Machine is the recording session state machine. All mutations run on the
// goroutine executing Run; sensor callbacks and commands are queued onto it
// and wait for their turn. Start and Stop hold the loop while they await the
// controller, so callbacks arriving meanwhile are handled afterwards.
type Machine struct {
	ctrl    sensor.Controller
	clock   sensor.Clock
	sink    RecordSink
	logger  *log.Logger
	metrics *metrics.Collector

	events chan func()
	done   chan struct{}

	// owned by the event loop
	state        State
	availability sensor.Availability
	acc          Accumulator
	startWall    time.Time

	stateCell    *live.Cell[State]
	bpmCell      *live.Cell[float64]
	elapsedCell  *live.Cell[time.Duration]
	snapshotCell *live.Cell[Snapshot]
}

// NewMachine creates a machine in the Inactive state. Call Run to start it.
func NewMachine(opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = sensor.NewSystemClock()
	}

	return &Machine{
		ctrl:         opts.Controller,
		clock:        opts.Clock,
		sink:         opts.Sink,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		events:       make(chan func()),
		done:         make(chan struct{}),
		state:        Inactive,
		stateCell:    live.NewCell(Inactive),
		bpmCell:      live.NewCell(0.0),
		elapsedCell:  live.NewCell(time.Duration(0)),
		snapshotCell: live.NewCell(Snapshot{State: Inactive}),
	}
}

// Run processes queued events until ctx is cancelled. It must be called once.
func (m *Machine) Run(ctx context.Context) error {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.events:
			ev()
		}
	}
}

// exec queues fn onto the event loop and waits until it has run
func (m *Machine) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ev := func() {
		defer close(finished)
		fn()
	}

	select {
	case m.events <- ev:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// OnAvailability implements sensor.Listener
func (m *Machine) OnAvailability(a sensor.Availability) {
	if err := m.HandleAvailability(context.Background(), a); err != nil {
		m.logger.Printf("Session: dropped availability %s: %v", a, err)
	}
}

// OnSamples implements sensor.Listener
func (m *Machine) OnSamples(samples []sensor.Sample) {
	if err := m.HandleSamples(context.Background(), samples); err != nil {
		m.logger.Printf("Session: dropped %d samples: %v", len(samples), err)
	}
}

// HandleAvailability applies a sensor availability change
func (m *Machine) HandleAvailability(ctx context.Context, a sensor.Availability) error {
	return m.exec(ctx, func() { m.handleAvailability(a) })
}

// HandleSamples updates the live bpm and buffers samples while recording
func (m *Machine) HandleSamples(ctx context.Context, samples []sensor.Sample) error {
	return m.exec(ctx, func() { m.handleSamples(samples) })
}

// Start begins a recording session. It is only allowed from Ready and waits
// for the controller to acknowledge the exercise; on failure the machine
// stays Ready.
func (m *Machine) Start(ctx context.Context) error {
	var err error
	if execErr := m.exec(ctx, func() { err = m.start(ctx) }); execErr != nil {
		return execErr
	}
	return err
}

// Stop ends the recording session and returns the finalized record, which is
// also handed to the sink. The record is nil when nothing was buffered. If the
// controller fails to end the exercise the machine stays Recording.
func (m *Machine) Stop(ctx context.Context) (*models.WatchRecord, error) {
	var (
		rec *models.WatchRecord
		err error
	)
	if execErr := m.exec(ctx, func() { rec, err = m.stop(ctx) }); execErr != nil {
		return nil, execErr
	}
	return rec, err
}

// State returns the current state
func (m *Machine) State() State {
	return m.stateCell.Get()
}

// LiveBPM returns the latest sensor reading; 0 means no reading
func (m *Machine) LiveBPM() float64 {
	return m.bpmCell.Get()
}

// Elapsed returns the offset of the latest buffered point of the current or last session
func (m *Machine) Elapsed() time.Duration {
	return m.elapsedCell.Get()
}

// Snapshot returns the current observable status
func (m *Machine) Snapshot() Snapshot {
	return m.snapshotCell.Get()
}

// WatchState subscribes to state changes
func (m *Machine) WatchState() (<-chan State, func()) {
	return m.stateCell.Subscribe()
}

// WatchLiveBPM subscribes to live bpm readings
func (m *Machine) WatchLiveBPM() (<-chan float64, func()) {
	return m.bpmCell.Subscribe()
}

// WatchSnapshot subscribes to status snapshots
func (m *Machine) WatchSnapshot() (<-chan Snapshot, func()) {
	return m.snapshotCell.Subscribe()
}

func (m *Machine) handleAvailability(a sensor.Availability) {
	m.availability = a

	next := m.state
	switch a {
	case sensor.Acquiring:
		if m.state == Inactive || m.state == Ready {
			next = Preparing
		}
	case sensor.Available:
		if m.state == Inactive || m.state == Preparing {
			next = Ready
		}
	case sensor.Unavailable:
		if m.state != Recording && m.state != Finalizing {
			next = Inactive
		}
	}

	if next != m.state {
		m.logger.Printf("Session: %s -> %s (sensor %s)", m.state, next, a)
		m.setState(next)
		return
	}
	m.publish()
}

func (m *Machine) handleSamples(samples []sensor.Sample) {
	for _, s := range samples {
		m.bpmCell.Set(s.BPM)

		if m.state != Recording {
			m.metrics.SampleDropped(metrics.DropNotRecording)
			continue
		}
		if reason := m.acc.Accept(s.Uptime, s.BPM); reason != "" {
			m.metrics.SampleDropped(reason)
			continue
		}
		m.metrics.SampleAccepted()
		m.elapsedCell.Set(m.acc.Elapsed())
	}
	m.publish()
}

func (m *Machine) start(ctx context.Context) error {
	if m.state != Ready {
		return invalidTransition(m.state, "start")
	}
	if m.ctrl != nil {
		if err := m.ctrl.BeginExercise(ctx); err != nil {
			m.logger.Printf("Session: begin exercise failed: %v", err)
			return fmt.Errorf("begin exercise: %w", err)
		}
	}

	m.acc.Reset(m.clock.Uptime())
	m.startWall = m.clock.Now()
	m.elapsedCell.Set(0)
	m.logger.Printf("Session: recording started at %s", m.startWall.Format(time.RFC3339))
	m.setState(Recording)
	return nil
}

func (m *Machine) stop(ctx context.Context) (*models.WatchRecord, error) {
	if m.state != Recording {
		return nil, invalidTransition(m.state, "stop")
	}
	if m.ctrl != nil {
		if err := m.ctrl.EndExercise(ctx); err != nil {
			m.logger.Printf("Session: end exercise failed: %v", err)
			return nil, fmt.Errorf("end exercise: %w", err)
		}
	}
	m.setState(Finalizing)

	rec, err := Finalize(uuid.New(), m.acc.Points(), m.startWall, m.endTime())
	m.acc.Reset(0)
	m.setState(Inactive)

	switch {
	case err != nil:
		m.metrics.SessionFailed()
		m.logger.Printf("Session: discarding record: %v", err)
		return nil, fmt.Errorf("finalize record: %w", err)
	case rec == nil:
		m.metrics.SessionEmpty()
		m.logger.Printf("Session: stopped with no data points, no record produced")
		return nil, nil
	}

	m.metrics.SessionFinalized(len(rec.DataPoints))
	m.logger.Printf("Session: finalized record %s with %d points over %dms", rec.ID, len(rec.DataPoints), rec.Duration())
	if m.sink != nil {
		m.sink.Submit(rec)
	}
	return rec, nil
}

// endTime returns the wall-clock stop time. If the wall clock was stepped back
// during the session, the start time plus the monotonic session length is used.
func (m *Machine) endTime() time.Time {
	end := m.clock.Now()
	if end.UnixMilli() > m.startWall.UnixMilli() {
		return end
	}
	length := m.clock.Uptime() - m.acc.Zero()
	if length < time.Millisecond {
		length = time.Millisecond
	}
	return m.startWall.Add(length)
}

func (m *Machine) setState(s State) {
	m.state = s
	m.stateCell.Set(s)
	m.publish()
}

func (m *Machine) publish() {
	snap := Snapshot{
		State:        m.state,
		Availability: m.availability,
		LiveBPM:      m.bpmCell.Get(),
		ElapsedMs:    m.elapsedCell.Get().Milliseconds(),
		Points:       m.acc.Len(),
	}
	if m.state == Recording || m.state == Finalizing {
		started := m.startWall
		snap.StartedAt = &started
	}
	m.snapshotCell.Set(snap)
}
