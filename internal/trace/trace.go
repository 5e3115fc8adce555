// Package trace records per-run execution traces: an append-only list of step
// records with input/output snapshots. Snapshots are redacted at read time so
// secrets never leave the package; the stored values are untouched.
package trace

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the overall result of a trace or a single step.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"

	StepCompleted Status = "COMPLETED"
	StepFailed    Status = "FAILED"
)

// ErrTraceClosed is returned on append after a trace has closed. Appending to
// a closed trace is a logic bug in the caller, not a user-facing condition.
var ErrTraceClosed = errors.New("trace closed")

// Step is one immutable record inside a trace.
type Step struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Input     map[string]any `json:"payload_in,omitempty"`
	Output    map[string]any `json:"payload_out,omitempty"`
}

// Trace is the record of one pipeline run.
type Trace struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status,omitempty"`
	Steps     []Step        `json:"steps"`

	closed bool
}

// Closed reports whether the trace has reached a terminal status.
func (t *Trace) Closed() bool { return t.closed }

// Recorder accumulates traces for pipeline runs. Safe for concurrent use;
// reads may observe a run mid-flight.
type Recorder struct {
	mu     sync.RWMutex
	traces map[string]*Trace
	order  []string
	now    func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		traces: make(map[string]*Trace),
		now:    time.Now,
	}
}

// Begin opens a new trace for the given session and returns its ID.
func (r *Recorder) Begin(sessionID string) string {
	id := "exe_" + uuid.New().String()
	t := &Trace{
		ID:        id,
		SessionID: sessionID,
		StartedAt: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[id] = t
	r.order = append(r.order, id)
	return id
}

// Append adds a step record. A step with status StepFailed closes the trace
// with StatusFailure immediately; any later append fails with ErrTraceClosed.
func (r *Recorder) Append(traceID, name string, status Status, input, output map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.traces[traceID]
	if !ok {
		return fmt.Errorf("trace %s not found", traceID)
	}
	if t.closed {
		return ErrTraceClosed
	}

	t.Steps = append(t.Steps, Step{
		Name:      name,
		Status:    status,
		Timestamp: r.now(),
		Input:     input,
		Output:    output,
	})

	if status == StepFailed {
		r.close(t, StatusFailure)
	}
	return nil
}

// Close marks an open trace as successfully completed. Closing an already
// closed trace fails with ErrTraceClosed.
func (r *Recorder) Close(traceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.traces[traceID]
	if !ok {
		return fmt.Errorf("trace %s not found", traceID)
	}
	if t.closed {
		return ErrTraceClosed
	}
	r.close(t, StatusSuccess)
	return nil
}

func (r *Recorder) close(t *Trace, status Status) {
	t.Status = status
	t.Duration = r.now().Sub(t.StartedAt)
	t.closed = true
}

// Get returns a redacted copy of the trace.
func (r *Recorder) Get(traceID string) (*Trace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.traces[traceID]
	if !ok {
		return nil, false
	}
	return redactedCopy(t), true
}

// List returns redacted copies of all traces, most recent first.
func (r *Recorder) List() []*Trace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Trace, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, redactedCopy(r.traces[r.order[i]]))
	}
	return out
}

func redactedCopy(t *Trace) *Trace {
	cp := *t
	cp.Steps = make([]Step, len(t.Steps))
	for i, s := range t.Steps {
		s.Output = Redact(s.Output)
		cp.Steps[i] = s
	}
	return &cp
}
