package biostate

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/go-biokey/biokey/pkg/biotypes"
)

// Tracker holds the last observed snapshot and classifies each new sample
// against it. The snapshot swap is a single atomic pointer assignment, so a
// concurrent reader never sees a torn snapshot.
type Tracker struct {
	sensor Sensor
	logger *slog.Logger
	now    func() time.Time

	last atomic.Pointer[biotypes.BiometricSnapshot]
}

func NewTracker(sensor Sensor, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		sensor: sensor,
		logger: logger,
		now:    time.Now,
	}
}

// Baseline takes the initial sample after start. It is never emitted as a
// change. A failed baseline is logged and retried implicitly by the next
// trigger, which then acts as the baseline.
func (t *Tracker) Baseline(ctx context.Context) {
	snap, err := t.sensor.Sample(ctx)
	if err != nil {
		t.logger.Warn("biostate: baseline sample failed", "err", err)
		return
	}

	t.last.Store(&snap)
}

// Observe takes a new sample, diffs it against the previous one, and returns
// the classified change, if any. Sampling is best-effort telemetry: a sample
// that cannot be taken is treated as no observable change this cycle and
// logged, never escalated.
func (t *Tracker) Observe(ctx context.Context) (biotypes.ChangeEvent, bool) {
	current, err := t.sensor.Sample(ctx)
	if err != nil {
		t.logger.Warn("biostate: sample failed, treating as no change", "err", err)
		return biotypes.ChangeEvent{}, false
	}

	previous := t.last.Swap(&current)
	if previous == nil {
		// No baseline: this sample becomes it.
		return biotypes.ChangeEvent{}, false
	}

	changeType, changed := Classify(*previous, current)
	if !changed {
		return biotypes.ChangeEvent{}, false
	}

	event := biotypes.ChangeEvent{
		ID:         uuid.NewString(),
		Timestamp:  t.now(),
		ChangeType: changeType,
		Kind:       current.Kind,
		Available:  current.Available,
		Enrolled:   current.Enrolled,
	}

	t.logger.Debug("biostate: change detected",
		"changeType", changeType.String(),
		"kind", current.Kind.String(),
		"available", current.Available,
		"enrolled", current.Enrolled,
		"signal", current.Fingerprint.Strength.String(),
	)

	return event, true
}

// Last returns the last stored snapshot, if any.
func (t *Tracker) Last() (biotypes.BiometricSnapshot, bool) {
	p := t.last.Load()
	if p == nil {
		return biotypes.BiometricSnapshot{}, false
	}
	return *p, true
}

// Reset discards the stored snapshot so a later start begins from a fresh
// baseline instead of comparing across an idle gap.
func (t *Tracker) Reset() {
	t.last.Store(nil)
}

// Classify diffs two snapshots and returns the change type per the priority
// order below. Multiple conditions can hold at once; the first match wins as
// a deliberate tie-break. Identical snapshots produce no classification.
func Classify(previous, current biotypes.BiometricSnapshot) (biotypes.ChangeType, bool) {
	switch {
	case !previous.Available && current.Available:
		return biotypes.BiometricEnabled, true
	case previous.Available && !current.Available:
		return biotypes.BiometricDisabled, true
	case previous.Available && current.Available &&
		!previous.Fingerprint.Equal(current.Fingerprint):
		return biotypes.EnrollmentChanged, true
	case previous.Available && current.Available &&
		previous.Kind != current.Kind:
		return biotypes.HardwareChanged, true
	case previous.Enrolled != current.Enrolled ||
		previous.Kind != current.Kind ||
		!previous.Fingerprint.Equal(current.Fingerprint):
		return biotypes.StateChanged, true
	default:
		return 0, false
	}
}
