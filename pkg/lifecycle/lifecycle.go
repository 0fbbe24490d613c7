// Package lifecycle drives biometric state sampling from external lifecycle
// signals. Sampling is strictly reactive: the controller never schedules
// work of its own, so an idle process costs nothing.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-biokey/biokey/pkg/biostate"
	"github.com/go-biokey/biokey/pkg/biotypes"
)

// EventSink receives classified change events. Host adapters fan one Emit
// call out to however many transports they need; the core calls it exactly
// once per event.
type EventSink interface {
	Emit(event biotypes.ChangeEvent)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(event biotypes.ChangeEvent)

func (f EventSinkFunc) Emit(event biotypes.ChangeEvent) {
	f(event)
}

// Controller reference-counts listeners and runs the tracker while at least
// one is attached. Sampling starts on the 0→1 listener transition and stops
// on N→0, which makes repeated start/stop calls idempotent.
type Controller struct {
	tracker *biostate.Tracker
	sink    EventSink
	logger  *slog.Logger

	mu        sync.Mutex
	listeners int
	active    bool
}

func NewController(tracker *biostate.Tracker, sink EventSink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		tracker: tracker,
		sink:    sink,
		logger:  logger,
	}
}

// AddListener registers one listener. The first listener activates sampling
// and takes the baseline snapshot, which is not emitted as a change.
func (c *Controller) AddListener(ctx context.Context) {
	c.mu.Lock()
	c.listeners++
	activate := c.listeners == 1 && !c.active
	if activate {
		c.active = true
	}
	c.mu.Unlock()

	if activate {
		c.logger.Debug("lifecycle: sampling activated")
		c.tracker.Baseline(ctx)
	}
}

// RemoveListener drops one listener. The last removal deactivates sampling
// and discards the stored snapshot; it does not abort a sample already
// dispatched.
func (c *Controller) RemoveListener() {
	c.mu.Lock()
	if c.listeners > 0 {
		c.listeners--
	}
	deactivate := c.listeners == 0 && c.active
	if deactivate {
		c.active = false
	}
	c.mu.Unlock()

	if deactivate {
		c.logger.Debug("lifecycle: sampling deactivated")
		c.tracker.Reset()
	}
}

// OnLifecycleSignal handles one external trigger (app foregrounded, host
// activity resumed). While active it takes a sample and emits any classified
// change; while idle it does nothing.
func (c *Controller) OnLifecycleSignal(ctx context.Context) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if !active {
		return
	}

	event, changed := c.tracker.Observe(ctx)
	if !changed {
		return
	}

	if c.sink != nil {
		c.sink.Emit(event)
	}
}

// Active reports whether sampling is currently enabled.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Listeners returns the current listener count.
func (c *Controller) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners
}
