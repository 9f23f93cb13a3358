package overlay

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Controller is the goroutine-safe owner of a Machine. Inbound data
// callbacks, timer callbacks and user close requests may arrive on
// different goroutines; each transition runs to completion under the
// lock, and its effects are applied to the sink in order before the lock
// is released.
type Controller struct {
	mu      sync.Mutex
	machine *Machine
	sink    Sink
	log     logrus.FieldLogger
}

// NewController creates a hidden overlay controller.
func NewController(clk clock.Clock, delay time.Duration, sink Sink, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Controller{sink: sink, log: log}
	c.machine = NewMachine(clk, delay, c.expire)
	return c
}

// RequestShow displays content unless a visualization is already showing.
func (c *Controller) RequestShow(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	effects := c.machine.Show(content)
	if effects == nil {
		c.log.Debug("visualization request ignored")
		return
	}
	c.log.WithField("bytes", len(content)).Info("showing visualization")
	c.dispatch(effects)
}

// RequestClose hides the overlay. It is safe to call any number of times.
func (c *Controller) RequestClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	effects := c.machine.Close()
	if effects == nil {
		return
	}
	c.log.Info("visualization closed")
	c.dispatch(effects)
}

// CurrentState returns the render state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// Dispose cancels any pending timer. Must be called once when the owning
// session ends.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.Dispose()
}

func (c *Controller) expire(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	effects := c.machine.Expire(generation)
	if effects == nil {
		return
	}
	c.log.Info("visualization timed out")
	c.dispatch(effects)
}

func (c *Controller) dispatch(effects []Effect) {
	if c.sink == nil {
		return
	}
	for _, e := range effects {
		c.sink.Apply(e)
	}
}
