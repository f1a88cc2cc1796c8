package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/couchcryptid/wetterarena/internal/observability"
)

// Cycle runs the collector and builder back to back, as one daemon tick.
type Cycle struct {
	collector *Collector
	builder   *Builder
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewCycle wires a daemon cycle.
func NewCycle(collector *Collector, builder *Builder, metrics *observability.Metrics) *Cycle {
	return &Cycle{
		collector: collector,
		builder:   builder,
		metrics:   metrics,
	}
}

// RunOnce executes collect-then-build with the default collection range.
// A collect failure skips the build and leaves the previous artifacts up.
func (c *Cycle) RunOnce(ctx context.Context) error {
	c.metrics.CycleRunning.Set(1)
	defer c.metrics.CycleRunning.Set(0)

	if err := c.collector.Run(ctx, Range{}); err != nil {
		return err
	}
	if err := c.builder.Run(ctx); err != nil {
		return err
	}

	c.ready.Store(true)
	c.metrics.LastSuccess.SetToCurrentTime()
	return nil
}

// CheckReadiness returns nil once at least one full cycle has completed.
func (c *Cycle) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no collect-build cycle has completed yet")
	}
	return nil
}
