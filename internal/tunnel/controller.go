package tunnel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/wgman/internal/history"
	"github.com/loykin/wgman/internal/metrics"
)

// Store is the persisted record of the active configuration.
type Store interface {
	Read() (name string, ok bool, err error)
	Write(name string) error
	Clear() error
}

// Controller moves between Down and Up(name). The store always reflects the last
// transition that succeeded: it is written only after a successful up and cleared
// only after a successful down.
type Controller struct {
	runner  Runner
	store   Store
	sink    history.Sink
	mock    bool
	nowFunc func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithHistory records every transition attempt to sink.
func WithHistory(sink history.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithMock flags recorded history events as simulated.
func WithMock(mock bool) Option {
	return func(c *Controller) { c.mock = mock }
}

func NewController(runner Runner, store Store, opts ...Option) *Controller {
	c := &Controller{runner: runner, store: store, nowFunc: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Active returns the recorded configuration, if any.
func (c *Controller) Active() (string, bool, error) {
	return c.store.Read()
}

// Deactivate brings the recorded configuration down and clears the record.
// It returns the name that was brought down; wasActive is false when nothing was
// recorded. On failure the record is left in place.
func (c *Controller) Deactivate(ctx context.Context) (name string, wasActive bool, err error) {
	name, ok, err := c.store.Read()
	if err != nil {
		return "", false, err
	}
	if !ok {
		slog.Debug("nothing to bring down")
		// an empty run file is a stale record
		if err := c.store.Clear(); err != nil {
			return "", false, err
		}
		return "", false, nil
	}

	slog.Info("bring config down", "name", name)
	if err := c.runner.Run(ctx, Down, name); err != nil {
		c.record(ctx, history.EventDown, name, err)
		return name, true, err
	}
	if err := c.store.Clear(); err != nil {
		c.record(ctx, history.EventDown, name, err)
		return name, true, err
	}
	c.record(ctx, history.EventDown, name, nil)
	metrics.SetActive("")
	return name, true, nil
}

// Activate brings name up and records it. On failure nothing is recorded.
func (c *Controller) Activate(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("configuration name is required")
	}
	slog.Info("bring config up", "name", name)
	if err := c.runner.Run(ctx, Up, name); err != nil {
		c.record(ctx, history.EventUp, name, err)
		return err
	}
	if err := c.store.Write(name); err != nil {
		c.record(ctx, history.EventUp, name, err)
		return err
	}
	c.record(ctx, history.EventUp, name, nil)
	metrics.SetActive(name)
	return nil
}

func (c *Controller) record(ctx context.Context, typ history.EventType, name string, err error) {
	metrics.RecordTransition(string(typ), name, err == nil)
	if c.sink == nil {
		return
	}
	e := history.Event{
		Type:       typ,
		OccurredAt: c.nowFunc(),
		Name:       name,
		Status:     history.StatusOK,
		Mock:       c.mock,
	}
	if err != nil {
		e.Status = history.StatusFailed
		e.Error = err.Error()
	}
	if serr := c.sink.Send(ctx, e); serr != nil {
		slog.Warn("failed to record history", "event", typ, "name", name, "error", serr)
	}
}
