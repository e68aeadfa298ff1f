package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/logger"
)

// queueSize is how many plugin calls may wait before new events are dropped.
const queueSize = 32

type boundAction struct {
	plugin string
	action string
	params json.RawMessage
}

type job struct {
	bound boundAction
	req   Request
}

// Dispatcher runs the bound plugin actions for control events on a single
// worker goroutine, so a slow plugin never stalls the frame loop.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	bindings map[Event][]boundAction

	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher validates bindings and creates a Dispatcher.
func NewDispatcher(manager *Manager, executor *Executor, bindings []Binding) (*Dispatcher, error) {
	d := &Dispatcher{
		manager:  manager,
		executor: executor,
		bindings: make(map[Event][]boundAction),
		queue:    make(chan job, queueSize),
	}

	for i, b := range bindings {
		switch b.Event {
		case EventShot, EventArmed, EventDisarmed:
		default:
			return nil, fmt.Errorf("binding %d: unknown event %q", i, b.Event)
		}
		if b.Plugin == "" || b.Action == "" {
			return nil, fmt.Errorf("binding %d: plugin and action are required", i)
		}

		var params json.RawMessage
		if len(b.Params) > 0 {
			data, err := json.Marshal(b.Params)
			if err != nil {
				return nil, fmt.Errorf("binding %d: encode params: %w", i, err)
			}
			params = data
		}

		d.bindings[b.Event] = append(d.bindings[b.Event], boundAction{
			plugin: b.Plugin,
			action: b.Action,
			params: params,
		})
	}

	return d, nil
}

// Start runs the worker until Close. ctx bounds every plugin call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for j := range d.queue {
			d.run(ctx, j)
		}
	}()
}

// Fire queues the actions bound to event. Events are dropped when the queue
// is full or the Dispatcher is closed.
func (d *Dispatcher) Fire(event Event, s control.Sample) {
	bound := d.bindings[event]
	if len(bound) == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	for _, b := range bound {
		j := job{
			bound: b,
			req:   Request{Action: b.action, Event: event, X: s.X, Y: s.Y, Params: b.params},
		}
		select {
		case d.queue <- j:
		default:
			d.dropped.Add(1)
		}
	}
}

// Close stops accepting events and waits for queued calls to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped returns how many calls were skipped because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Failed returns how many calls returned an error.
func (d *Dispatcher) Failed() uint64 {
	return d.failed.Load()
}

func (d *Dispatcher) run(ctx context.Context, j job) {
	ctx = logger.WithKV(ctx, "plugin", j.bound.plugin, "action", j.bound.action, "event", j.req.Event)

	err := d.call(ctx, j)
	if err != nil {
		d.failed.Add(1)
		logger.WarnKV(ctx, "plugin action failed", "error", err)
		return
	}

	logger.DebugKV(ctx, "plugin action done")
}

func (d *Dispatcher) call(ctx context.Context, j job) error {
	p, err := d.manager.Get(j.bound.plugin)
	if err != nil {
		return err
	}
	if !p.Manifest.Supports(j.bound.action) {
		return errors.New("action not listed in the plugin manifest")
	}

	req := j.req
	_, err = d.executor.Execute(ctx, p, &req)
	return err
}
