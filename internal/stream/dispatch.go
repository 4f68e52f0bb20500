package stream

import (
	"fmt"
	"sync"
)

// DispatchConfig configures a Dispatcher.
type DispatchConfig struct {
	// Recover converts a panic raised inside Run into an error. When nil the
	// panic is wrapped with fmt.Errorf.
	Recover func(v any) error
}

// Dispatcher defers completion callbacks until every nested Run call has
// returned. Callbacks are keyed: queuing the same key twice keeps the first
// position and the latest callback, so a burst of nested mutations produces a
// single notification.
//
// Depth is shared by every goroutine using the Dispatcher, so concurrent
// callers must serialize their outermost Run calls.
type Dispatcher struct {
	cfg DispatchConfig

	mu      sync.Mutex
	depth   int
	order   []string
	pending map[string]func()
}

func NewDispatcher(cfg DispatchConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg, pending: make(map[string]func())}
}

// Run executes fn one level deeper. When the outermost Run returns, the queued
// callbacks are flushed in order, also when fn failed.
func (d *Dispatcher) Run(fn func() error) (err error) {
	d.mu.Lock()
	d.depth++
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = d.recovered(r)
		}
		d.leave()
	}()
	return fn()
}

// Defer queues fn under key. Outside of Run it executes immediately.
func (d *Dispatcher) Defer(key string, fn func()) {
	d.mu.Lock()
	if d.depth == 0 {
		d.mu.Unlock()
		fn()
		return
	}
	if _, ok := d.pending[key]; !ok {
		d.order = append(d.order, key)
	}
	d.pending[key] = fn
	d.mu.Unlock()
}

// Depth reports how many Run calls are currently active.
func (d *Dispatcher) Depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.depth
}

func (d *Dispatcher) leave() {
	d.mu.Lock()
	d.depth--
	if d.depth > 0 {
		d.mu.Unlock()
		return
	}
	order, pending := d.order, d.pending
	d.order, d.pending = nil, make(map[string]func())
	d.mu.Unlock()

	for _, key := range order {
		pending[key]()
	}
}

func (d *Dispatcher) recovered(v any) error {
	if d.cfg.Recover != nil {
		return d.cfg.Recover(v)
	}
	if err, ok := v.(error); ok {
		return fmt.Errorf("recovered: %w", err)
	}
	return fmt.Errorf("recovered: %v", v)
}
