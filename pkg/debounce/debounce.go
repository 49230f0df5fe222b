// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package debounce collapses bursts of calls into a single execution.
// Filesystem watchers tend to emit several events for one logical
// change (write, chmod, rename), and reacting to each one wastes work.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs at most one scheduled function per delay window.
// Do schedules fn to run once the delay elapses; calls made while a run
// is pending replace the scheduled function without extending the
// delay, so the run fires at a fixed interval after the first call.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

// New creates a Debouncer with the given delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn. If a run is already pending, fn replaces the
// previously scheduled function. After Stop, fn executes inline.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		fn()
		return
	}

	d.pending = fn
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
	}
	d.mu.Unlock()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pending reports whether a run is scheduled and has not fired yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels the delay and runs any pending function immediately.
// Stop is idempotent, and functions passed to Do afterwards execute
// inline.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true

	var fn func()
	if d.timer != nil && d.timer.Stop() {
		// The timer had not fired, so the pending function is ours to
		// flush. If Stop lost the race, fire already owns it.
		fn = d.pending
		d.pending = nil
	}
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
