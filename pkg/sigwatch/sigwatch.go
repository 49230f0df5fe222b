// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sigwatch bundles a bounded command queue with a single-writer
// latest-value broadcast. Services hold the Receiver half and loop over
// incoming commands; callers hold Watcher handles to send commands and
// observe the most recently published state.
//
// The broadcast keeps only the latest value. Readers that fall behind see
// the newest state, never a history of intermediate values.
package sigwatch

import (
	"context"
	"errors"
	"sync"
)

// commandQueueSize bounds every command queue. Senders block once the
// queue is full.
const commandQueueSize = 100

// ErrClosed is returned by Send on a watcher handle that has been closed.
var ErrClosed = errors.New("sigwatch: watcher is closed")

// cell is the shared latest-value slot. Publishing bumps the version and
// wakes every waiter by closing the current notification channel.
type cell[S any] struct {
	mu      sync.Mutex
	value   S
	version uint64
	changed chan struct{}
}

func newCell[S any](initial S) *cell[S] {
	return &cell[S]{value: initial, changed: make(chan struct{})}
}

func (c *cell[S]) publish(v S) {
	c.mu.Lock()
	c.value = v
	c.version++
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

func (c *cell[S]) load() (S, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.version
}

// wait blocks until the cell's version exceeds seen and returns the new
// version.
func (c *cell[S]) wait(ctx context.Context, seen uint64) (uint64, error) {
	for {
		c.mu.Lock()
		if c.version > seen {
			v := c.version
			c.mu.Unlock()
			return v, nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return seen, ctx.Err()
		}
	}
}

// senderGroup reference-counts the watcher handles sharing one command
// queue. The queue closes when the last handle is closed, which is how a
// service loop learns it should terminate.
type senderGroup[C any] struct {
	mu    sync.Mutex
	cmds  chan C
	count int
}

func (g *senderGroup[C]) acquire() {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
}

func (g *senderGroup[C]) release() {
	g.mu.Lock()
	g.count--
	if g.count == 0 {
		close(g.cmds)
	}
	g.mu.Unlock()
}

// Watcher is the caller-side handle: a command sender plus a reader onto
// the latest published state. A single handle is not safe for concurrent
// use; Clone one per goroutine.
type Watcher[C, S any] struct {
	group *senderGroup[C]
	cell  *cell[S]
	seen  uint64

	mu     sync.Mutex
	closed bool
}

// Receiver is the service-side half: the sole consumer of the command
// queue and the sole writer of the broadcast state.
type Receiver[C, S any] struct {
	cmds <-chan C
	cell *cell[S]
}

// Pair creates a connected Watcher/Receiver pair with the given initial
// state.
func Pair[C, S any](initial S) (*Watcher[C, S], *Receiver[C, S]) {
	g := &senderGroup[C]{cmds: make(chan C, commandQueueSize), count: 1}
	c := newCell(initial)
	return &Watcher[C, S]{group: g, cell: c}, &Receiver[C, S]{cmds: g.cmds, cell: c}
}

// Send enqueues a command, blocking while the queue is full. It returns
// ctx.Err() if the context is done first and ErrClosed if this handle was
// closed.
func (w *Watcher[C, S]) Send(ctx context.Context, cmd C) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case w.group.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recently published state without consuming the
// change notification.
func (w *Watcher[C, S]) Latest() S {
	v, _ := w.cell.load()
	return v
}

// Changed blocks until a value newer than the last one this handle has
// seen is published, then marks it seen. A publish that happened between
// calls is reported immediately.
func (w *Watcher[C, S]) Changed(ctx context.Context) error {
	v, err := w.cell.wait(ctx, w.seen)
	if err != nil {
		return err
	}
	w.seen = v
	return nil
}

// Clone returns a new handle onto the same queue and state. The clone
// considers the current state already seen.
func (w *Watcher[C, S]) Clone() *Watcher[C, S] {
	w.group.acquire()
	_, version := w.cell.load()
	return &Watcher[C, S]{group: w.group, cell: w.cell, seen: version}
}

// Close drops this handle's send permission. Closing the last handle
// closes the command queue, terminating the receiver's loop once drained.
// Close is idempotent.
func (w *Watcher[C, S]) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.group.release()
}

// Commands exposes the queue for the service loop. The channel is closed
// once every watcher handle has been closed and pending commands have
// been drained.
func (r *Receiver[C, S]) Commands() <-chan C {
	return r.cmds
}

// Publish replaces the broadcast state and wakes all Changed waiters.
func (r *Receiver[C, S]) Publish(v S) {
	r.cell.publish(v)
}

// Latest returns the state this receiver last published (or the initial
// state).
func (r *Receiver[C, S]) Latest() S {
	v, _ := r.cell.load()
	return v
}

// Cell is a publish-only broadcast for state that has no command side,
// such as a service announcing its in-flight work.
type Cell[S any] struct {
	cell *cell[S]
}

// NewCell creates a Cell holding initial.
func NewCell[S any](initial S) *Cell[S] {
	return &Cell[S]{cell: newCell(initial)}
}

// Publish replaces the held value and wakes all cursor waiters.
func (c *Cell[S]) Publish(v S) {
	c.cell.publish(v)
}

// Latest returns the current value.
func (c *Cell[S]) Latest() S {
	v, _ := c.cell.load()
	return v
}

// Subscribe returns a cursor that reports changes published after this
// call.
func (c *Cell[S]) Subscribe() *Cursor[S] {
	_, version := c.cell.load()
	return &Cursor[S]{cell: c.cell, seen: version}
}

// Cursor tracks one reader's progress through a Cell's publishes. Not
// safe for concurrent use.
type Cursor[S any] struct {
	cell *cell[S]
	seen uint64
}

// Latest returns the current value without consuming the change
// notification.
func (cu *Cursor[S]) Latest() S {
	v, _ := cu.cell.load()
	return v
}

// Changed blocks until a value newer than the last seen one is published.
func (cu *Cursor[S]) Changed(ctx context.Context) error {
	v, err := cu.cell.wait(ctx, cu.seen)
	if err != nil {
		return err
	}
	cu.seen = v
	return nil
}
