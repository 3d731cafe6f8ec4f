// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the streaming render throttle. Answer chunks land
// in the thread store far faster than a terminal can usefully repaint;
// the throttle coalesces them so the transcript refreshes at a capped
// frame rate instead of once per chunk.
package chat

import (
	"sync"
	"time"
)

// defaultMaxFPS caps transcript repaints during streaming.
const defaultMaxFPS = 30

// RenderThrottle coalesces streaming updates into frames.
//
// Thread-safety: store events arrive on the Bubble Tea loop, but the
// mutex keeps the throttle safe if a future caller marks it from a
// goroutine.
type RenderThrottle struct {
	mu        sync.Mutex
	dirty     bool
	lastFlush time.Time
	interval  time.Duration
}

// NewRenderThrottle creates a throttle at the default frame rate.
func NewRenderThrottle() *RenderThrottle {
	return NewRenderThrottleWithFPS(defaultMaxFPS)
}

// NewRenderThrottleWithFPS creates a throttle at a custom frame rate.
func NewRenderThrottleWithFPS(fps int) *RenderThrottle {
	if fps <= 0 || fps > 60 {
		fps = defaultMaxFPS
	}
	return &RenderThrottle{
		interval: time.Second / time.Duration(fps),
	}
}

// Mark records that the transcript is stale.
func (t *RenderThrottle) Mark() {
	t.mu.Lock()
	t.dirty = true
	t.mu.Unlock()
}

// TryFlush reports whether a repaint should happen now. It returns true
// at most once per frame interval while dirty, and resets the dirty flag
// when it does.
func (t *RenderThrottle) TryFlush(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty || now.Sub(t.lastFlush) < t.interval {
		return false
	}
	t.dirty = false
	t.lastFlush = now
	return true
}

// Dirty reports whether an update is pending.
func (t *RenderThrottle) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

// Interval returns the frame interval, for scheduling the next tick.
func (t *RenderThrottle) Interval() time.Duration {
	return t.interval
}
