// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

func TestThrottleCoalescesWithinFrame(t *testing.T) {
	th := NewRenderThrottleWithFPS(30)
	base := time.Now()

	th.Mark()
	if !th.TryFlush(base.Add(th.Interval())) {
		t.Fatal("first flush after an interval must succeed")
	}

	// Marks inside the same frame stay pending.
	th.Mark()
	th.Mark()
	if th.TryFlush(base.Add(th.Interval() + time.Millisecond)) {
		t.Error("flush inside the frame budget must be deferred")
	}
	if !th.Dirty() {
		t.Error("deferred marks must stay dirty")
	}

	if !th.TryFlush(base.Add(2*th.Interval() + time.Millisecond)) {
		t.Error("flush after the frame budget must succeed")
	}
	if th.Dirty() {
		t.Error("flush must clear the dirty flag")
	}
}

func TestThrottleCleanIsNoop(t *testing.T) {
	th := NewRenderThrottle()
	if th.TryFlush(time.Now().Add(time.Hour)) {
		t.Error("clean throttle must not flush")
	}
}

func TestThrottleRejectsBadFPS(t *testing.T) {
	for _, fps := range []int{0, -5, 500} {
		th := NewRenderThrottleWithFPS(fps)
		if th.Interval() != time.Second/defaultMaxFPS {
			t.Errorf("fps %d: interval = %v", fps, th.Interval())
		}
	}
}
