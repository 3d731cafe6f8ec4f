// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types the chat view consumes.
// The view never mutates turns itself: it appends questions, observes the
// thread, and re-renders from store snapshots as events arrive.
package chat

import (
	"time"

	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/store"
)

// StoreEventMsg delivers a thread store change notification.
type StoreEventMsg struct {
	Event store.Event
}

// NoticeMsg delivers a pipeline outcome from the orchestrator.
type NoticeMsg struct {
	Notice orchestrator.Notice
}

// FlushTickMsg drives the streaming render throttle while answer chunks
// are arriving faster than the frame budget.
type FlushTickMsg struct {
	At time.Time
}

// SubscriptionClosedMsg signals that the store event channel closed.
type SubscriptionClosedMsg struct{}
