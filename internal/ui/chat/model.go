// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/persist"
	"github.com/seeka-ai/seeka-tui/internal/store"
	"github.com/seeka-ai/seeka-tui/internal/ui/styles"
)

// flushTimeout bounds the best-effort persistence flush on quit.
const flushTimeout = 2 * time.Second

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Collaborators
	store  *store.Store
	orch   *orchestrator.Orchestrator
	bridge *persist.Bridge
	cfg    config.Config

	// Conversation
	threadID string

	// Styling
	theme    *styles.Theme
	renderer *glamour.TermRenderer

	// Streaming optimization
	throttle *RenderThrottle

	// Event plumbing
	events     <-chan store.Event
	cancelSub  func()
	lastNotice *orchestrator.Notice

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keys     KeyMap

	// Dimensions
	width  int
	height int
	ready  bool
}

// New creates the chat view. threadID may be empty; the first submitted
// question then creates a thread.
func New(st *store.Store, orch *orchestrator.Orchestrator, bridge *persist.Bridge, cfg config.Config, threadID string) *Model {
	input := textinput.New()
	input.Placeholder = "Ask anything..."
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	events, cancelSub := st.Subscribe()

	return &Model{
		store:     st,
		orch:      orch,
		bridge:    bridge,
		cfg:       cfg,
		threadID:  threadID,
		theme:     styles.NewTheme(),
		throttle:  NewRenderThrottle(),
		events:    events,
		cancelSub: cancelSub,
		input:     input,
		spinner:   sp,
		keys:      DefaultKeyMap(),
	}
}

// SetConfig applies a hot-reloaded configuration.
func (m *Model) SetConfig(cfg config.Config) {
	m.cfg = cfg
}

// Init starts the event listeners.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.listenStore(), m.listenNotices(), m.spinner.Tick}
	if m.threadID != "" {
		// Resuming a thread: finish its last turn if it never completed.
		m.orch.Observe(m.threadID)
	}
	return tea.Batch(cmds...)
}

// listenStore waits for the next store event.
func (m *Model) listenStore() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return SubscriptionClosedMsg{}
		}
		return StoreEventMsg{Event: ev}
	}
}

// listenNotices waits for the next orchestrator notice.
func (m *Model) listenNotices() tea.Cmd {
	return func() tea.Msg {
		n, ok := <-m.orch.Notices()
		if !ok {
			return SubscriptionClosedMsg{}
		}
		return NoticeMsg{Notice: n}
	}
}

// scheduleFlush arranges the next streaming repaint.
func (m *Model) scheduleFlush() tea.Cmd {
	return tea.Tick(m.throttle.Interval(), func(t time.Time) tea.Msg {
		return FlushTickMsg{At: t}
	})
}

// status is the orchestrator's view of the current thread.
func (m *Model) status() orchestrator.Status {
	if m.threadID == "" {
		return orchestrator.Status{Stage: orchestrator.StageIdle, TurnIndex: -1}
	}
	return m.orch.Status(m.threadID)
}

// composing reports whether the input accepts a new question. Busy and
// failed-with-retry states block composing; a terminal empty-state does
// not.
func (m *Model) composing() bool {
	st := m.status()
	if st.Stage.Busy() {
		return false
	}
	if st.Stage == orchestrator.StageFailed && st.Retry != nil {
		return false
	}
	return true
}

// flushOnQuit makes a best-effort save of the current thread so an
// abandoned turn is not lost on a clean exit.
func (m *Model) flushOnQuit() {
	if m.threadID == "" || m.bridge == nil {
		return
	}
	snap, err := m.store.Snapshot(m.threadID)
	if err != nil || snap.Shared {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	_ = m.bridge.Save(ctx, snap)
}

// Close releases the store subscription.
func (m *Model) Close() {
	if m.cancelSub != nil {
		m.cancelSub()
		m.cancelSub = nil
	}
}
