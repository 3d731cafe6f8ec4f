// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/store"
)

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.flushOnQuit()
			m.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Cancel):
			if m.threadID != "" {
				m.orch.Cancel(m.threadID)
			}
			return m, nil

		case key.Matches(msg, m.keys.Retry):
			if st := m.status(); st.Stage == orchestrator.StageFailed && st.Retry != nil {
				m.lastNotice = nil
				m.orch.Retry(*st.Retry)
			}
			return m, nil

		case key.Matches(msg, m.keys.Rewrite):
			if m.threadID != "" && m.composing() {
				m.lastNotice = nil
				m.orch.Rewrite(m.threadID)
			}
			return m, nil

		case key.Matches(msg, m.keys.NewThread):
			m.flushOnQuit()
			m.threadID = ""
			m.lastNotice = nil
			m.input.SetValue("")
			m.refresh()
			return m, nil

		case key.Matches(msg, m.keys.Submit):
			m.submit()
			return m, nil

		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDn):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		if m.composing() {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case StoreEventMsg:
		cmds = append(cmds, m.listenStore())
		if msg.Event.ThreadID == m.threadID {
			if msg.Event.Kind == store.EventAnswer {
				m.throttle.Mark()
				if m.throttle.TryFlush(time.Now()) {
					m.refresh()
				} else {
					cmds = append(cmds, m.scheduleFlush())
				}
			} else {
				m.refresh()
			}
		}

	case NoticeMsg:
		cmds = append(cmds, m.listenNotices())
		if msg.Notice.ThreadID == m.threadID {
			n := msg.Notice
			if n.Kind == orchestrator.NoticeCompleted {
				m.lastNotice = nil
			} else {
				m.lastNotice = &n
			}
			m.refresh()
		}

	case FlushTickMsg:
		if m.throttle.TryFlush(msg.At) {
			m.refresh()
		}
		if m.throttle.Dirty() {
			cmds = append(cmds, m.scheduleFlush())
		}

	case SubscriptionClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit appends the typed question as a new turn and hands the thread
// to the orchestrator.
func (m *Model) submit() {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || !m.composing() {
		return
	}
	m.lastNotice = nil

	if m.threadID == "" {
		snap := m.store.Create(model.NewTurn(question))
		m.threadID = snap.ID
	} else {
		if _, err := m.store.AppendTurn(m.threadID, model.NewTurn(question)); err != nil {
			return
		}
	}
	m.input.SetValue("")
	m.orch.Observe(m.threadID)
	m.refresh()
}

// resize rebuilds the viewport and the markdown renderer for the new
// terminal geometry.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 2
	footerHeight := 5
	vpHeight := height - headerHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 6

	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}
}
