// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/util"
)

// View renders the chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.theme.Header.Width(m.width).Render("seeka"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if banner := m.banner(); banner != "" {
		b.WriteString(banner)
		b.WriteString("\n")
	}

	b.WriteString(m.inputView())
	b.WriteString("\n")
	b.WriteString(m.statusView())
	return b.String()
}

// refresh rebuilds the transcript and pins the viewport to the bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

// transcript renders every turn of the current thread.
func (m *Model) transcript() string {
	if m.threadID == "" {
		return m.theme.Hint.Render("Start a conversation. Questions about weather, stocks and word definitions get live data.")
	}
	snap, err := m.store.Snapshot(m.threadID)
	if err != nil {
		return ""
	}

	st := m.status()
	var b strings.Builder
	for i, turn := range snap.Chats {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.theme.Question.Render("❯ " + turn.Question))
		if turn.Mode != model.ModeUnclassified && turn.Mode != model.ModeChat {
			badge := m.theme.ModeBadge
			if turn.Answer != "" && !(i == st.TurnIndex && st.Stage.Busy()) {
				badge = m.theme.ModeBadgeDone
			}
			b.WriteString("  ")
			b.WriteString(badge.Render("[" + string(turn.Mode) + "]"))
		}
		b.WriteString("\n")

		streaming := i == st.TurnIndex && st.Stage == orchestrator.StageSynthesizing
		b.WriteString(m.renderAnswer(turn, streaming))

		if cites := m.citations(turn); cites != "" {
			b.WriteString(cites)
		}
	}

	if st.Stage.Busy() && st.Stage != orchestrator.StageSynthesizing {
		b.WriteString("\n")
		b.WriteString(m.theme.Spinner.Render(m.spinner.View()))
		b.WriteString(m.theme.Hint.Render(" thinking..."))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAnswer renders a turn's answer: plain text while streaming so
// partial markdown never garbles the frame, glamour once settled.
func (m *Model) renderAnswer(turn model.Turn, streaming bool) string {
	answer := turn.Answer
	if answer == "" {
		return ""
	}
	if streaming || m.renderer == nil {
		return m.theme.Answer.Render(answer) + "\n"
	}
	rendered, err := m.renderer.Render(answer)
	if err != nil {
		return m.theme.Answer.Render(answer) + "\n"
	}
	return rendered
}

// citations renders the numbered source list under a search answer.
func (m *Model) citations(turn model.Turn) string {
	if !m.cfg.UI.ShowCitations || turn.Mode != model.ModeSearch || turn.Result.Search == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range turn.Result.Search.Citations() {
		b.WriteString(m.theme.Citation.Render(fmt.Sprintf("  [%d] %s", c.Number, c.URL)))
		b.WriteString("\n")
	}
	return b.String()
}

// banner renders the failure or empty-state line with its single action.
func (m *Model) banner() string {
	if m.lastNotice == nil {
		return ""
	}
	switch m.lastNotice.Kind {
	case orchestrator.NoticeEmpty:
		return m.theme.EmptyBanner.Render("Nothing found. ") +
			m.theme.Hint.Render("Try rephrasing your question.")
	case orchestrator.NoticeFailed:
		line := m.theme.ErrorBanner.Render("Something went wrong: " + m.lastNotice.Err)
		if m.lastNotice.Retry != nil {
			line += m.theme.Hint.Render("  (ctrl+r to try again)")
		}
		return line
	default:
		return ""
	}
}

func (m *Model) inputView() string {
	if !m.composing() {
		if st := m.status(); st.Stage == orchestrator.StageSynthesizing {
			return m.theme.InputContainer.Width(m.width - 2).Render(
				m.theme.Hint.Render("streaming... (esc to stop)"))
		}
		return m.theme.InputContainer.Width(m.width - 2).Render(
			m.theme.Hint.Render("waiting..."))
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(
		m.theme.InputPrompt.Render("❯ ") + m.input.View())
}

func (m *Model) statusView() string {
	parts := []string{"enter send", "esc stop", "ctrl+n new", "ctrl+g regenerate", "ctrl+c quit"}
	line := strings.Join(parts, " · ")
	if m.threadID != "" {
		line = "thread " + m.threadID + " · " + line
	}
	return m.theme.StatusBar.Render(util.TruncateWidth(line, m.width))
}
