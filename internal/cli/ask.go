// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/store"
)

// askTimeout bounds a whole one-shot question, streaming included.
const askTimeout = 5 * time.Minute

// ErrTurnFailed reports a turn that ended in a failure notice.
var ErrTurnFailed = errors.New("turn failed")

// Ask answers one question, streaming the answer to out, and returns
// the thread id for follow-up sessions.
func Ask(out io.Writer, st *store.Store, orch *orchestrator.Orchestrator, cfg config.Config, question string) (string, error) {
	snap := st.Create(model.NewTurn(question))
	orch.Observe(snap.ID)

	threadID, err := streamTurn(out, st, orch, cfg, snap.ID, 0)
	return threadID, err
}

// streamTurn prints answer chunks for one turn as they land in the
// store and blocks until the turn resolves.
func streamTurn(out io.Writer, st *store.Store, orch *orchestrator.Orchestrator, cfg config.Config, threadID string, turnIndex int) (string, error) {
	events, cancel := st.Subscribe()
	defer cancel()

	printed := 0
	flush := func() {
		snap, err := st.Snapshot(threadID)
		if err != nil || turnIndex >= len(snap.Chats) {
			return
		}
		answer := snap.Chats[turnIndex].Answer
		if len(answer) > printed {
			fmt.Fprint(out, answer[printed:])
			printed = len(answer)
		}
	}

	deadline := time.After(askTimeout)
	for {
		select {
		case ev := <-events:
			if ev.ThreadID == threadID && ev.Kind == store.EventAnswer {
				flush()
			}

		case n := <-orch.Notices():
			if n.ThreadID != threadID || n.TurnIndex != turnIndex {
				continue
			}
			switch n.Kind {
			case orchestrator.NoticeCompleted:
				flush()
				fmt.Fprintln(out)
				printCitations(out, st, cfg, threadID, turnIndex)
				return threadID, nil
			case orchestrator.NoticeEmpty:
				fmt.Fprintln(out, "Nothing found: "+n.Err)
				return threadID, nil
			case orchestrator.NoticeFailed:
				return threadID, fmt.Errorf("%w: %s", ErrTurnFailed, n.Err)
			}

		case <-deadline:
			orch.Cancel(threadID)
			return threadID, fmt.Errorf("%w: timed out", ErrTurnFailed)
		}
	}
}

// printCitations lists the numbered sources under a search answer.
func printCitations(out io.Writer, st *store.Store, cfg config.Config, threadID string, turnIndex int) {
	if !cfg.UI.ShowCitations {
		return
	}
	snap, err := st.Snapshot(threadID)
	if err != nil || turnIndex >= len(snap.Chats) {
		return
	}
	turn := snap.Chats[turnIndex]
	if turn.Mode != model.ModeSearch || turn.Result.Search == nil {
		return
	}
	fmt.Fprintln(out)
	for _, c := range turn.Result.Search.Citations() {
		fmt.Fprintf(out, "[%d] %s\n", c.Number, c.URL)
	}
}
