// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/persist"
	"github.com/seeka-ai/seeka-tui/internal/store"
)

// historyFile is the REPL input history, kept under the data directory.
const historyFile = "history"

// Chat runs the line-oriented REPL. threadID may name an existing thread
// to resume; empty starts fresh on the first question.
func Chat(out io.Writer, st *store.Store, orch *orchestrator.Orchestrator, bridge *persist.Bridge, cfg config.Config, dataDir, threadID string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(dataDir, historyFile)
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	if threadID != "" {
		if snap, err := st.Snapshot(threadID); err == nil {
			fmt.Fprintf(out, "resuming %q (%s)\n", snap.Title(), threadID)
		}
		orch.Observe(threadID)
	}
	fmt.Fprintln(out, `type a question, or /new /threads /drop /fork /quit`)

	for {
		input, err := line.Prompt("❯ ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		question := strings.TrimSpace(input)
		switch question {
		case "":
			continue
		case "/quit", "/exit":
			return flushThread(st, bridge, threadID)
		case "/new":
			flushThread(st, bridge, threadID)
			threadID = ""
			fmt.Fprintln(out, "started a new thread")
			continue
		case "/threads":
			listThreads(out, st, threadID)
			continue
		case "/drop":
			threadID = dropThread(out, st, bridge, threadID)
			continue
		case "/fork":
			threadID = forkThread(out, st, bridge, threadID)
			continue
		}
		line.AppendHistory(question)

		var turnIndex int
		if threadID == "" {
			snap := st.Create(model.NewTurn(question))
			threadID = snap.ID
			turnIndex = 0
		} else {
			idx, err := st.AppendTurn(threadID, model.NewTurn(question))
			if err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			turnIndex = idx
		}
		orch.Observe(threadID)

		if _, err := streamTurn(out, st, orch, cfg, threadID, turnIndex); err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}

	return flushThread(st, bridge, threadID)
}

// listThreads prints every thread loaded this session.
func listThreads(out io.Writer, st *store.Store, current string) {
	ids := st.IDs()
	if len(ids) == 0 {
		fmt.Fprintln(out, "no threads yet")
		return
	}
	for _, id := range ids {
		snap, err := st.Snapshot(id)
		if err != nil {
			continue
		}
		marker := " "
		if id == current {
			marker = "*"
		}
		shared := ""
		if snap.Shared {
			shared = " (shared)"
		}
		fmt.Fprintf(out, "%s %s  %s%s\n", marker, id, snap.Title(), shared)
	}
}

// dropThread deletes the active thread everywhere and returns the new
// (empty) active id.
func dropThread(out io.Writer, st *store.Store, bridge *persist.Bridge, threadID string) string {
	if threadID == "" {
		fmt.Fprintln(out, "no active thread")
		return threadID
	}
	ctx, cancel := persistContext()
	defer cancel()
	if err := bridge.Delete(ctx, threadID); err != nil && !errors.Is(err, persist.ErrNotFound) {
		fmt.Fprintln(out, "error:", err)
		return threadID
	}
	st.Remove(threadID)
	fmt.Fprintf(out, "dropped thread %s\n", threadID)
	return ""
}

// forkThread copies a shared thread into an owned one so the session can
// keep asking questions on it.
func forkThread(out io.Writer, st *store.Store, bridge *persist.Bridge, threadID string) string {
	if threadID == "" {
		fmt.Fprintln(out, "no active thread")
		return threadID
	}
	snap, err := st.Snapshot(threadID)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return threadID
	}
	if !snap.Shared {
		fmt.Fprintln(out, "thread is already yours")
		return threadID
	}

	ctx, cancel := persistContext()
	defer cancel()
	newID, err := bridge.Fork(ctx, snap)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return threadID
	}

	forked := snap.Clone()
	forked.ID = newID
	forked.Shared = false
	st.Put(forked)
	fmt.Fprintf(out, "forked into thread %s\n", newID)
	return newID
}

// persistContext bounds the exit-path save.
func persistContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}

// flushThread makes a best-effort save of the active thread on the way
// out of the session.
func flushThread(st *store.Store, bridge *persist.Bridge, threadID string) error {
	if threadID == "" || bridge == nil {
		return nil
	}
	snap, err := st.Snapshot(threadID)
	if err != nil || snap.Shared {
		return nil
	}
	ctx, cancel := persistContext()
	defer cancel()
	return bridge.Save(ctx, snap)
}
