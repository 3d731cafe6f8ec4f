// seeka - answer engine for your terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/seeka-ai/seeka-tui/internal/capability"
	"github.com/seeka-ai/seeka-tui/internal/classify"
	"github.com/seeka-ai/seeka-tui/internal/cli"
	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/orchestrator"
	"github.com/seeka-ai/seeka-tui/internal/persist"
	"github.com/seeka-ai/seeka-tui/internal/store"
	"github.com/seeka-ai/seeka-tui/internal/synth"
	"github.com/seeka-ai/seeka-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, cli.Usage())
		os.Exit(2)
	}

	switch args.Command {
	case cli.CommandVersion:
		fmt.Printf("seeka %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	case cli.CommandHelp:
		fmt.Println(cli.Usage())
		return
	}

	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, "seeka:", err)
		os.Exit(1)
	}
}

func run(args cli.Args) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dataDir, err := config.Dir()
	if err != nil {
		return err
	}
	sessionID, err := persist.LoadSession(dataDir)
	if err != nil {
		return err
	}

	docs, err := persist.OpenSQLite(filepath.Join(dataDir, "threads.db"))
	if err != nil {
		return err
	}
	defer docs.Close()
	bridge := persist.NewBridge(docs, sessionID)

	st := store.New()
	classifier := classify.New(cfg.Endpoints.LLMBaseURL, cfg.Endpoints.LLMAPIKey, cfg.AI.ClassifierModel)
	caps := capability.NewClient(cfg.Endpoints)
	synthesizer := synth.New(cfg.Endpoints.LLMBaseURL, cfg.Endpoints.LLMAPIKey)

	orch := orchestrator.New(st, classifier, caps, synthesizer, bridge, cfg)
	defer orch.Close()

	// Hot-reload generation parameters; endpoint clients keep the
	// addresses they started with.
	if cfgPath, err := config.Path(); err == nil {
		if watcher, err := config.Watch(cfgPath, orch.UpdateConfig); err == nil {
			defer watcher.Close()
		}
	}

	// Resume or hydrate the requested thread.
	if args.ThreadID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		th, err := bridge.Load(ctx, args.ThreadID)
		cancel()
		if err != nil {
			return fmt.Errorf("thread %s: %w", args.ThreadID, err)
		}
		st.Put(th)
	}

	switch args.Command {
	case cli.CommandAsk:
		_, err := cli.Ask(os.Stdout, st, orch, cfg, args.Question)
		return err

	case cli.CommandChat:
		return cli.Chat(os.Stdout, st, orch, bridge, cfg, dataDir, args.ThreadID)

	default:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("the TUI needs an interactive terminal; try %q", "seeka ask")
		}
		m := chat.New(st, orch, bridge, cfg, args.ThreadID)
		defer m.Close()
		p := tea.NewProgram(m, tea.WithAltScreen())
		_, err := p.Run()
		return err
	}
}
