// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI front-ends: argument parsing, the
// one-shot ask command and the line-oriented chat REPL.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// Command is the selected top-level command.
type Command string

const (
	CommandTUI     Command = "tui"
	CommandAsk     Command = "ask"
	CommandChat    Command = "chat"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// Args is the parsed command line.
type Args struct {
	Command  Command
	Question string
	ThreadID string
}

// ErrUsage signals that usage help should be printed.
var ErrUsage = errors.New("usage")

// Parse interprets the command line. No arguments launches the TUI.
func Parse(argv []string) (Args, error) {
	if len(argv) == 0 {
		return Args{Command: CommandTUI}, nil
	}

	switch argv[0] {
	case "ask":
		if len(argv) < 2 {
			return Args{}, fmt.Errorf("%w: ask needs a question", ErrUsage)
		}
		return Args{Command: CommandAsk, Question: strings.Join(argv[1:], " ")}, nil

	case "chat":
		args := Args{Command: CommandChat}
		rest := argv[1:]
		for i := 0; i < len(rest); i++ {
			switch rest[i] {
			case "-t", "--thread":
				if i+1 >= len(rest) {
					return Args{}, fmt.Errorf("%w: %s needs a thread id", ErrUsage, rest[i])
				}
				i++
				args.ThreadID = rest[i]
			default:
				return Args{}, fmt.Errorf("%w: unknown flag %q", ErrUsage, rest[i])
			}
		}
		return args, nil

	case "tui":
		args := Args{Command: CommandTUI}
		rest := argv[1:]
		for i := 0; i < len(rest); i++ {
			switch rest[i] {
			case "-t", "--thread":
				if i+1 >= len(rest) {
					return Args{}, fmt.Errorf("%w: %s needs a thread id", ErrUsage, rest[i])
				}
				i++
				args.ThreadID = rest[i]
			default:
				return Args{}, fmt.Errorf("%w: unknown flag %q", ErrUsage, rest[i])
			}
		}
		return args, nil

	case "version", "--version", "-v":
		return Args{Command: CommandVersion}, nil

	case "help", "--help", "-h":
		return Args{Command: CommandHelp}, nil

	default:
		return Args{}, fmt.Errorf("%w: unknown command %q", ErrUsage, argv[0])
	}
}

// Usage returns the help text.
func Usage() string {
	return strings.TrimSpace(`
seeka - answer engine for your terminal

Usage:
  seeka                 launch the TUI
  seeka tui [-t ID]     launch the TUI, resuming a thread
  seeka ask QUESTION    answer one question and exit
  seeka chat [-t ID]    line-oriented chat session
  seeka version         print the version
`)
}
