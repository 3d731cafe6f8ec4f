// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want Args
	}{
		{"no args launches tui", nil, Args{Command: CommandTUI}},
		{"ask joins words", []string{"ask", "weather", "in", "Paris"}, Args{Command: CommandAsk, Question: "weather in Paris"}},
		{"chat", []string{"chat"}, Args{Command: CommandChat}},
		{"chat with thread", []string{"chat", "-t", "abc123"}, Args{Command: CommandChat, ThreadID: "abc123"}},
		{"tui with thread", []string{"tui", "--thread", "abc123"}, Args{Command: CommandTUI, ThreadID: "abc123"}},
		{"version", []string{"--version"}, Args{Command: CommandVersion}},
		{"help", []string{"-h"}, Args{Command: CommandHelp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.argv)
			if err != nil {
				t.Fatalf("Parse(%v) failed: %v", tt.argv, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%v) = %+v, want %+v", tt.argv, got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, argv := range [][]string{
		{"ask"},
		{"chat", "-t"},
		{"chat", "--bogus"},
		{"frobnicate"},
	} {
		if _, err := Parse(argv); !errors.Is(err, ErrUsage) {
			t.Errorf("Parse(%v): error = %v, want ErrUsage", argv, err)
		}
	}
}
