// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxRunes int
		expected string
	}{
		{name: "short_string_unchanged", input: "hello", maxRunes: 10, expected: "hello"},
		{name: "exact_length_unchanged", input: "hello", maxRunes: 5, expected: "hello"},
		{name: "truncated_with_ellipsis", input: "hello world", maxRunes: 8, expected: "hello..."},
		{name: "zero_max", input: "hello", maxRunes: 0, expected: ""},
		{name: "tiny_max_no_ellipsis", input: "hello", maxRunes: 2, expected: "he"},
		{name: "multibyte_safe", input: "日本語のテキストです", maxRunes: 5, expected: "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.maxRunes)
			if got != tt.expected {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxRunes, got, tt.expected)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	// CJK characters are two columns wide
	got := TruncateWidth("日本語テキスト", 9)
	if StringWidth(got) > 9 {
		t.Errorf("TruncateWidth produced width %d, want <= 9", StringWidth(got))
	}

	if got := TruncateWidth("plain", 10); got != "plain" {
		t.Errorf("TruncateWidth should not touch short strings, got %q", got)
	}
}

func TestPreview(t *testing.T) {
	got := Preview("line one\nline two\n\nline three", 100)
	if got != "line one line two line three" {
		t.Errorf("Preview collapsed newlines incorrectly: %q", got)
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  what's   the weather in Paris "); n != 5 {
		t.Errorf("WordCount = %d, want 5", n)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := AtomicWriteFile(path, []byte(`{"ok":true}`), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back failed: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected content: %s", data)
	}

	// Overwrite must replace, not append
	if err := AtomicWriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("overwrite left stale content: %s", data)
	}

	// No temp files should remain
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if e.Name() != "out.json" {
			t.Errorf("leftover file after atomic write: %s", e.Name())
		}
	}
}
