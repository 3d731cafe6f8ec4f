// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"

	"github.com/seeka-ai/seeka-tui/internal/util"
)

// threadIDLength is the length of client-generated thread ids. Short ids
// keep share URLs readable while staying collision-safe for one user's
// history.
const threadIDLength = 10

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one question/answer exchange within a thread.
//
// Question is immutable once created. Answer grows monotonically while a
// synthesis stream is running. Result is set at most once, by the
// capability adapter matching Mode.
type Turn struct {
	Mode     Mode             `json:"mode,omitempty"`
	Arg      string           `json:"arg,omitempty"` // raw classification argument JSON, "" when argument-free
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Query    string           `json:"query,omitempty"` // search refinement, concatenated with the question
	Result   CapabilityResult `json:"result,omitempty"`
}

// NewTurn creates an unclassified turn for a question.
func NewTurn(question string) Turn {
	return Turn{Question: strings.TrimSpace(question)}
}

// NewImageTurn creates an image turn referencing an uploaded file. Image
// turns skip classification: the mode is known at creation time.
func NewImageTurn(question string, fi *FileInfo) Turn {
	return Turn{
		Mode:     ModeImage,
		Question: strings.TrimSpace(question),
		Result:   FileCapability(fi),
	}
}

// Classified reports whether the turn has been assigned a mode.
func (t *Turn) Classified() bool {
	return t.Mode != ModeUnclassified
}

// SearchQuery is the query string the search adapter receives: the
// refinement joined with the question.
func (t *Turn) SearchQuery() string {
	if t.Query == "" {
		return t.Question
	}
	return t.Query + " " + t.Question
}

// =============================================================================
// THREAD TYPE
// =============================================================================

// Thread is an ordered conversation: the Turn sequence that drives the UI
// and the Message log that drives the language model. Chats is append-only;
// only the last turn's mode, answer and result fields mutate in place.
type Thread struct {
	ID       string    `json:"id"`
	Chats    []Turn    `json:"chats"`
	Messages []Message `json:"messages"`

	// Shared is true when the viewing session does not own the thread.
	// Shared threads are read-only except for forking.
	Shared bool `json:"shared,omitempty"`
}

// NewThreadID generates a client-side thread id.
func NewThreadID() string {
	id := uuid.New()
	compact := strings.ReplaceAll(id.String(), "-", "")
	return compact[:threadIDLength]
}

// NewThread creates a thread around its first turn with a generated id.
func NewThread(first Turn) *Thread {
	return &Thread{
		ID:       NewThreadID(),
		Chats:    []Turn{first},
		Messages: make([]Message, 0),
	}
}

// LastTurn returns a pointer to the most recent turn, or nil if empty.
func (t *Thread) LastTurn() *Turn {
	if len(t.Chats) == 0 {
		return nil
	}
	return &t.Chats[len(t.Chats)-1]
}

// LastAssistantIndex returns the index of the most recent assistant
// message, or -1 if none exists.
func (t *Thread) LastAssistantIndex() int {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

// LastUserMessage returns the most recent user message, or nil.
func (t *Thread) LastUserMessage() *Message {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleUser {
			return &t.Messages[i]
		}
	}
	return nil
}

// FirstSystemMessage returns the earliest system message, or nil.
func (t *Thread) FirstSystemMessage() *Message {
	for i := range t.Messages {
		if t.Messages[i].Role == RoleSystem {
			return &t.Messages[i]
		}
	}
	return nil
}

// titleRunes caps derived thread titles.
const titleRunes = 40

// Title derives a display title from the first question, collapsed to a
// single line.
func (t *Thread) Title() string {
	if len(t.Chats) == 0 {
		return "New Thread"
	}
	return util.Preview(t.Chats[0].Question, titleRunes)
}

// Clone creates a deep copy of the thread. Snapshots handed to readers and
// to the persistence bridge must never alias mutable store state.
// Capability payloads are set at most once and never mutated afterwards,
// so sharing those pointers is safe.
func (t *Thread) Clone() *Thread {
	clone := &Thread{
		ID:       t.ID,
		Shared:   t.Shared,
		Chats:    make([]Turn, len(t.Chats)),
		Messages: make([]Message, len(t.Messages)),
	}
	copy(clone.Chats, t.Chats)
	for i, m := range t.Messages {
		if len(m.Parts) > 0 {
			parts := make([]ContentPart, len(m.Parts))
			copy(parts, m.Parts)
			for j, p := range parts {
				if p.ImageURL != nil {
					u := *p.ImageURL
					parts[j].ImageURL = &u
				}
			}
			m.Parts = parts
		}
		clone.Messages[i] = m
	}
	return clone
}
