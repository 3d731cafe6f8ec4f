// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds active threads in memory.
//
// All mutation goes through narrow, named operations so the turn
// invariants hold structurally: turn sequences never shrink or reorder,
// answers grow monotonically within a stream, and a capability result is
// set at most once and must match the turn's mode. Reads hand out deep
// snapshots; subscribers get change notifications carrying only the
// thread id and update kind and re-read via Snapshot.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNoThread       = errors.New("store: no such thread")
	ErrNoTurn         = errors.New("store: turn index out of range")
	ErrResultSet      = errors.New("store: capability result already set")
	ErrResultMismatch = errors.New("store: capability result does not match turn mode")
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what changed.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventRemoved      EventKind = "removed"
	EventTurnAppended EventKind = "turn_appended"
	EventModeSet      EventKind = "mode_set"
	EventResultSet    EventKind = "result_set"
	EventAnswer       EventKind = "answer"
	EventMessages     EventKind = "messages"
	EventShared       EventKind = "shared"
)

// Event is a change notification. It intentionally carries no thread
// data: consumers snapshot the thread, which keeps events cheap and
// render code free of aliasing bugs.
type Event struct {
	ThreadID string
	Kind     EventKind
}

// subscriberBuffer sizes each subscriber channel. Consumers that fall
// behind lose intermediate events, not the thread state they re-read.
const subscriberBuffer = 64

// =============================================================================
// STORE
// =============================================================================

// Store is a mutex-guarded map of live threads.
type Store struct {
	mu      sync.Mutex
	threads map[string]*model.Thread

	subMu   sync.Mutex
	nextSub int
	subs    map[int]chan Event
}

// New creates an empty store.
func New() *Store {
	return &Store{
		threads: make(map[string]*model.Thread),
		subs:    make(map[int]chan Event),
	}
}

// Subscribe registers a change listener. The returned cancel function
// closes the channel and must be called exactly once.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (s *Store) notify(threadID string, kind EventKind) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- Event{ThreadID: threadID, Kind: kind}:
		default:
			// Slow consumer; it will catch up from the next snapshot.
		}
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create makes a new thread around its first turn and returns a snapshot.
func (s *Store) Create(first model.Turn) *model.Thread {
	th := model.NewThread(first)

	s.mu.Lock()
	s.threads[th.ID] = th
	snap := th.Clone()
	s.mu.Unlock()

	s.notify(th.ID, EventCreated)
	return snap
}

// Put hydrates a thread loaded from persistence, replacing any existing
// copy. The store keeps its own clone.
func (s *Store) Put(th *model.Thread) {
	s.mu.Lock()
	s.threads[th.ID] = th.Clone()
	s.mu.Unlock()

	s.notify(th.ID, EventCreated)
}

// Remove drops a thread from memory.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, ok := s.threads[id]
	delete(s.threads, id)
	s.mu.Unlock()

	if ok {
		s.notify(id, EventRemoved)
	}
}

// Snapshot returns a deep copy of a thread.
func (s *Store) Snapshot(id string) (*model.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	return th.Clone(), nil
}

// IDs lists the ids of all live threads.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	return ids
}

// =============================================================================
// TURN MUTATIONS
// =============================================================================

// AppendTurn adds a turn to the end of the thread and returns its index.
func (s *Store) AppendTurn(id string, turn model.Turn) (int, error) {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	th.Chats = append(th.Chats, turn)
	idx := len(th.Chats) - 1
	s.mu.Unlock()

	s.notify(id, EventTurnAppended)
	return idx, nil
}

// SetTurnMode records the classification outcome on a turn.
func (s *Store) SetTurnMode(id string, idx int, mode model.Mode, arg string) error {
	err := s.withTurn(id, idx, func(t *model.Turn) error {
		t.Mode = mode
		t.Arg = arg
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(id, EventModeSet)
	return nil
}

// SetTurnResult attaches a capability result. The result kind must match
// the turn's mode and a non-empty result can never be replaced.
func (s *Store) SetTurnResult(id string, idx int, result model.CapabilityResult) error {
	err := s.withTurn(id, idx, func(t *model.Turn) error {
		if !t.Result.IsZero() {
			return ErrResultSet
		}
		if !result.MatchesMode(t.Mode) {
			return fmt.Errorf("%w: %s result on %s turn", ErrResultMismatch, result.Kind, t.Mode)
		}
		t.Result = result
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(id, EventResultSet)
	return nil
}

// AppendAnswer grows a turn's answer by one chunk. The streaming path
// only ever appends; the answer never shrinks while a stream is live.
func (s *Store) AppendAnswer(id string, idx int, chunk string) error {
	err := s.withTurn(id, idx, func(t *model.Turn) error {
		t.Answer += chunk
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(id, EventAnswer)
	return nil
}

// SetAnswer replaces a turn's answer outright. Only the rewrite and
// retry paths use this, before a fresh stream starts.
func (s *Store) SetAnswer(id string, idx int, answer string) error {
	err := s.withTurn(id, idx, func(t *model.Turn) error {
		t.Answer = answer
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(id, EventAnswer)
	return nil
}

func (s *Store) withTurn(id string, idx int, fn func(*model.Turn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	if idx < 0 || idx >= len(th.Chats) {
		return fmt.Errorf("%w: %d of %d", ErrNoTurn, idx, len(th.Chats))
	}
	return fn(&th.Chats[idx])
}

// =============================================================================
// MESSAGE AND FLAG MUTATIONS
// =============================================================================

// AppendMessage adds a message to the thread's model-facing log.
func (s *Store) AppendMessage(id string, msg model.Message) error {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	th.Messages = append(th.Messages, msg)
	s.mu.Unlock()

	s.notify(id, EventMessages)
	return nil
}

// AppendMessages adds several messages at once.
func (s *Store) AppendMessages(id string, msgs []model.Message) error {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	th.Messages = append(th.Messages, msgs...)
	s.mu.Unlock()

	s.notify(id, EventMessages)
	return nil
}

// ReplaceMessage swaps the message at an index.
func (s *Store) ReplaceMessage(id string, idx int, msg model.Message) error {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	if idx < 0 || idx >= len(th.Messages) {
		s.mu.Unlock()
		return fmt.Errorf("%w: message %d of %d", ErrNoTurn, idx, len(th.Messages))
	}
	th.Messages[idx] = msg
	s.mu.Unlock()

	s.notify(id, EventMessages)
	return nil
}

// ReplaceLastAssistant swaps the content of the most recent assistant
// message. The rewrite path ends here instead of appending a second
// answer for the same question.
func (s *Store) ReplaceLastAssistant(id string, content string) error {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	idx := th.LastAssistantIndex()
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: no assistant message", ErrNoTurn)
	}
	th.Messages[idx] = model.NewAssistantMessage(content)
	s.mu.Unlock()

	s.notify(id, EventMessages)
	return nil
}

// SetShared flips the thread's shared (read-only) flag.
func (s *Store) SetShared(id string, shared bool) error {
	s.mu.Lock()
	th, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoThread, id)
	}
	th.Shared = shared
	s.mu.Unlock()

	s.notify(id, EventShared)
	return nil
}
