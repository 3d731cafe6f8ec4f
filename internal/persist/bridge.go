// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/util"
)

// threadDoc is the persisted document shape: the full conversation,
// nothing about ownership. Ownership lives in the index.
type threadDoc struct {
	Chats    []model.Turn    `json:"chats"`
	Messages []model.Message `json:"messages"`
}

// =============================================================================
// SESSION IDENTITY
// =============================================================================

// LoadSession returns the stable session id for this installation,
// creating one on first run. The id is the ownership namespace for every
// thread this installation saves.
func LoadSession(dir string) (string, error) {
	path := filepath.Join(dir, "session")

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	id := uuid.New().String()
	if err := util.AtomicWriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write session file: %w", err)
	}
	return id, nil
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge applies the ownership rules over a DocumentStore: loads resolve
// through the index and mark foreign threads as shared, writes only ever
// touch this session's namespace.
type Bridge struct {
	docs    DocumentStore
	session string
}

// NewBridge creates a bridge bound to a session identity.
func NewBridge(docs DocumentStore, session string) *Bridge {
	return &Bridge{docs: docs, session: session}
}

// Session returns the bound session id.
func (b *Bridge) Session() string {
	return b.session
}

// Load fetches a thread by id. A thread owned by a different session
// comes back with Shared set; the caller must treat it as read-only.
func (b *Bridge) Load(ctx context.Context, id string) (*model.Thread, error) {
	owner, err := b.docs.GetIndex(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := b.docs.GetThread(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	var doc threadDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("persist: corrupt thread document %s: %w", id, err)
	}

	return &model.Thread{
		ID:       id,
		Chats:    doc.Chats,
		Messages: doc.Messages,
		Shared:   owner != b.session,
	}, nil
}

// Save writes a thread snapshot as a full-document overwrite. Shared
// threads are never written back.
func (b *Bridge) Save(ctx context.Context, snapshot *model.Thread) error {
	if snapshot.Shared {
		return fmt.Errorf("%w: %s", ErrSharedThread, snapshot.ID)
	}

	raw, err := json.Marshal(threadDoc{Chats: snapshot.Chats, Messages: snapshot.Messages})
	if err != nil {
		return fmt.Errorf("persist: encode thread %s: %w", snapshot.ID, err)
	}

	if err := b.docs.PutIndex(ctx, snapshot.ID, b.session); err != nil {
		return err
	}
	return b.docs.PutThread(ctx, b.session, snapshot.ID, raw)
}

// Fork copies a thread's conversation under a fresh id owned by this
// session and returns the new id. This is how a shared thread becomes
// editable.
func (b *Bridge) Fork(ctx context.Context, th *model.Thread) (string, error) {
	clone := th.Clone()
	clone.ID = model.NewThreadID()
	clone.Shared = false

	if err := b.Save(ctx, clone); err != nil {
		return "", err
	}
	return clone.ID, nil
}

// Delete removes a thread this session owns, index record included.
func (b *Bridge) Delete(ctx context.Context, id string) error {
	owner, err := b.docs.GetIndex(ctx, id)
	if err != nil {
		return err
	}
	if owner != b.session {
		return fmt.Errorf("%w: %s", ErrSharedThread, id)
	}

	if err := b.docs.DeleteThread(ctx, owner, id); err != nil {
		return err
	}
	return b.docs.DeleteIndex(ctx, id)
}
