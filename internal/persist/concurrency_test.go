// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Concurrent access tests for the document store. The SQLite handle is
// limited to a single connection, so writers serialize at the pool.
package persist

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// TestConcurrentSaves writes many threads from parallel goroutines and
// verifies every one survives intact.
func TestConcurrentSaves(t *testing.T) {
	docs := openTestStore(t)
	bridge := NewBridge(docs, "session-a")
	ctx := context.Background()

	const writers = 20
	ids := make([]string, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			th := model.NewThread(model.NewTurn(fmt.Sprintf("question %d", i)))
			require.NoError(t, bridge.Save(ctx, th))
			ids[i] = th.ID
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		loaded, err := bridge.Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, loaded.Chats, 1)
		require.Equal(t, fmt.Sprintf("question %d", i), loaded.Chats[0].Question)
	}
}

// TestConcurrentSaveSameThread hammers one thread with concurrent
// overwrites. The last write wins; nothing corrupts.
func TestConcurrentSaveSameThread(t *testing.T) {
	docs := openTestStore(t)
	bridge := NewBridge(docs, "session-a")
	ctx := context.Background()

	th := sampleThread()
	require.NoError(t, bridge.Save(ctx, th))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := th.Clone()
			snap.Chats[0].Answer = "rewritten"
			require.NoError(t, bridge.Save(ctx, snap))
		}()
	}
	wg.Wait()

	loaded, err := bridge.Load(ctx, th.ID)
	require.NoError(t, err)
	require.Equal(t, "rewritten", loaded.Chats[0].Answer)
}
