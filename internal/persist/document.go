// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist saves threads durably and brings them back.
//
// Storage is document-shaped: one JSON blob per thread, reached through
// an id-to-owner index so a thread id alone is enough to find any
// thread, including ones shared by another session. The Bridge layers
// the ownership rules on top of a flat DocumentStore.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound means the index record or thread document is absent.
	ErrNotFound = errors.New("persist: not found")
	// ErrSharedThread means a write was attempted on a thread owned by a
	// different session.
	ErrSharedThread = errors.New("persist: thread owned by another session")
)

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// DocumentStore is the flat storage surface the Bridge writes through.
// The index maps thread id to owning session; documents live under
// (owner, id).
type DocumentStore interface {
	GetIndex(ctx context.Context, id string) (owner string, err error)
	PutIndex(ctx context.Context, id, owner string) error
	DeleteIndex(ctx context.Context, id string) error

	GetThread(ctx context.Context, owner, id string) ([]byte, error)
	PutThread(ctx context.Context, owner, id string, doc []byte) error
	DeleteThread(ctx context.Context, owner, id string) error

	Close() error
}

// =============================================================================
// SQLITE IMPLEMENTATION
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS thread_index (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS threads (
	owner      TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (owner, id)
);
`

// SQLiteStore is a DocumentStore backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the document database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetIndex resolves a thread id to its owning session.
func (s *SQLiteStore) GetIndex(ctx context.Context, id string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT owner FROM thread_index WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: index %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read index: %w", err)
	}
	return owner, nil
}

// PutIndex records (or refreshes) the id-to-owner mapping.
func (s *SQLiteStore) PutIndex(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO thread_index (id, owner) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET owner = excluded.owner",
		id, owner)
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// DeleteIndex removes the id-to-owner mapping.
func (s *SQLiteStore) DeleteIndex(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM thread_index WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return nil
}

// GetThread reads a thread document.
func (s *SQLiteStore) GetThread(ctx context.Context, owner, id string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM threads WHERE owner = ? AND id = ?", owner, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %s/%s", ErrNotFound, owner, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}
	return doc, nil
}

// PutThread writes a thread document, replacing any previous version.
func (s *SQLiteStore) PutThread(ctx context.Context, owner, id string, doc []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (owner, id, doc, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(owner, id) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		owner, id, doc)
	if err != nil {
		return fmt.Errorf("failed to write thread: %w", err)
	}
	return nil
}

// DeleteThread removes a thread document.
func (s *SQLiteStore) DeleteThread(ctx context.Context, owner, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM threads WHERE owner = ? AND id = ?", owner, id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
