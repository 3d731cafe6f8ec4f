// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat threads and turns.
//
// A Thread is an ordered conversation: a sequence of Turns (one
// question/answer exchange each) plus the raw role-tagged Message log that
// is handed to the language model. The two sequences are deliberately
// decoupled: Turns drive the UI, Messages drive the LLM.
//
// Each Turn carries a Mode (chat, search, image, weather, stock,
// dictionary) and at most one capability result, stored as a tagged
// variant so the mode/result exclusivity invariant is structural rather
// than conventional.
package model
