// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

// =============================================================================
// STAGES
// =============================================================================

// Stage is where a turn currently sits in its pipeline.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageUnclassified       Stage = "unclassified"
	StageClassified         Stage = "classified"
	StageCapabilityResolved Stage = "capability_resolved"
	StageSynthesizing       Stage = "synthesizing"
	StageCompleted          Stage = "completed"
	StageFailed             Stage = "failed"
)

// Busy reports whether the stage blocks composing a new turn. Failed
// blocks too: the turn must be retried or the empty-state acknowledged
// before the thread moves on.
func (s Stage) Busy() bool {
	switch s {
	case StageUnclassified, StageClassified, StageCapabilityResolved, StageSynthesizing:
		return true
	default:
		return false
	}
}

// Status is the orchestrator's per-thread view for the front-ends.
type Status struct {
	Stage     Stage
	TurnIndex int
	// Err is the user-facing failure description while Stage is Failed.
	Err string
	// Retry is the stored retry action while Stage is Failed; nil for
	// terminal empty-states (not found).
	Retry *RetryAction
}
