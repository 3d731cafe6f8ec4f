// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"github.com/seeka-ai/seeka-tui/internal/model"
)

// Step names the pipeline step a retry resumes at.
type Step string

const (
	StepClassify   Step = "classify"
	StepResolve    Step = "resolve"
	StepScrape     Step = "scrape"
	StepSynthesize Step = "synthesize"
	StepPersist    Step = "persist"
)

// RetryAction is a serializable record of a failed step and the exact
// arguments it ran with. Dispatching it re-runs that step with those
// arguments, not with whatever the thread looks like by then, and then
// continues the pipeline as a first attempt would.
type RetryAction struct {
	Step      Step   `json:"step"`
	ThreadID  string `json:"thread_id"`
	TurnIndex int    `json:"turn_index"`

	// Classify arguments.
	Question string `json:"question,omitempty"`

	// Resolve arguments.
	Mode model.Mode `json:"mode,omitempty"`
	Arg  string     `json:"arg,omitempty"`

	// Scrape arguments: the partial search result whose ranked pages the
	// retry scrapes again, instead of re-searching and risking a
	// different ranking.
	Search *model.SearchResult `json:"search,omitempty"`

	// Synthesize arguments: the fully built message log of the original
	// attempt.
	Messages []model.Message `json:"messages,omitempty"`
}
