// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives each turn through its pipeline:
// classify, resolve the capability, synthesize the answer, persist.
//
// Every thread gets its own worker goroutine fed by a queue, so turns
// within a thread run strictly in append order while threads stay
// independent. The orchestrator is the only writer of turn and message
// fields in the thread store; front-ends observe appended turns and read
// status, they never mutate.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/capability"
	"github.com/seeka-ai/seeka-tui/internal/classify"
	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/store"
	"github.com/seeka-ai/seeka-tui/internal/synth"
)

// =============================================================================
// NOTICES
// =============================================================================

// NoticeKind classifies a pipeline outcome for the front-ends.
type NoticeKind string

const (
	// NoticeCompleted signals a turn reaching its terminal answer,
	// including cancelled streams finalized with partial text.
	NoticeCompleted NoticeKind = "completed"
	// NoticeFailed signals a retryable failure; the notice carries the
	// retry action.
	NoticeFailed NoticeKind = "failed"
	// NoticeEmpty signals a not-found outcome. Retrying cannot help, so
	// no retry action accompanies it.
	NoticeEmpty NoticeKind = "empty"
)

// Notice is a pipeline outcome event.
type Notice struct {
	Kind      NoticeKind
	ThreadID  string
	TurnIndex int
	Err       string
	Retry     *RetryAction
}

const noticeBuffer = 64

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Classifier decides the mode of a question.
type Classifier interface {
	Classify(ctx context.Context, question string) (classify.Outcome, error)
}

// Capabilities is the adapter surface for the four data modes.
type Capabilities interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
	Scrape(ctx context.Context, pages []model.SearchPage) (string, error)
	Weather(ctx context.Context, rawArg string) (*model.WeatherResult, error)
	Stock(ctx context.Context, rawArg string) (*model.StockResult, error)
	Dictionary(ctx context.Context, rawArg string) (*model.DictionaryResult, error)
}

// Synthesizer streams an answer for a built message log.
type Synthesizer interface {
	Stream(ctx context.Context, req synth.Request, onToken func(string)) (string, error)
}

// Saver persists thread snapshots.
type Saver interface {
	Save(ctx context.Context, snapshot *model.Thread) error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

type job struct {
	turnIndex int
	retry     *RetryAction
	rewrite   bool
}

type worker struct {
	queue chan job
}

const workerQueue = 16

// Orchestrator runs turn pipelines against a thread store.
type Orchestrator struct {
	store      *store.Store
	classifier Classifier
	caps       Capabilities
	synth      Synthesizer
	saver      Saver

	cfgMu sync.RWMutex
	cfg   config.Config

	mu          sync.Mutex
	workers     map[string]*worker
	lastStarted map[string]int
	status      map[string]Status
	cancels     map[string]context.CancelFunc
	closed      bool

	notices chan Notice
	done    chan struct{}
	wg      sync.WaitGroup
}

// New wires an orchestrator. cfg supplies generation parameters, retry
// bounds and stage timeouts; UpdateConfig swaps it at runtime.
func New(st *store.Store, cl Classifier, caps Capabilities, sy Synthesizer, saver Saver, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		store:       st,
		classifier:  cl,
		caps:        caps,
		synth:       sy,
		saver:       saver,
		cfg:         cfg,
		workers:     make(map[string]*worker),
		lastStarted: make(map[string]int),
		status:      make(map[string]Status),
		cancels:     make(map[string]context.CancelFunc),
		notices:     make(chan Notice, noticeBuffer),
		done:        make(chan struct{}),
	}
}

// UpdateConfig applies a reloaded configuration. In-flight turns keep
// the parameters they started with; the next turn picks these up.
func (o *Orchestrator) UpdateConfig(cfg config.Config) {
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
}

func (o *Orchestrator) config() config.Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// Notices returns the outcome event channel.
func (o *Orchestrator) Notices() <-chan Notice {
	return o.notices
}

// Status reports the pipeline state of a thread.
func (o *Orchestrator) Status(threadID string) Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.status[threadID]
	if !ok {
		return Status{Stage: StageIdle, TurnIndex: -1}
	}
	return st
}

// Close stops all workers and waits for in-flight turns to finish their
// current step.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	close(o.done)
	o.wg.Wait()
}

// =============================================================================
// OBSERVATION AND DISPATCH
// =============================================================================

// Observe looks at a thread after an append and starts processing any
// turn it has not started yet. The marker is the index of the last turn
// started, so re-observations of an unchanged thread are no-ops: each
// appended turn gets exactly one pipeline invocation no matter how often
// the thread re-renders.
func (o *Orchestrator) Observe(threadID string) {
	snap, err := o.store.Snapshot(threadID)
	if err != nil || len(snap.Chats) == 0 || snap.Shared {
		return
	}
	newest := len(snap.Chats) - 1

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	last, seen := o.lastStarted[threadID]
	if !seen {
		last = newest - 1
		// A hydrated thread whose newest turn already has its answer
		// needs no processing; just remember where it ends.
		if snap.Chats[newest].Answer != "" {
			o.lastStarted[threadID] = newest
			o.mu.Unlock()
			return
		}
	}
	if newest <= last && seen {
		o.mu.Unlock()
		return
	}
	o.lastStarted[threadID] = newest
	w := o.workerLocked(threadID)
	o.mu.Unlock()

	for idx := last + 1; idx <= newest; idx++ {
		w.queue <- job{turnIndex: idx}
	}
}

// Retry dispatches a stored retry action through the same pipeline as a
// first attempt.
func (o *Orchestrator) Retry(action RetryAction) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	w := o.workerLocked(action.ThreadID)
	o.mu.Unlock()

	a := action
	w.queue <- job{turnIndex: action.TurnIndex, retry: &a}
}

// Rewrite re-answers the newest turn: same question, fresh stream, last
// assistant message replaced instead of appended.
func (o *Orchestrator) Rewrite(threadID string) {
	snap, err := o.store.Snapshot(threadID)
	if err != nil || len(snap.Chats) == 0 || snap.Shared {
		return
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	w := o.workerLocked(threadID)
	o.mu.Unlock()

	w.queue <- job{turnIndex: len(snap.Chats) - 1, rewrite: true}
}

// Cancel aborts the synthesizing stage of a thread's current turn. Other
// stages ignore it.
func (o *Orchestrator) Cancel(threadID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[threadID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// workerLocked returns the thread's worker, starting one if needed.
// Caller holds o.mu.
func (o *Orchestrator) workerLocked(threadID string) *worker {
	if w, ok := o.workers[threadID]; ok {
		return w
	}
	w := &worker{queue: make(chan job, workerQueue)}
	o.workers[threadID] = w
	o.wg.Add(1)
	go o.run(threadID, w)
	return w
}

func (o *Orchestrator) run(threadID string, w *worker) {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case jb := <-w.queue:
			if jb.rewrite {
				o.processRewrite(threadID, jb.turnIndex)
			} else {
				o.process(threadID, jb)
			}
		}
	}
}

// =============================================================================
// PIPELINE
// =============================================================================

func (o *Orchestrator) setStatus(threadID string, st Status) {
	o.mu.Lock()
	o.status[threadID] = st
	o.mu.Unlock()
}

func (o *Orchestrator) emit(n Notice) {
	select {
	case o.notices <- n:
	default:
		// Nobody draining; state is still readable via Status.
	}
}

func (o *Orchestrator) fail(threadID string, idx int, err error, retry *RetryAction) {
	o.setStatus(threadID, Status{Stage: StageFailed, TurnIndex: idx, Err: err.Error(), Retry: retry})
	o.emit(Notice{Kind: NoticeFailed, ThreadID: threadID, TurnIndex: idx, Err: err.Error(), Retry: retry})
}

func (o *Orchestrator) empty(threadID string, idx int, err error) {
	o.setStatus(threadID, Status{Stage: StageFailed, TurnIndex: idx, Err: err.Error()})
	o.emit(Notice{Kind: NoticeEmpty, ThreadID: threadID, TurnIndex: idx, Err: err.Error()})
}

func (o *Orchestrator) complete(threadID string, idx int) {
	o.setStatus(threadID, Status{Stage: StageCompleted, TurnIndex: idx})
	o.emit(Notice{Kind: NoticeCompleted, ThreadID: threadID, TurnIndex: idx})
}

// process runs one turn through classify, resolve, synthesize and
// persist. A retry job skips the steps that already succeeded (their
// outcomes are in the store) and resumes the failed one with its
// original arguments.
func (o *Orchestrator) process(threadID string, jb job) {
	idx := jb.turnIndex
	cfg := o.config()

	snap, err := o.store.Snapshot(threadID)
	if err != nil || idx >= len(snap.Chats) {
		return
	}
	turn := snap.Chats[idx]

	// A persist retry resumes after a fully synthesized answer; nothing
	// upstream needs to run again.
	if jb.retry != nil && jb.retry.Step == StepPersist {
		if err := o.persistStage(cfg, threadID); err != nil {
			o.fail(threadID, idx, err, &RetryAction{Step: StepPersist, ThreadID: threadID, TurnIndex: idx})
			return
		}
		o.complete(threadID, idx)
		return
	}

	// ---- classify ----
	o.setStatus(threadID, Status{Stage: StageUnclassified, TurnIndex: idx})
	if !turn.Classified() {
		out, err := o.classifyStage(cfg, turn.Question)
		if err != nil {
			o.fail(threadID, idx, err, &RetryAction{
				Step: StepClassify, ThreadID: threadID, TurnIndex: idx, Question: turn.Question,
			})
			return
		}
		// A data mode with no argument cannot be resolved; inventing a
		// default would answer the wrong question.
		if out.Mode.NeedsArg() && out.Arg == "" {
			err := fmt.Errorf("classification produced no %s argument", out.Mode)
			o.fail(threadID, idx, err, &RetryAction{
				Step: StepClassify, ThreadID: threadID, TurnIndex: idx, Question: turn.Question,
			})
			return
		}
		if err := o.store.SetTurnMode(threadID, idx, out.Mode, out.Arg); err != nil {
			o.fail(threadID, idx, err, nil)
			return
		}
		turn.Mode, turn.Arg = out.Mode, out.Arg
	}
	o.setStatus(threadID, Status{Stage: StageClassified, TurnIndex: idx})

	// ---- resolve capability ----
	if turn.Mode.NeedsCapability() && turn.Result.IsZero() {
		result, retry, err := o.resolveStage(cfg, threadID, idx, turn, jb.retry)
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				o.empty(threadID, idx, err)
				return
			}
			o.fail(threadID, idx, err, retry)
			return
		}
		if err := o.store.SetTurnResult(threadID, idx, result); err != nil {
			o.fail(threadID, idx, err, nil)
			return
		}
		turn.Result = result
	}
	o.setStatus(threadID, Status{Stage: StageCapabilityResolved, TurnIndex: idx})

	// ---- synthesize ----
	msgs, err := o.buildMessages(cfg, threadID, idx, turn, jb.retry)
	if err != nil {
		o.fail(threadID, idx, err, nil)
		return
	}
	if err := o.synthesizeStage(cfg, threadID, idx, turn.Mode, msgs); err != nil {
		o.fail(threadID, idx, err, &RetryAction{
			Step: StepSynthesize, ThreadID: threadID, TurnIndex: idx,
			Mode: turn.Mode, Messages: msgs,
		})
		return
	}
	if fresh, err := o.store.Snapshot(threadID); err == nil {
		o.store.AppendMessage(threadID, model.NewAssistantMessage(fresh.Chats[idx].Answer))
	}

	// ---- persist ----
	if err := o.persistStage(cfg, threadID); err != nil {
		o.fail(threadID, idx, err, &RetryAction{
			Step: StepPersist, ThreadID: threadID, TurnIndex: idx,
		})
		return
	}

	o.complete(threadID, idx)
}

// processRewrite re-streams the newest turn's answer from rebuilt
// history and replaces the last assistant message.
func (o *Orchestrator) processRewrite(threadID string, idx int) {
	cfg := o.config()

	snap, err := o.store.Snapshot(threadID)
	if err != nil || idx >= len(snap.Chats) {
		return
	}
	turn := snap.Chats[idx]

	msgs := synth.RewriteMessages(snap)
	if len(msgs) == 0 {
		return
	}
	msgs = synth.SpliceCustomPrompt(msgs, cfg.AI.CustomPrompt)

	if err := o.store.SetAnswer(threadID, idx, ""); err != nil {
		return
	}
	if err := o.synthesizeStage(cfg, threadID, idx, turn.Mode, msgs); err != nil {
		o.fail(threadID, idx, err, &RetryAction{
			Step: StepSynthesize, ThreadID: threadID, TurnIndex: idx,
			Mode: turn.Mode, Messages: msgs,
		})
		return
	}

	fresh, err := o.store.Snapshot(threadID)
	if err == nil {
		o.store.ReplaceLastAssistant(threadID, fresh.Chats[idx].Answer)
	}

	if err := o.persistStage(cfg, threadID); err != nil {
		o.fail(threadID, idx, err, &RetryAction{Step: StepPersist, ThreadID: threadID, TurnIndex: idx})
		return
	}
	o.complete(threadID, idx)
}

// =============================================================================
// STAGES
// =============================================================================

// retryable reports whether an error class earns another automatic
// attempt: transport and parse failures do, terminal outcomes do not.
func retryable(err error) bool {
	if errors.Is(err, capability.ErrNotFound) || errors.Is(err, capability.ErrBadArgument) {
		return false
	}
	if errors.Is(err, synth.ErrCancelled) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// withAttempts runs fn under the configured attempt bound with a fixed
// delay between attempts and a per-attempt stage timeout.
func (o *Orchestrator) withAttempts(cfg config.Config, fn func(context.Context) error) error {
	delay := time.Duration(cfg.Pipeline.RetryDelayMs) * time.Millisecond
	timeout := time.Duration(cfg.Pipeline.StageTimeoutSecs) * time.Second

	var err error
	for attempt := 0; attempt < cfg.Pipeline.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-o.done:
				return errors.New("orchestrator shutting down")
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("max retries reached: %w", err)
}

func (o *Orchestrator) classifyStage(cfg config.Config, question string) (classify.Outcome, error) {
	var out classify.Outcome
	err := o.withAttempts(cfg, func(ctx context.Context) error {
		var err error
		out, err = o.classifier.Classify(ctx, question)
		return err
	})
	return out, err
}

// resolveStage calls the adapter for the turn's mode. For search it
// understands stage resumption: a scrape retry re-scrapes the original
// ranked pages rather than re-running the search.
func (o *Orchestrator) resolveStage(cfg config.Config, threadID string, idx int, turn model.Turn, retry *RetryAction) (model.CapabilityResult, *RetryAction, error) {
	switch turn.Mode {
	case model.ModeSearch:
		return o.resolveSearch(cfg, threadID, idx, turn, retry)

	case model.ModeWeather:
		var result *model.WeatherResult
		err := o.withAttempts(cfg, func(ctx context.Context) error {
			var err error
			result, err = o.caps.Weather(ctx, turn.Arg)
			return err
		})
		if err != nil {
			return model.NoResult(), o.resolveRetry(threadID, idx, turn), err
		}
		return model.WeatherCapability(result), nil, nil

	case model.ModeStock:
		var result *model.StockResult
		err := o.withAttempts(cfg, func(ctx context.Context) error {
			var err error
			result, err = o.caps.Stock(ctx, turn.Arg)
			return err
		})
		if err != nil {
			return model.NoResult(), o.resolveRetry(threadID, idx, turn), err
		}
		return model.StockCapability(result), nil, nil

	case model.ModeDictionary:
		var result *model.DictionaryResult
		err := o.withAttempts(cfg, func(ctx context.Context) error {
			var err error
			result, err = o.caps.Dictionary(ctx, turn.Arg)
			return err
		})
		if err != nil {
			return model.NoResult(), o.resolveRetry(threadID, idx, turn), err
		}
		return model.DictionaryCapability(result), nil, nil

	default:
		return model.NoResult(), nil, fmt.Errorf("mode %s has no capability", turn.Mode)
	}
}

func (o *Orchestrator) resolveRetry(threadID string, idx int, turn model.Turn) *RetryAction {
	return &RetryAction{
		Step: StepResolve, ThreadID: threadID, TurnIndex: idx,
		Mode: turn.Mode, Arg: turn.Arg, Question: turn.Question,
	}
}

func (o *Orchestrator) resolveSearch(cfg config.Config, threadID string, idx int, turn model.Turn, retry *RetryAction) (model.CapabilityResult, *RetryAction, error) {
	// Scrape-stage resumption: the ranked pages from the failed attempt
	// travel in the retry action.
	if retry != nil && retry.Step == StepScrape && retry.Search != nil {
		partial := retry.Search
		var contextText string
		err := o.withAttempts(cfg, func(ctx context.Context) error {
			var err error
			contextText, err = o.caps.Scrape(ctx, partial.Pages)
			return err
		})
		if err != nil {
			return model.NoResult(), &RetryAction{
				Step: StepScrape, ThreadID: threadID, TurnIndex: idx,
				Mode: model.ModeSearch, Search: partial,
			}, err
		}
		partial.Context = contextText
		return model.SearchCapability(partial), nil, nil
	}

	var result *model.SearchResult
	err := o.withAttempts(cfg, func(ctx context.Context) error {
		var err error
		result, err = o.caps.Search(ctx, turn.SearchQuery())
		return err
	})
	if err == nil {
		return model.SearchCapability(result), nil, nil
	}

	var stageErr *capability.StageError
	if errors.As(err, &stageErr) && stageErr.Stage == "scrape" && result != nil {
		return model.NoResult(), &RetryAction{
			Step: StepScrape, ThreadID: threadID, TurnIndex: idx,
			Mode: model.ModeSearch, Search: result,
		}, err
	}
	return model.NoResult(), &RetryAction{
		Step: StepResolve, ThreadID: threadID, TurnIndex: idx,
		Mode: model.ModeSearch, Question: turn.Question, Arg: turn.Arg,
	}, err
}

// buildMessages assembles the synthesis message log and records it on
// the thread. Chat follow-ups extend the history; everything else gets
// its mode template. A synthesize retry reuses the original messages.
func (o *Orchestrator) buildMessages(cfg config.Config, threadID string, idx int, turn model.Turn, retry *RetryAction) ([]model.Message, error) {
	if retry != nil && retry.Step == StepSynthesize && len(retry.Messages) > 0 {
		// The user message is already on the log; reset the partial
		// answer before the fresh stream.
		if err := o.store.SetAnswer(threadID, idx, ""); err != nil {
			return nil, err
		}
		return retry.Messages, nil
	}

	snap, err := o.store.Snapshot(threadID)
	if err != nil {
		return nil, err
	}
	turn = snap.Chats[idx]

	var msgs []model.Message
	if turn.Mode == model.ModeChat && len(snap.Messages) > 0 {
		userMsg := model.NewUserMessage(turn.Question)
		if err := o.store.AppendMessage(threadID, userMsg); err != nil {
			return nil, err
		}
		msgs = synth.FollowUpMessages(snap.Messages, turn.Question)
	} else {
		initial := synth.InitialMessages(turn, turn.Result.Data(), time.Now())
		if err := o.store.AppendMessages(threadID, initial); err != nil {
			return nil, err
		}
		msgs = append(snap.Messages, initial...)
	}

	return synth.SpliceCustomPrompt(msgs, cfg.AI.CustomPrompt), nil
}

// synthesizeStage streams the answer into the store. Cancellation is not
// a failure: the partial answer stands and the turn completes normally.
// A transport failure resets the partial answer and consumes another
// attempt; the stream itself runs without a stage timeout.
func (o *Orchestrator) synthesizeStage(cfg config.Config, threadID string, idx int, mode model.Mode, msgs []model.Message) error {
	o.setStatus(threadID, Status{Stage: StageSynthesizing, TurnIndex: idx})

	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[threadID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, threadID)
		o.mu.Unlock()
		cancel()
	}()

	req := synth.Request{Messages: msgs, Mode: mode, AI: cfg.AI}
	delay := time.Duration(cfg.Pipeline.RetryDelayMs) * time.Millisecond

	var err error
	for attempt := 0; attempt < cfg.Pipeline.MaxAttempts; attempt++ {
		if attempt > 0 {
			if resetErr := o.store.SetAnswer(threadID, idx, ""); resetErr != nil {
				return resetErr
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			case <-o.done:
				return errors.New("orchestrator shutting down")
			}
		}

		_, err = o.synth.Stream(ctx, req, func(chunk string) {
			o.store.AppendAnswer(threadID, idx, chunk)
		})
		if err == nil || errors.Is(err, synth.ErrCancelled) {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("max retries reached: %w", err)
}

// persistStage writes the turn's single durable snapshot.
func (o *Orchestrator) persistStage(cfg config.Config, threadID string) error {
	snap, err := o.store.Snapshot(threadID)
	if err != nil {
		return err
	}
	if snap.Shared {
		return nil
	}
	return o.withAttempts(cfg, func(ctx context.Context) error {
		return o.saver.Save(ctx, snap)
	})
}
