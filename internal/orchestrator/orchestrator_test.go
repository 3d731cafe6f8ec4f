// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/capability"
	"github.com/seeka-ai/seeka-tui/internal/classify"
	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
	"github.com/seeka-ai/seeka-tui/internal/store"
	"github.com/seeka-ai/seeka-tui/internal/synth"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeClassifier struct {
	calls int32
	fn    func(question string) (classify.Outcome, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, question string) (classify.Outcome, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(question)
}

type fakeCaps struct {
	searchCalls  int32
	scrapeCalls  int32
	weatherCalls int32

	searchFn  func(query string) (*model.SearchResult, error)
	scrapeFn  func(pages []model.SearchPage) (string, error)
	weatherFn func(arg string) (*model.WeatherResult, error)
	stockFn   func(arg string) (*model.StockResult, error)
	dictFn    func(arg string) (*model.DictionaryResult, error)

	mu          sync.Mutex
	scrapedWith [][]model.SearchPage
}

func (f *fakeCaps) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	atomic.AddInt32(&f.searchCalls, 1)
	return f.searchFn(query)
}

func (f *fakeCaps) Scrape(ctx context.Context, pages []model.SearchPage) (string, error) {
	atomic.AddInt32(&f.scrapeCalls, 1)
	f.mu.Lock()
	f.scrapedWith = append(f.scrapedWith, pages)
	f.mu.Unlock()
	return f.scrapeFn(pages)
}

func (f *fakeCaps) Weather(ctx context.Context, arg string) (*model.WeatherResult, error) {
	atomic.AddInt32(&f.weatherCalls, 1)
	return f.weatherFn(arg)
}

func (f *fakeCaps) Stock(ctx context.Context, arg string) (*model.StockResult, error) {
	return f.stockFn(arg)
}

func (f *fakeCaps) Dictionary(ctx context.Context, arg string) (*model.DictionaryResult, error) {
	return f.dictFn(arg)
}

type fakeSynth struct {
	calls int32
	fn    func(ctx context.Context, req synth.Request, onToken func(string)) (string, error)

	mu       sync.Mutex
	requests []synth.Request
}

func (f *fakeSynth) Stream(ctx context.Context, req synth.Request, onToken func(string)) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fn(ctx, req, onToken)
}

type fakeSaver struct {
	calls int32
	err   error
}

func (f *fakeSaver) Save(ctx context.Context, snapshot *model.Thread) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func chunkStream(chunks ...string) func(context.Context, synth.Request, func(string)) (string, error) {
	return func(ctx context.Context, req synth.Request, onToken func(string)) (string, error) {
		var b strings.Builder
		for _, c := range chunks {
			b.WriteString(c)
			if onToken != nil {
				onToken(c)
			}
		}
		return b.String(), nil
	}
}

func chatClassifier() *fakeClassifier {
	return &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		return classify.Outcome{Mode: model.ModeChat}, nil
	}}
}

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Pipeline.MaxAttempts = 1
	cfg.Pipeline.RetryDelayMs = 0
	cfg.Pipeline.StageTimeoutSecs = 5
	return cfg
}

func waitNotice(t *testing.T, o *Orchestrator, kind NoticeKind) Notice {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-o.Notices():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notice", kind)
		}
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestWeatherTurnEndToEnd(t *testing.T) {
	st := store.New()
	cl := &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		return classify.Outcome{Mode: model.ModeWeather, Arg: `{"location":"Paris"}`}, nil
	}}
	var gotArg string
	caps := &fakeCaps{weatherFn: func(arg string) (*model.WeatherResult, error) {
		gotArg = arg
		return &model.WeatherResult{City: "Paris", Current: model.WeatherNow{Temperature: 21}}, nil
	}}
	sy := &fakeSynth{fn: chunkStream("It is ", "21 degrees.")}
	saver := &fakeSaver{}

	o := New(st, cl, caps, sy, saver, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("What's the weather in Paris?"))
	o.Observe(snap.ID)
	waitNotice(t, o, NoticeCompleted)

	if gotArg != `{"location":"Paris"}` {
		t.Errorf("adapter arg = %q", gotArg)
	}

	fresh, _ := st.Snapshot(snap.ID)
	turn := fresh.Chats[0]
	if turn.Mode != model.ModeWeather {
		t.Errorf("mode = %s", turn.Mode)
	}
	if turn.Result.Weather == nil || turn.Result.Weather.City != "Paris" {
		t.Errorf("result = %+v", turn.Result)
	}
	if turn.Answer != "It is 21 degrees." {
		t.Errorf("answer = %q", turn.Answer)
	}
	if atomic.LoadInt32(&saver.calls) != 1 {
		t.Errorf("saves = %d, want 1", saver.calls)
	}

	// The synthesizer saw the stored weather JSON in its user message.
	if len(sy.requests) != 1 {
		t.Fatalf("stream calls = %d", len(sy.requests))
	}
	user := sy.requests[0].Messages[len(sy.requests[0].Messages)-1]
	if !strings.Contains(user.Content, `"city":"Paris"`) {
		t.Errorf("synthesis input missing weather data: %q", user.Content)
	}
}

func TestChatTurnSkipsAdapters(t *testing.T) {
	st := store.New()
	caps := &fakeCaps{}
	sy := &fakeSynth{fn: chunkStream("Hello!")}
	o := New(st, chatClassifier(), caps, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("hi"))
	o.Observe(snap.ID)
	waitNotice(t, o, NoticeCompleted)

	if atomic.LoadInt32(&caps.searchCalls)+atomic.LoadInt32(&caps.weatherCalls) != 0 {
		t.Error("chat turn must not touch adapters")
	}

	msgs := sy.requests[0].Messages
	if len(msgs) != 2 || msgs[0].Role != model.RoleSystem || msgs[0].Content != "You are a helpful assistant." {
		t.Errorf("chat template wrong: %+v", msgs)
	}
}

func TestScrapeFailureRetriesOnlyScrape(t *testing.T) {
	st := store.New()
	cl := &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		return classify.Outcome{Mode: model.ModeSearch}, nil
	}}

	pages := []model.SearchPage{
		{URL: "https://a.example"}, {URL: "https://b.example"}, {URL: "https://c.example"},
	}
	scrapeHealthy := atomic.Bool{}
	caps := &fakeCaps{
		searchFn: func(query string) (*model.SearchResult, error) {
			// Adapter contract: scrape-stage failure returns the partial
			// result alongside the stage error.
			return &model.SearchResult{Pages: pages},
				&capability.StageError{Stage: "scrape", Err: errors.New("blocked")}
		},
		scrapeFn: func(p []model.SearchPage) (string, error) {
			if !scrapeHealthy.Load() {
				return "", errors.New("blocked")
			}
			return "https://a.example\nWebsite data: recovered", nil
		},
	}
	sy := &fakeSynth{fn: chunkStream("answer")}

	o := New(st, cl, caps, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("what happened?"))
	o.Observe(snap.ID)

	n := waitNotice(t, o, NoticeFailed)
	if n.Retry == nil || n.Retry.Step != StepScrape {
		t.Fatalf("retry = %+v, want scrape step", n.Retry)
	}
	if n.Retry.Search == nil || len(n.Retry.Search.Pages) != 3 {
		t.Fatalf("retry lost ranked pages: %+v", n.Retry.Search)
	}

	scrapeHealthy.Store(true)
	o.Retry(*n.Retry)
	waitNotice(t, o, NoticeCompleted)

	if atomic.LoadInt32(&caps.searchCalls) != 1 {
		t.Errorf("search calls = %d, want 1 (retry must not re-search)", caps.searchCalls)
	}
	caps.mu.Lock()
	scraped := caps.scrapedWith
	caps.mu.Unlock()
	if len(scraped) == 0 || len(scraped[len(scraped)-1]) != 3 || scraped[len(scraped)-1][0].URL != "https://a.example" {
		t.Errorf("scrape retry pages = %+v", scraped)
	}

	fresh, _ := st.Snapshot(snap.ID)
	if fresh.Chats[0].Result.Search == nil || fresh.Chats[0].Result.Search.Context == "" {
		t.Errorf("search result not stored after retry: %+v", fresh.Chats[0].Result)
	}
}

func TestInThreadOrdering(t *testing.T) {
	st := store.New()

	var mu sync.Mutex
	var order []string
	sy := &fakeSynth{fn: func(ctx context.Context, req synth.Request, onToken func(string)) (string, error) {
		q := req.Messages[len(req.Messages)-1].Content
		mu.Lock()
		order = append(order, "start:"+q)
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		order = append(order, "end:"+q)
		mu.Unlock()
		return "ok", nil
	}}

	o := New(st, chatClassifier(), &fakeCaps{}, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("q1"))
	o.Observe(snap.ID)
	st.AppendTurn(snap.ID, model.NewTurn("q2"))
	o.Observe(snap.ID)

	waitNotice(t, o, NoticeCompleted)
	waitNotice(t, o, NoticeCompleted)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"start:q1", "end:q1", "start:q2", "end:q2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSingleInvocationPerAppend(t *testing.T) {
	st := store.New()
	cl := chatClassifier()
	sy := &fakeSynth{fn: chunkStream("hi")}
	o := New(st, cl, &fakeCaps{}, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("q"))
	for i := 0; i < 10; i++ {
		o.Observe(snap.ID)
	}
	waitNotice(t, o, NoticeCompleted)

	// Drain any remaining work before counting.
	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&cl.calls); got != 1 {
		t.Errorf("classify calls = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&sy.calls); got != 1 {
		t.Errorf("stream calls = %d, want 1", got)
	}
}

func TestCancellationFinality(t *testing.T) {
	st := store.New()
	streaming := make(chan struct{})
	sy := &fakeSynth{fn: func(ctx context.Context, req synth.Request, onToken func(string)) (string, error) {
		onToken("partial ")
		close(streaming)
		<-ctx.Done()
		return "partial ", synth.ErrCancelled
	}}
	saver := &fakeSaver{}

	o := New(st, chatClassifier(), &fakeCaps{}, sy, saver, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("q"))
	o.Observe(snap.ID)

	<-streaming
	o.Cancel(snap.ID)

	waitNotice(t, o, NoticeCompleted)

	fresh, _ := st.Snapshot(snap.ID)
	if fresh.Chats[0].Answer != "partial " {
		t.Errorf("answer = %q", fresh.Chats[0].Answer)
	}
	if st := o.Status(snap.ID); st.Stage != StageCompleted {
		t.Errorf("stage = %s, want completed", st.Stage)
	}
	if atomic.LoadInt32(&saver.calls) != 1 {
		t.Errorf("saves = %d, want exactly 1", saver.calls)
	}
}

func TestNotFoundIsTerminalEmptyState(t *testing.T) {
	st := store.New()
	cl := &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		return classify.Outcome{Mode: model.ModeStock, Arg: `{"symbol":"NOPE"}`}, nil
	}}
	caps := &fakeCaps{stockFn: func(arg string) (*model.StockResult, error) {
		return nil, capability.ErrNotFound
	}}

	cfg := testConfig()
	cfg.Pipeline.MaxAttempts = 3
	o := New(st, cl, caps, &fakeSynth{fn: chunkStream("x")}, &fakeSaver{}, cfg)
	defer o.Close()

	snap := st.Create(model.NewTurn("price of NOPE"))
	o.Observe(snap.ID)

	n := waitNotice(t, o, NoticeEmpty)
	if n.Retry != nil {
		t.Error("not-found must not carry a retry action")
	}
}

func TestMaxRetriesReached(t *testing.T) {
	st := store.New()
	cl := &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		return classify.Outcome{}, classify.ErrUnavailable
	}}

	cfg := testConfig()
	cfg.Pipeline.MaxAttempts = 3
	o := New(st, cl, &fakeCaps{}, &fakeSynth{fn: chunkStream("x")}, &fakeSaver{}, cfg)
	defer o.Close()

	snap := st.Create(model.NewTurn("q"))
	o.Observe(snap.ID)

	n := waitNotice(t, o, NoticeFailed)
	if !strings.Contains(n.Err, "max retries reached") {
		t.Errorf("err = %q", n.Err)
	}
	if n.Retry == nil || n.Retry.Step != StepClassify {
		t.Errorf("retry = %+v", n.Retry)
	}
	if got := atomic.LoadInt32(&cl.calls); got != 3 {
		t.Errorf("classify attempts = %d, want 3", got)
	}
}

func TestMissingArgumentFailsClassification(t *testing.T) {
	st := store.New()
	cl := &fakeClassifier{fn: func(string) (classify.Outcome, error) {
		// The defensive argument discard can leave an arg-needing mode
		// with no argument.
		return classify.Outcome{Mode: model.ModeWeather, Arg: ""}, nil
	}}
	caps := &fakeCaps{weatherFn: func(string) (*model.WeatherResult, error) {
		t.Error("adapter must not run without an argument")
		return nil, nil
	}}

	o := New(st, cl, caps, &fakeSynth{fn: chunkStream("x")}, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("weather?"))
	o.Observe(snap.ID)

	n := waitNotice(t, o, NoticeFailed)
	if n.Retry == nil || n.Retry.Step != StepClassify {
		t.Errorf("retry = %+v, want classify step", n.Retry)
	}
}

func TestSynthesizeRetryUsesOriginalMessages(t *testing.T) {
	st := store.New()
	failFirst := atomic.Bool{}
	failFirst.Store(true)
	sy := &fakeSynth{fn: func(ctx context.Context, req synth.Request, onToken func(string)) (string, error) {
		if failFirst.Load() {
			return "", &synth.StreamError{Err: errors.New("connection reset")}
		}
		onToken("recovered")
		return "recovered", nil
	}}

	o := New(st, chatClassifier(), &fakeCaps{}, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("q"))
	o.Observe(snap.ID)

	n := waitNotice(t, o, NoticeFailed)
	if n.Retry == nil || n.Retry.Step != StepSynthesize || len(n.Retry.Messages) == 0 {
		t.Fatalf("retry = %+v", n.Retry)
	}

	failFirst.Store(false)
	o.Retry(*n.Retry)
	waitNotice(t, o, NoticeCompleted)

	sy.mu.Lock()
	defer sy.mu.Unlock()
	first, second := sy.requests[0].Messages, sy.requests[1].Messages
	if len(first) != len(second) || first[len(first)-1].Content != second[len(second)-1].Content {
		t.Error("retry must reuse the original message log")
	}

	fresh, _ := st.Snapshot(snap.ID)
	if fresh.Chats[0].Answer != "recovered" {
		t.Errorf("answer = %q", fresh.Chats[0].Answer)
	}
}

func TestHydratedCompleteThreadNotReprocessed(t *testing.T) {
	st := store.New()
	cl := chatClassifier()
	o := New(st, cl, &fakeCaps{}, &fakeSynth{fn: chunkStream("x")}, &fakeSaver{}, testConfig())
	defer o.Close()

	turn := model.NewTurn("old question")
	turn.Mode = model.ModeChat
	turn.Answer = "old answer"
	th := model.NewThread(turn)
	st.Put(th)

	o.Observe(th.ID)
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&cl.calls); got != 0 {
		t.Errorf("hydrated complete thread reprocessed: %d classify calls", got)
	}
}

func TestRewriteReplacesLastAssistant(t *testing.T) {
	st := store.New()
	sy := &fakeSynth{fn: chunkStream("first answer")}
	o := New(st, chatClassifier(), &fakeCaps{}, sy, &fakeSaver{}, testConfig())
	defer o.Close()

	snap := st.Create(model.NewTurn("q"))
	o.Observe(snap.ID)
	waitNotice(t, o, NoticeCompleted)

	sy.fn = chunkStream("second answer")
	o.Rewrite(snap.ID)
	waitNotice(t, o, NoticeCompleted)

	fresh, _ := st.Snapshot(snap.ID)
	if fresh.Chats[0].Answer != "second answer" {
		t.Errorf("answer = %q", fresh.Chats[0].Answer)
	}

	assistants := 0
	for _, m := range fresh.Messages {
		if m.Role == model.RoleAssistant {
			assistants++
			if m.Content != "second answer" {
				t.Errorf("assistant message = %q", m.Content)
			}
		}
	}
	if assistants != 1 {
		t.Errorf("assistant messages = %d, want 1 (replaced, not appended)", assistants)
	}
}
