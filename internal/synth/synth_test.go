// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
)

var testNow = time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)

func TestInitialMessagesChat(t *testing.T) {
	msgs := InitialMessages(model.NewTurn("hello"), "", testNow)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleSystem || msgs[0].Content != "You are a helpful assistant." {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleUser || msgs[1].Content != "hello" {
		t.Errorf("user message = %+v", msgs[1])
	}
}

func TestInitialMessagesSearch(t *testing.T) {
	turn := model.NewTurn("what happened?")
	turn.Mode = model.ModeSearch
	data := "https://a.example\nWebsite data: something happened"

	msgs := InitialMessages(turn, data, testNow)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	sys := msgs[0].Content
	if !strings.Contains(sys, "Friday, March 14, 2025 09:26:53 UTC") {
		t.Errorf("date not injected: %q", sys)
	}
	if !strings.Contains(sys, "[{number}]") {
		t.Errorf("citation instruction missing: %q", sys)
	}
	want := data + "\n\nQuestion: what happened?"
	if msgs[1].Content != want {
		t.Errorf("user message = %q, want %q", msgs[1].Content, want)
	}
}

func TestInitialMessagesDataModes(t *testing.T) {
	for _, mode := range []model.Mode{model.ModeWeather, model.ModeStock, model.ModeDictionary} {
		turn := model.NewTurn("tell me")
		turn.Mode = mode
		msgs := InitialMessages(turn, `{"some":"payload"}`, testNow)
		if len(msgs) != 2 {
			t.Fatalf("%s: messages = %d, want 2", mode, len(msgs))
		}
		if !strings.Contains(msgs[0].Content, string(mode)) {
			t.Errorf("%s: system prompt does not name the data source: %q", mode, msgs[0].Content)
		}
		if !strings.HasPrefix(msgs[1].Content, `{"some":"payload"}`+"\n\nQuestion: ") {
			t.Errorf("%s: user message = %q", mode, msgs[1].Content)
		}
	}
}

func TestInitialMessagesImage(t *testing.T) {
	turn := model.NewImageTurn("what is this?", &model.FileInfo{Name: "cat.png", URL: "https://files.example/cat.png"})
	msgs := InitialMessages(turn, "", testNow)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if !msgs[0].IsMultipart() {
		t.Error("image turn must produce a multi-part message")
	}
}

func TestSpliceCustomPrompt(t *testing.T) {
	msgs := []model.Message{
		model.NewSystemMessage("sys"),
		model.NewUserMessage("q1"),
		model.NewAssistantMessage("a1"),
		model.NewUserMessage("q2"),
	}
	out := SpliceCustomPrompt(msgs, "answer like a pirate")
	if len(out) != 5 {
		t.Fatalf("messages = %d, want 5", len(out))
	}
	if out[3].Role != model.RoleSystem || out[3].Content != "answer like a pirate" {
		t.Errorf("custom prompt not second-to-last: %+v", out[3])
	}
	if out[4].Content != "q2" {
		t.Errorf("final user message displaced: %+v", out[4])
	}

	if got := SpliceCustomPrompt(msgs, ""); len(got) != 4 {
		t.Error("empty prompt must be a no-op")
	}
}

func TestRewriteMessages(t *testing.T) {
	first := model.NewTurn("q1")
	first.Answer = "a1"
	second := model.NewTurn("q2")
	second.Answer = "stale answer"

	th := model.NewThread(first)
	th.Chats = append(th.Chats, second)
	th.Messages = append(th.Messages,
		model.NewSystemMessage("sys"),
		model.NewUserMessage("q1"),
		model.NewAssistantMessage("a1"),
		model.NewUserMessage("q2"),
		model.NewAssistantMessage("stale answer"),
	)

	msgs := RewriteMessages(th)
	want := []struct {
		role    model.Role
		content string
	}{
		{model.RoleSystem, "sys"},
		{model.RoleUser, "q1"},
		{model.RoleAssistant, "a1"},
		{model.RoleUser, "q2"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("msg[%d] = %+v, want %s %q", i, msgs[i], w.role, w.content)
		}
	}
}

func streamServer(t *testing.T, chunks []string, wantModel string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if !req.Stream {
			t.Error("stream flag not set")
		}
		if wantModel != "" && req.Model != wantModel {
			t.Errorf("model = %q, want %q", req.Model, wantModel)
		}

		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
}

func TestStreamAssemblesChunks(t *testing.T) {
	srv := streamServer(t, []string{"Hello", ", ", "world"}, "gpt-3.5-turbo")
	defer srv.Close()

	s := New(srv.URL, "key")
	var tokens []string
	answer, err := s.Stream(context.Background(), Request{
		Messages: InitialMessages(model.NewTurn("hi"), "", testNow),
		Mode:     model.ModeChat,
		AI:       config.DefaultConfig().AI,
	}, func(tok string) { tokens = append(tokens, tok) })
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if answer != "Hello, world" {
		t.Errorf("answer = %q", answer)
	}
	if strings.Join(tokens, "") != "Hello, world" {
		t.Errorf("token callback saw %q", strings.Join(tokens, ""))
	}
}

func TestStreamForcesVisionModel(t *testing.T) {
	ai := config.DefaultConfig().AI
	srv := streamServer(t, []string{"a cat"}, ai.VisionModel)
	defer srv.Close()

	s := New(srv.URL, "key")
	turn := model.NewImageTurn("what is this?", &model.FileInfo{URL: "https://files.example/cat.png"})
	_, err := s.Stream(context.Background(), Request{
		Messages: InitialMessages(turn, "", testNow),
		Mode:     model.ModeImage,
		AI:       ai,
	}, nil)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
}

func TestStreamCancelReturnsPartial(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "partial ")
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(srv.URL, "key")

	got := make(chan struct{})
	var answer string
	var streamErr error
	go func() {
		answer, streamErr = s.Stream(ctx, Request{
			Messages: InitialMessages(model.NewTurn("hi"), "", testNow),
			Mode:     model.ModeChat,
			AI:       config.DefaultConfig().AI,
		}, func(string) {})
		close(got)
	}()

	// Give the first chunk time to arrive, then abort.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-got

	if !errors.Is(streamErr, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", streamErr)
	}
	if answer != "partial " {
		t.Errorf("partial answer = %q", answer)
	}
}

func TestStreamServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(srv.URL, "key")
	_, err := s.Stream(context.Background(), Request{
		Messages: InitialMessages(model.NewTurn("hi"), "", testNow),
		Mode:     model.ModeChat,
		AI:       config.DefaultConfig().AI,
	}, nil)

	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StreamError", err)
	}
}
