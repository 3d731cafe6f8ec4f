// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/config"
	"github.com/seeka-ai/seeka-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrCancelled reports a user-aborted stream. The partial answer returned
// alongside it is valid content, not an error artifact.
var ErrCancelled = errors.New("synth: stream cancelled")

// StreamError preserves the partial answer accumulated before a
// mid-stream failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("synth: stream failed after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Request describes one synthesis call.
type Request struct {
	Messages []model.Message
	// Mode selects the model: image turns are forced onto the vision
	// model regardless of the configured chat model.
	Mode model.Mode
	AI   config.AIConfig
}

// Synthesizer streams chat completions from the configured endpoint.
type Synthesizer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a synthesizer. baseURL is the completion API base (".../v1").
func New(baseURL, apiKey string) *Synthesizer {
	return &Synthesizer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			// No overall timeout: streams run until done or cancelled.
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// wireMessage is the outbound message shape. Content is a string for
// plain messages and a part list for image messages.
type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type completionRequest struct {
	Model            string        `json:"model"`
	Messages         []wireMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
}

// Stream runs one completion, delivering text chunks to onToken in
// arrival order and returning the assembled answer. The response body is
// a plain text stream.
//
// Context cancellation mid-stream returns the partial answer with
// ErrCancelled. Any other mid-stream failure returns the partial answer
// wrapped in a StreamError.
func (s *Synthesizer) Stream(ctx context.Context, req Request, onToken func(string)) (string, error) {
	modelName := req.AI.Model
	if req.Mode == model.ModeImage {
		modelName = req.AI.VisionModel
	}

	wire := make([]wireMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wire = append(wire, wireMessage{Role: string(m.Role), Content: m.WireContent()})
	}

	payload, err := json.Marshal(completionRequest{
		Model:            modelName,
		Messages:         wire,
		Temperature:      req.AI.Temperature,
		MaxTokens:        req.AI.MaxTokens,
		TopP:             req.AI.TopP,
		FrequencyPenalty: req.AI.FrequencyPenalty,
		PresencePenalty:  req.AI.PresencePenalty,
		Stream:           true,
	})
	if err != nil {
		return "", fmt.Errorf("synth: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("synth: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", &StreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StreamError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}

	var answer strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			answer.WriteString(chunk)
			if onToken != nil {
				onToken(chunk)
			}
		}
		if err == io.EOF {
			return answer.String(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return answer.String(), ErrCancelled
			}
			return answer.String(), &StreamError{Partial: answer.String(), Err: err}
		}
	}
}
