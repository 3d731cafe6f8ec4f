// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package classify decides which capability should answer a question.
//
// The classifier sends the question plus a fixed system instruction to an
// LLM configured with a fixed tool schema (search, stock, dictionary,
// weather). A tool invocation in the response selects the mode; no
// invocation means plain chat. The classifier never defaults to chat on
// failure: a wrong answer path is worse than a retryable error.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnavailable wraps transport-level failures. Retryable.
	ErrUnavailable = errors.New("classify: endpoint unavailable")
	// ErrBadResponse wraps unexpected response shapes. Treated like a
	// transport failure for retry purposes.
	ErrBadResponse = errors.New("classify: malformed response")
)

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is a classification result: the selected mode and its raw
// argument JSON. Arg is empty for chat and search, and for the defensive
// two-key discard case — callers must treat an empty Arg as "argument-free
// mode" even for modes that normally require one.
type Outcome struct {
	Mode model.Mode `json:"mode"`
	Arg  string     `json:"arg"`
}

// =============================================================================
// TOOL SCHEMA
// =============================================================================

// systemInstruction steers the model toward tool use. Kept deliberately
// blunt: the classifier model is small and literal.
const systemInstruction = "You are an AI assistant who is supposed to use functions or chat based on the user query. " +
	"If the user wants to search for information, use the search function. " +
	"If the user wants to get stock information, use the stock function. " +
	"If the user wants to get weather information, use the weather function. " +
	"If the user wants to get dictionary information, use the dictionary function."

// toolSchema is the fixed four-tool schema. Search takes no parameters;
// the question itself is the query.
var toolSchema = []tool{
	{
		Type: "function",
		Function: toolFunction{
			Name:        "search",
			Description: "Search for information based on a query",
			Parameters: toolParameters{
				Type:       "object",
				Properties: map[string]toolProperty{},
			},
		},
	},
	{
		Type: "function",
		Function: toolFunction{
			Name:        "stock",
			Description: "Get the latest stock information for a given symbol",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"symbol": {Type: "string", Description: "Stock symbol to fetch data for."},
				},
				Required: []string{"symbol"},
			},
		},
	},
	{
		Type: "function",
		Function: toolFunction{
			Name:        "dictionary",
			Description: "Get dictionary information for a given word",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"word": {Type: "string", Description: "Word to look up in the dictionary."},
				},
				Required: []string{"word"},
			},
		},
	},
	{
		Type: "function",
		Function: toolFunction{
			Name:        "weather",
			Description: "Get the current weather in a given location",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"location": {Type: "string", Description: "City name to fetch the weather for."},
					"unit":     {Type: "string", Enum: []string{"celsius", "fahrenheit"}, Description: "Temperature unit."},
				},
				Required: []string{"location"},
			},
		},
	},
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  toolParameters `json:"parameters"`
}

type toolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]toolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

type toolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice string        `json:"tool_choice"`
}

type toolResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier performs mode detection against an OpenAI-compatible API.
type Classifier struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New creates a classifier. baseURL is the API base (".../v1").
func New(baseURL, apiKey, modelName string) *Classifier {
	return &Classifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   modelName,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Classify determines the capability mode for a question. One outbound
// model call, no state mutation.
func (c *Classifier) Classify(ctx context.Context, question string) (Outcome, error) {
	reqBody := toolRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: question},
		},
		Tools:      toolSchema,
		ToolChoice: "auto",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Outcome{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded toolResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return Outcome{}, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	calls := decoded.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return Outcome{Mode: model.ModeChat, Arg: ""}, nil
	}

	first := calls[0].Function
	mode := model.Mode(first.Name)
	if !mode.Valid() || mode == model.ModeUnclassified {
		return Outcome{}, fmt.Errorf("%w: unknown tool %q", ErrBadResponse, first.Name)
	}

	return Outcome{Mode: mode, Arg: filterArguments(first.Arguments)}, nil
}

// filterArguments applies the defensive two-key discard: an argument
// object with exactly two keys signals a malformed or ambiguous tool call
// and is reported as empty instead. Unparseable argument payloads are
// also discarded rather than passed downstream.
func filterArguments(raw string) string {
	if raw == "" {
		return ""
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return ""
	}
	if len(args) == 0 || len(args) == 2 {
		return ""
	}
	return raw
}
