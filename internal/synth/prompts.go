// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package synth turns a resolved turn into a streamed answer.
//
// It owns the prompt templates for each mode and the streaming completion
// client. Prompt construction is pure; only Stream touches the network.
package synth

import (
	"fmt"
	"time"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// =============================================================================
// PROMPT TEMPLATES
// =============================================================================

const chatSystemPrompt = "You are a helpful assistant."

const searchSystemPrompt = "Generate a comprehensive and informative answer (but no more than 256 words in 2 paragraphs) " +
	"for a given question solely based on the provided web search results (URL and scraped page data). " +
	"You must only use information from the provided search results. " +
	"Use an unbiased and journalistic tone. " +
	"Use this current date and time: %s. " +
	"Combine search results together into a coherent answer. Do not repeat text. " +
	"Cite search results using [{number}] notation, starting with [1]. " +
	"Only cite the most relevant results that answer the question accurately. " +
	"If different results refer to different entities with the same name, write separate answers for each entity."

const dataSystemPrompt = "Generate a comprehensive and informative answer (but no more than 256 words in 2 paragraphs) " +
	"for a given question solely based on the user's question and the provided %s data. " +
	"Answer the question by combining the provided data with the user's question. " +
	"Use an unbiased and journalistic tone. " +
	"Use this current date and time: %s."

// promptTime formats the timestamp injected into the time-sensitive
// system prompts.
func promptTime(now time.Time) string {
	return now.UTC().Format("Monday, January 2, 2006 15:04:05") + " UTC"
}

// InitialMessages builds the opening message pair for a turn. Data is the
// capability context (scraped pages or payload JSON); it is empty for chat
// and image turns. Image turns produce a single multi-part user message
// referencing the uploaded file.
func InitialMessages(turn model.Turn, data string, now time.Time) []model.Message {
	switch turn.Mode {
	case model.ModeImage:
		fileURL := ""
		if turn.Result.File != nil {
			fileURL = turn.Result.File.URL
		}
		return []model.Message{model.NewImageMessage(turn.Question, fileURL)}

	case model.ModeChat:
		return []model.Message{
			model.NewSystemMessage(chatSystemPrompt),
			model.NewUserMessage(turn.Question),
		}

	case model.ModeSearch:
		return []model.Message{
			model.NewSystemMessage(fmt.Sprintf(searchSystemPrompt, promptTime(now))),
			model.NewUserMessage(data + "\n\nQuestion: " + turn.Question),
		}

	case model.ModeWeather, model.ModeStock, model.ModeDictionary:
		return []model.Message{
			model.NewSystemMessage(fmt.Sprintf(dataSystemPrompt, string(turn.Mode), promptTime(now))),
			model.NewUserMessage(data + "\n\nQuestion: " + turn.Question),
		}

	default:
		return nil
	}
}

// FollowUpMessages extends an existing message log with the next user
// question.
func FollowUpMessages(existing []model.Message, question string) []model.Message {
	msgs := make([]model.Message, 0, len(existing)+1)
	msgs = append(msgs, existing...)
	return append(msgs, model.NewUserMessage(question))
}

// RewriteMessages rebuilds the conversation for re-answering the last
// question: the first system message, each prior completed turn as a
// question/answer pair, and the last question re-asked. The caller
// replaces the last assistant message with the fresh answer instead of
// appending.
func RewriteMessages(th *model.Thread) []model.Message {
	if th == nil || len(th.Chats) == 0 {
		return nil
	}

	var msgs []model.Message
	if sys := th.FirstSystemMessage(); sys != nil {
		msgs = append(msgs, *sys)
	}

	last := len(th.Chats) - 1
	for _, turn := range th.Chats[:last] {
		msgs = append(msgs, model.NewUserMessage(turn.Question))
		msgs = append(msgs, model.NewAssistantMessage(turn.Answer))
	}
	return append(msgs, model.NewUserMessage(th.Chats[last].Question))
}

// SpliceCustomPrompt inserts a user-configured system prompt immediately
// before the final message. The final message is always the user question;
// splicing keeps the custom instruction adjacent to it instead of buried
// at the top of a long history.
func SpliceCustomPrompt(msgs []model.Message, prompt string) []model.Message {
	if prompt == "" || len(msgs) == 0 {
		return msgs
	}
	out := make([]model.Message, 0, len(msgs)+1)
	out = append(out, msgs[:len(msgs)-1]...)
	out = append(out, model.NewSystemMessage(prompt))
	return append(out, msgs[len(msgs)-1])
}
