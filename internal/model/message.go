// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ContentPart is one part of a multi-part message. Image turns send a text
// part plus an image-url part; every other turn sends plain text content.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Message is one role-tagged entry in the conversation log handed to the
// language model. Content holds plain text; Parts, when non-empty, takes
// precedence and carries multi-part content.
type Message struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewImageMessage creates the single multi-part user message an image turn
// sends: the question text plus the uploaded file's URL.
func NewImageMessage(text, url string) Message {
	return Message{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: url}},
		},
	}
}

// WireContent returns the value to marshal into the chat endpoint's
// "content" field: a string for plain messages, an array for multi-part.
func (m Message) WireContent() any {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	return m.Content
}

// IsMultipart reports whether the message carries multi-part content.
func (m Message) IsMultipart() bool {
	return len(m.Parts) > 0
}
