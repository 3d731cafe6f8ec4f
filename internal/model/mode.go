// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// MODE TYPE
// =============================================================================

// Mode is the capability classification of a turn. A freshly created turn
// has ModeUnclassified (the empty string) until the classifier assigns one.
type Mode string

const (
	ModeUnclassified Mode = ""
	ModeChat         Mode = "chat"
	ModeSearch       Mode = "search"
	ModeImage        Mode = "image"
	ModeWeather      Mode = "weather"
	ModeStock        Mode = "stock"
	ModeDictionary   Mode = "dictionary"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	if m == ModeUnclassified {
		return "unclassified"
	}
	return string(m)
}

// Valid reports whether m is one of the known modes (including unclassified).
func (m Mode) Valid() bool {
	switch m {
	case ModeUnclassified, ModeChat, ModeSearch, ModeImage, ModeWeather, ModeStock, ModeDictionary:
		return true
	}
	return false
}

// NeedsCapability reports whether the mode requires a capability adapter
// to run before synthesis. Chat and image turns go straight to synthesis.
func (m Mode) NeedsCapability() bool {
	switch m {
	case ModeSearch, ModeWeather, ModeStock, ModeDictionary:
		return true
	}
	return false
}

// NeedsArg reports whether the mode requires a classification argument.
// Search takes no argument (the question itself is the query); weather,
// stock and dictionary cannot be invoked without one.
func (m Mode) NeedsArg() bool {
	switch m {
	case ModeWeather, ModeStock, ModeDictionary:
		return true
	}
	return false
}
