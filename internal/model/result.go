// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// CAPABILITY RESULT (TAGGED VARIANT)
// =============================================================================

// ResultKind identifies which capability produced a result.
type ResultKind string

const (
	ResultNone       ResultKind = ""
	ResultSearch     ResultKind = "search"
	ResultWeather    ResultKind = "weather"
	ResultStock      ResultKind = "stock"
	ResultDictionary ResultKind = "dictionary"
	ResultFile       ResultKind = "file"
)

// CapabilityResult is a tagged variant holding at most one capability
// payload. The constructors below are the only way a payload should be
// attached, which keeps the exclusivity invariant structural: exactly one
// payload field is non-nil, and it always matches Kind.
type CapabilityResult struct {
	Kind       ResultKind        `json:"kind,omitempty"`
	Search     *SearchResult     `json:"search,omitempty"`
	Weather    *WeatherResult    `json:"weather,omitempty"`
	Stock      *StockResult      `json:"stock,omitempty"`
	Dictionary *DictionaryResult `json:"dictionary,omitempty"`
	File       *FileInfo         `json:"file,omitempty"`
}

// NoResult returns the zero capability result.
func NoResult() CapabilityResult {
	return CapabilityResult{}
}

// SearchCapability wraps a search result.
func SearchCapability(r *SearchResult) CapabilityResult {
	return CapabilityResult{Kind: ResultSearch, Search: r}
}

// WeatherCapability wraps a weather result.
func WeatherCapability(r *WeatherResult) CapabilityResult {
	return CapabilityResult{Kind: ResultWeather, Weather: r}
}

// StockCapability wraps a stock result.
func StockCapability(r *StockResult) CapabilityResult {
	return CapabilityResult{Kind: ResultStock, Stock: r}
}

// DictionaryCapability wraps a dictionary result.
func DictionaryCapability(r *DictionaryResult) CapabilityResult {
	return CapabilityResult{Kind: ResultDictionary, Dictionary: r}
}

// FileCapability wraps an uploaded file reference (image turns).
func FileCapability(fi *FileInfo) CapabilityResult {
	return CapabilityResult{Kind: ResultFile, File: fi}
}

// IsZero reports whether no capability result is present.
func (r CapabilityResult) IsZero() bool {
	return r.Kind == ResultNone
}

// MatchesMode reports whether the result kind is the one the given mode
// produces. Chat turns carry no result; image turns carry a file reference.
func (r CapabilityResult) MatchesMode(m Mode) bool {
	switch m {
	case ModeSearch:
		return r.Kind == ResultSearch
	case ModeWeather:
		return r.Kind == ResultWeather
	case ModeStock:
		return r.Kind == ResultStock
	case ModeDictionary:
		return r.Kind == ResultDictionary
	case ModeImage:
		return r.Kind == ResultFile
	default:
		return r.Kind == ResultNone
	}
}

// Data renders the payload as the context string handed to the
// synthesizer. Search results contribute the scraped page context; the
// structured results contribute their JSON form, which is what the
// mode-specific prompts instruct the model to answer from.
func (r CapabilityResult) Data() string {
	switch r.Kind {
	case ResultSearch:
		if r.Search != nil {
			return r.Search.Context
		}
	case ResultWeather:
		return marshalData(r.Weather)
	case ResultStock:
		return marshalData(r.Stock)
	case ResultDictionary:
		return marshalData(r.Dictionary)
	}
	return ""
}

func marshalData(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// =============================================================================
// DOMAIN RESULT PAYLOADS
// =============================================================================

// SearchPage is one ranked web result.
type SearchPage struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchMedia is an image or video result used by the optional widgets.
type SearchMedia struct {
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	HostPageURL  string `json:"host_page_url,omitempty"`
}

// SearchResult holds the two-stage search outcome: the ranked pages from
// the search endpoint and the concatenated page text from the scrape
// collaborator. Pages is capped at the top three results.
type SearchResult struct {
	Pages   []SearchPage  `json:"pages"`
	Images  []SearchMedia `json:"images,omitempty"`
	Videos  []SearchMedia `json:"videos,omitempty"`
	Context string        `json:"context,omitempty"`
}

// Citation is a numbered source reference derived from search pages.
type Citation struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// Citations numbers the ranked pages for [n]-style references, matching
// the citation notation the search prompt asks the model to emit.
func (r *SearchResult) Citations() []Citation {
	if r == nil {
		return nil
	}
	citations := make([]Citation, 0, len(r.Pages))
	for i, p := range r.Pages {
		citations = append(citations, Citation{Number: i + 1, URL: p.URL})
	}
	return citations
}

// WeatherNow is the current conditions block.
type WeatherNow struct {
	Temperature int    `json:"temperature"`
	Weather     string `json:"weather"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// WeatherHour is one hourly forecast entry.
type WeatherHour struct {
	Time        string `json:"time"`
	Temperature int    `json:"temperature"`
	Weather     string `json:"weather"`
	Icon        string `json:"icon,omitempty"`
}

// WeatherRange is the daily min/max block.
type WeatherRange struct {
	MaxTemp int `json:"maxTemp"`
	MinTemp int `json:"minTemp"`
}

// WeatherResult is the normalized weather payload for a city.
type WeatherResult struct {
	City    string        `json:"city"`
	Current WeatherNow    `json:"current"`
	Hourly  []WeatherHour `json:"hourly,omitempty"`
	Daily   WeatherRange  `json:"daily"`
}

// StockChange is the day-over-day price movement.
type StockChange struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// StockPoint is one historical chart sample.
type StockPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// StockResult is the normalized quote payload for a symbol.
type StockResult struct {
	CompanyName   string       `json:"companyName"`
	Ticker        string       `json:"ticker"`
	Exchange      string       `json:"exchange,omitempty"`
	CurrentPrice  float64      `json:"currentPrice"`
	Change        StockChange  `json:"change"`
	ChartData     []StockPoint `json:"chartData,omitempty"`
	Open          float64      `json:"open,omitempty"`
	High          float64      `json:"high,omitempty"`
	Low           float64      `json:"low,omitempty"`
	PreviousClose float64      `json:"previousClose,omitempty"`
	MarketCap     float64      `json:"marketCap,omitempty"`
	PERatio       float64      `json:"peRatio,omitempty"`
	DividendYield string       `json:"dividendYield,omitempty"`
	High52Week    float64      `json:"high52Week,omitempty"`
	Low52Week     float64      `json:"low52Week,omitempty"`
}

// Phonetic is one pronunciation entry.
type Phonetic struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Definition is one sense of a word within a part of speech.
type Definition struct {
	Definition string `json:"definition"`
	Example    string `json:"example,omitempty"`
}

// Meaning groups definitions under a part of speech.
type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
}

// DictionaryResult is the normalized dictionary payload for a word.
type DictionaryResult struct {
	Word      string     `json:"word"`
	Phonetic  string     `json:"phonetic,omitempty"`
	Phonetics []Phonetic `json:"phonetics,omitempty"`
	Origin    string     `json:"origin,omitempty"`
	Meanings  []Meaning  `json:"meanings"`
}

// FileInfo references an uploaded file (image turns).
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
	Date string `json:"date,omitempty"`
	URL  string `json:"url"`
}
