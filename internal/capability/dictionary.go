// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"net/url"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// Dictionary looks up the word named in the raw classifier argument.
func (c *Client) Dictionary(ctx context.Context, rawArg string) (*model.DictionaryResult, error) {
	word, err := parseArg(rawArg, "word")
	if err != nil {
		return nil, err
	}

	var result model.DictionaryResult
	if err := c.getJSON(ctx, c.endpoints.DictionaryURL, url.Values{"word": {word}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
