// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"net/url"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// Stock fetches a quote for the symbol named in the raw classifier
// argument.
func (c *Client) Stock(ctx context.Context, rawArg string) (*model.StockResult, error) {
	symbol, err := parseArg(rawArg, "symbol")
	if err != nil {
		return nil, err
	}

	var result model.StockResult
	if err := c.getJSON(ctx, c.endpoints.StockURL, url.Values{"symbol": {symbol}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
