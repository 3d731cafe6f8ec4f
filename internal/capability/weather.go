// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// weatherArg is the classifier's argument shape for weather turns. The
// classifier may also emit a "unit" field; the weather service reports
// in metric regardless, so only the location travels on the wire.
type weatherArg struct {
	Location string `json:"location"`
}

// Weather fetches current conditions and forecast for the city named in
// the raw classifier argument.
func (c *Client) Weather(ctx context.Context, rawArg string) (*model.WeatherResult, error) {
	if rawArg == "" {
		return nil, fmt.Errorf("%w: empty argument", ErrBadArgument)
	}
	var arg weatherArg
	if err := json.Unmarshal([]byte(rawArg), &arg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	if arg.Location == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrBadArgument, "location")
	}

	var result model.WeatherResult
	params := url.Values{"city": {arg.Location}}
	if err := c.getJSON(ctx, c.endpoints.WeatherURL, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
