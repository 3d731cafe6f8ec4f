// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/seeka-ai/seeka-tui/internal/model"
)

// maxSearchPages caps how many ranked results get scraped and cited.
const maxSearchPages = 3

// searchResponse is the wire shape of the search endpoint: the upstream
// web index's result document under a data envelope.
type searchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
		Images struct {
			Value []struct {
				ThumbnailURL string `json:"thumbnailUrl"`
				HostPageURL  string `json:"hostPageUrl"`
			} `json:"value"`
		} `json:"images"`
		Videos struct {
			Value []struct {
				ThumbnailURL string `json:"thumbnailUrl"`
				HostPageURL  string `json:"hostPageUrl"`
			} `json:"value"`
		} `json:"videos"`
	} `json:"data"`
}

// Search runs the two-stage search pipeline: rank pages for the query,
// then scrape the top pages into a context string.
//
// When the scrape stage fails, the returned result still carries the
// ranked pages alongside a StageError{Stage: "scrape"}, so a retry can
// call Scrape with the same pages instead of re-running the search and
// risking a different ranking.
func (c *Client) Search(ctx context.Context, query string) (*model.SearchResult, error) {
	var resp searchResponse
	if err := c.getJSON(ctx, c.endpoints.SearchURL, url.Values{"q": {query}}, &resp); err != nil {
		return nil, &StageError{Stage: "search", Err: err}
	}

	result := &model.SearchResult{}
	for i, p := range resp.Data.WebPages.Value {
		if i >= maxSearchPages {
			break
		}
		result.Pages = append(result.Pages, model.SearchPage{Name: p.Name, URL: p.URL, Snippet: p.Snippet})
	}
	for _, img := range resp.Data.Images.Value {
		result.Images = append(result.Images, model.SearchMedia{ThumbnailURL: img.ThumbnailURL, HostPageURL: img.HostPageURL})
	}
	for _, vid := range resp.Data.Videos.Value {
		result.Videos = append(result.Videos, model.SearchMedia{ThumbnailURL: vid.ThumbnailURL, HostPageURL: vid.HostPageURL})
	}

	if len(result.Pages) == 0 {
		return nil, &StageError{Stage: "search", Err: ErrNotFound}
	}

	contextText, err := c.Scrape(ctx, result.Pages)
	if err != nil {
		return result, &StageError{Stage: "scrape", Err: err}
	}
	result.Context = contextText
	return result, nil
}

// Scrape fetches the pages' text through the scrape endpoint in one
// call: the URLs travel comma-joined in the query string, and the
// response body comes back as plain text already formatted per page
// ("<url>\nWebsite data: <text>" blocks, each page capped by the
// service) ready for the synthesis prompt.
func (c *Client) Scrape(ctx context.Context, pages []model.SearchPage) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &TransportError{Endpoint: c.endpoints.ScrapeURL, Err: err}
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.URL
	}

	u, err := url.Parse(c.endpoints.ScrapeURL)
	if err != nil {
		return "", &TransportError{Endpoint: c.endpoints.ScrapeURL, Err: err}
	}
	u.RawQuery = url.Values{"urls": {strings.Join(urls, ",")}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return "", &TransportError{Endpoint: c.endpoints.ScrapeURL, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Endpoint: c.endpoints.ScrapeURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", &TransportError{
			Endpoint: c.endpoints.ScrapeURL,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, body),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Endpoint: c.endpoints.ScrapeURL, Err: err}
	}
	return string(body), nil
}
