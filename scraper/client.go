// Package scraper talks to the hosted scrape provider's dataset API.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"post-ingest-pipeline/config"
)

// Client fetches dataset items from the scrape provider. Used when a
// webhook delivers only a dataset pointer instead of the items themselves.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new dataset client.
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.ScraperAPIURL,
		token:   cfg.ScraperAPIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchDatasetItems downloads all items of a finished scrape run. Any
// transport failure or non-200 response is fatal to the ingestion attempt:
// there is no partial data to salvage, so the error goes straight back to
// the caller.
func (c *Client) FetchDatasetItems(ctx context.Context, datasetID string) ([]map[string]interface{}, error) {
	if c.token == "" {
		return nil, fmt.Errorf("scraper API token is not configured")
	}

	url := fmt.Sprintf("%s/v2/datasets/%s/items?format=json", c.baseURL, datasetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dataset fetch for %s returned status %d: %s",
			datasetID, resp.StatusCode, string(body))
	}

	var items []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s items: %w", datasetID, err)
	}

	return items, nil
}
