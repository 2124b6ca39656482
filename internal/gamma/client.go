package gamma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

const (
	// DefaultBaseURL is the base URL for the Gamma API.
	DefaultBaseURL = "https://gamma-api.polymarket.com"

	userAgent = "arbmon/1.0"
)

// ErrNoMarket is returned when no market matches the target question.
var ErrNoMarket = errors.New("gamma: no matching market")

// ErrBadQuote is returned when a market lacks usable outcome prices.
var ErrBadQuote = errors.New("gamma: market has no valid outcome prices")

// Client is an HTTP client for the Gamma API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Gamma API client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
	}
}

// WithBaseURL sets a custom base URL for the client.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// FetchEvents fetches open events filtered by tag, sorted by recent volume.
func (c *Client) FetchEvents(ctx context.Context, tagSlug string, limit int) ([]Event, error) {
	v := url.Values{}
	v.Set("closed", "false")
	v.Set("limit", fmt.Sprintf("%d", limit))
	v.Set("tag_slug", tagSlug)
	v.Set("order", "volume24hr")
	v.Set("ascending", "false")

	u := c.baseURL + "/events?" + v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return events, nil
}

// FetchTargetMarket returns the highest-volume open market whose question or
// event title contains the target phrase (case-insensitive).
func (c *Client) FetchTargetMarket(ctx context.Context, tagSlug, phrase string) (*Market, error) {
	events, err := c.FetchEvents(ctx, tagSlug, 200)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(phrase)
	var candidates []Market

	for _, event := range events {
		eventMatch := strings.Contains(strings.ToLower(event.Title), needle)
		for _, m := range event.Markets {
			title := m.Question
			if title == "" {
				title = m.Title
			}
			if title == "" {
				title = event.Title
			}
			if !eventMatch && !strings.Contains(strings.ToLower(title), needle) {
				continue
			}
			m.EventTitle = event.Title
			m.EventSlug = event.Slug
			candidates = append(candidates, m)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q (tag %q)", ErrNoMarket, phrase, tagSlug)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].VolumeValue() > candidates[j].VolumeValue()
	})

	return &candidates[0], nil
}

// Quote holds the market-implied up/down probabilities, each clipped to [0,1].
// They are independent outcome prices and are not required to sum to 1.
type Quote struct {
	UpProb   float64
	DownProb float64
}

// ExtractQuote reads the up/down probabilities from a market's outcome
// prices. Outcome labels are matched case-insensitively against {up, yes}
// and {down, no}; when labels are absent the first two positions are used.
func ExtractQuote(m *Market) (Quote, error) {
	prices := m.ParseOutcomePrices()
	if len(prices) < 2 {
		return Quote{}, ErrBadQuote
	}

	outcomes := m.ParseOutcomes()

	upIdx, downIdx := -1, -1
	for i, label := range outcomes {
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "up", "yes":
			if upIdx < 0 {
				upIdx = i
			}
		case "down", "no":
			if downIdx < 0 {
				downIdx = i
			}
		}
	}

	if upIdx < 0 {
		upIdx = 0
	}
	if downIdx < 0 {
		if upIdx == 0 {
			downIdx = 1
		} else {
			downIdx = 0
		}
	}

	if upIdx >= len(prices) || downIdx >= len(prices) {
		return Quote{}, ErrBadQuote
	}

	return Quote{
		UpProb:   clip01(prices[upIdx]),
		DownProb: clip01(prices[downIdx]),
	}, nil
}

func clip01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
