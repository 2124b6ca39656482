// Package gamma provides a client for the Polymarket Gamma API.
package gamma

import (
	"encoding/json"
	"strconv"
)

// Event represents a prediction market event.
type Event struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Closed  bool     `json:"closed"`
	Markets []Market `json:"markets,omitempty"`
}

// Market represents a single prediction market inside an event.
type Market struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Title       string `json:"title"`
	ConditionID string `json:"conditionId"`
	Slug        string `json:"slug"`
	Active      bool   `json:"active"`
	Closed      bool   `json:"closed"`

	// Volume fields vary by endpoint and sometimes arrive as strings.
	Volume24hr json.Number `json:"volume24hr,omitempty"`
	Volume     json.Number `json:"volume,omitempty"`
	VolumeNum  json.Number `json:"volumeNum,omitempty"`

	// These fields are JSON arrays encoded as strings and need secondary
	// parsing.
	ClobTokenIds  string `json:"clobTokenIds"`
	Outcomes      string `json:"outcomes"`
	OutcomePrices string `json:"outcomePrices"`

	// Filled in from the enclosing event.
	EventTitle string `json:"-"`
	EventSlug  string `json:"-"`
}

// ParseOutcomes parses the Outcomes JSON string into a slice of outcome names.
func (m *Market) ParseOutcomes() []string {
	return decodeStringList(m.Outcomes)
}

// ParseOutcomePrices parses the OutcomePrices JSON string into floats.
// Unparseable entries become 0 rather than dropping positions, so price
// indexes stay aligned with outcome labels.
func (m *Market) ParseOutcomePrices() []float64 {
	raw := decodeStringList(m.OutcomePrices)
	prices := make([]float64, len(raw))
	for i, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			f = 0
		}
		prices[i] = f
	}
	return prices
}

// ParseTokenIDs parses the ClobTokenIds JSON string into token IDs.
func (m *Market) ParseTokenIDs() []string {
	return decodeStringList(m.ClobTokenIds)
}

// VolumeValue returns the first parseable volume figure, preferring the
// 24-hour number.
func (m *Market) VolumeValue() float64 {
	for _, n := range []json.Number{m.Volume24hr, m.Volume, m.VolumeNum} {
		if n == "" {
			continue
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return 0
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
