// Package marketdata pulls quotes from the external provider, caches them
// with a TTL, and maintains the rolling top-stocks reference window.
package marketdata

import "time"

// Quote is one cached market quote. Cached payloads are msgpack-encoded.
type Quote struct {
	Symbol        string    `json:"symbol" msgpack:"symbol"`
	Price         float64   `json:"price" msgpack:"price"`
	ChangePercent float64   `json:"change_percent" msgpack:"change_percent"`
	Currency      string    `json:"currency,omitempty" msgpack:"currency"`
	FetchedAt     time.Time `json:"fetched_at" msgpack:"fetched_at"`
}

// TopStock is one row of the rolling reference window shown on the dashboard
type TopStock struct {
	Rank          int       `json:"rank"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}
