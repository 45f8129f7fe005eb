package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches quotes and the top-stocks reference list from the external
// provider over plain HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a provider client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("component", "quote_client").Logger(),
	}
}

// quoteResponse mirrors the provider's quote endpoint payload
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			ShortName                  string  `json:"shortName"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			MarketCap                  float64 `json:"marketCap"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// GetQuote fetches the current quote for one symbol
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(symbol))

	var payload quoteResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("quote request for %s failed: %w", symbol, err)
	}

	results := payload.QuoteResponse.Result
	if len(results) == 0 {
		return nil, fmt.Errorf("provider returned no quote for %s", symbol)
	}

	r := results[0]
	return &Quote{
		Symbol:        r.Symbol,
		Price:         r.RegularMarketPrice,
		ChangePercent: r.RegularMarketChangePercent,
		Currency:      r.Currency,
		FetchedAt:     time.Now(),
	}, nil
}

// GetTopStocks fetches the most-active list used as the dashboard's rolling
// reference window
func (c *Client) GetTopStocks(ctx context.Context, limit int) ([]TopStock, error) {
	if limit < 1 {
		limit = 20
	}
	endpoint := fmt.Sprintf(
		"%s/v1/finance/screener/predefined/saved?scrIds=most_actives&count=%d",
		c.baseURL, limit,
	)

	var payload struct {
		Finance struct {
			Result []struct {
				Quotes []struct {
					Symbol                     string  `json:"symbol"`
					ShortName                  string  `json:"shortName"`
					RegularMarketPrice         float64 `json:"regularMarketPrice"`
					RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
					MarketCap                  float64 `json:"marketCap"`
				} `json:"quotes"`
			} `json:"result"`
		} `json:"finance"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("top stocks request failed: %w", err)
	}

	if len(payload.Finance.Result) == 0 {
		return nil, fmt.Errorf("provider returned no screener results")
	}

	now := time.Now()
	quotes := payload.Finance.Result[0].Quotes
	stocks := make([]TopStock, 0, len(quotes))
	for i, q := range quotes {
		if i >= limit {
			break
		}
		stock := TopStock{
			Rank:          i + 1,
			Symbol:        q.Symbol,
			Name:          q.ShortName,
			Price:         q.RegularMarketPrice,
			ChangePercent: q.RegularMarketChangePercent,
			FetchedAt:     now,
		}
		if q.MarketCap > 0 {
			v := q.MarketCap
			stock.MarketCap = &v
		}
		stocks = append(stocks, stock)
	}
	return stocks, nil
}

// getJSON performs a GET and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "folio/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
