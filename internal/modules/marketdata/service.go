package marketdata

import (
	"context"

	"github.com/rs/zerolog"
)

// QuoteProvider is the external quote source. Satisfied by *Client.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetTopStocks(ctx context.Context, limit int) ([]TopStock, error)
}

var _ QuoteProvider = (*Client)(nil)

// SymbolSource lists the symbols currently held across all portfolios
type SymbolSource interface {
	DistinctSymbols() ([]string, error)
}

// PriceUpdater applies a fetched price to every holding of a symbol
type PriceUpdater interface {
	UpdatePriceForSymbol(symbol string, price float64) (int64, error)
}

// Service coordinates quote fetching, caching, and price propagation
type Service struct {
	provider  QuoteProvider
	cache     *Cache
	topStocks *TopStocksRepository
	symbols   SymbolSource
	updater   PriceUpdater
	log       zerolog.Logger
}

// NewService creates a new market data service
func NewService(
	provider QuoteProvider,
	cache *Cache,
	topStocks *TopStocksRepository,
	symbols SymbolSource,
	updater PriceUpdater,
	log zerolog.Logger,
) *Service {
	return &Service{
		provider:  provider,
		cache:     cache,
		topStocks: topStocks,
		symbols:   symbols,
		updater:   updater,
		log:       log.With().Str("service", "marketdata").Logger(),
	}
}

// GetQuote returns the quote for a symbol, cache-first
func (s *Service) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if quote, ok := s.cache.Get(symbol); ok {
		return &quote, nil
	}

	quote, err := s.provider.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cache.Put(*quote)
	return quote, nil
}

// SyncPrices refreshes the current price of every held symbol. One failing
// symbol does not stop the sweep; the count of updated symbols is returned.
func (s *Service) SyncPrices(ctx context.Context) (int, error) {
	symbols, err := s.symbols.DistinctSymbols()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		quote, err := s.GetQuote(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed")
			continue
		}

		if _, err := s.updater.UpdatePriceForSymbol(symbol, quote.Price); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("Price update failed")
			continue
		}
		updated++
	}

	s.log.Info().Int("updated", updated).Int("held", len(symbols)).Msg("Price sync complete")
	return updated, nil
}

// RefreshTopStocks replaces the rolling reference window with a fresh fetch
func (s *Service) RefreshTopStocks(ctx context.Context, limit int) ([]TopStock, error) {
	stocks, err := s.provider.GetTopStocks(ctx, limit)
	if err != nil {
		return nil, err
	}

	if err := s.topStocks.ReplaceAll(stocks); err != nil {
		return nil, err
	}

	s.log.Info().Int("count", len(stocks)).Msg("Top stocks refreshed")
	return stocks, nil
}

// GetTopStocks returns the stored reference window
func (s *Service) GetTopStocks() ([]TopStock, error) {
	return s.topStocks.GetAll()
}
