package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the TTL quote cache. Lookups hit an in-memory map first and fall
// back to the quote_cache table in cache.db, so warm state survives process
// restarts. Expired entries are evicted lazily on read.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	mu  sync.RWMutex
	mem map[string]cacheEntry
	log zerolog.Logger
}

type cacheEntry struct {
	quote     Quote
	expiresAt time.Time
}

// NewCache creates a quote cache over the cache database
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		ttl: ttl,
		mem: make(map[string]cacheEntry),
		log: log.With().Str("component", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for a symbol, or false when absent/expired
func (c *Cache) Get(symbol string) (Quote, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.mem[symbol]
	c.mu.RUnlock()

	if ok {
		if now.Before(entry.expiresAt) {
			return entry.quote, true
		}
		c.mu.Lock()
		delete(c.mem, symbol)
		c.mu.Unlock()
	}

	// Fall through to the persistent layer
	quote, expiresAt, err := c.load(symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		return Quote{}, false
	}
	if quote == nil || !now.Before(expiresAt) {
		if quote != nil {
			c.evict(symbol)
		}
		return Quote{}, false
	}

	c.mu.Lock()
	c.mem[symbol] = cacheEntry{quote: *quote, expiresAt: expiresAt}
	c.mu.Unlock()
	return *quote, true
}

// Put stores a quote under the cache's TTL
func (c *Cache) Put(quote Quote) {
	quote.Symbol = strings.ToUpper(strings.TrimSpace(quote.Symbol))
	expiresAt := time.Now().Add(c.ttl)

	c.mu.Lock()
	c.mem[quote.Symbol] = cacheEntry{quote: quote, expiresAt: expiresAt}
	c.mu.Unlock()

	payload, err := msgpack.Marshal(quote)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", quote.Symbol).Msg("Quote encode failed")
		return
	}

	_, err = c.db.Exec(`
		INSERT INTO quote_cache (symbol, payload, fetched_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, quote.Symbol, payload, quote.FetchedAt.Unix(), expiresAt.Unix())
	if err != nil {
		// The memory layer still serves the entry; persistence is best-effort
		c.log.Warn().Err(err).Str("symbol", quote.Symbol).Msg("Quote persist failed")
	}
}

// load reads a quote from the persistent layer
func (c *Cache) load(symbol string) (*Quote, time.Time, error) {
	var payload []byte
	var expiresAt int64

	err := c.db.QueryRow(
		`SELECT payload, expires_at FROM quote_cache WHERE symbol = ?`, symbol,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read cached quote for %s: %w", symbol, err)
	}

	var quote Quote
	if err := msgpack.Unmarshal(payload, &quote); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode cached quote for %s: %w", symbol, err)
	}
	return &quote, time.Unix(expiresAt, 0), nil
}

// evict removes an expired row from the persistent layer
func (c *Cache) evict(symbol string) {
	if _, err := c.db.Exec(`DELETE FROM quote_cache WHERE symbol = ?`, symbol); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote evict failed")
	}
}
