package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/yardfinder/internal/model"
)

const cacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	matched      INTEGER NOT NULL,
	latitude     REAL,
	longitude    REAL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Cache is a SQLite-backed store of upstream answers keyed by address. It
// keeps matches and definite misses; failed lookups are never stored.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(ctx context.Context, path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "geocode cache: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, cacheMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "geocode cache: migrate")
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// cacheKey returns the SHA-256 hex of the case-folded, trimmed address.
func cacheKey(address string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(address))))
	return fmt.Sprintf("%x", h)
}

// Get returns the cached answer for address. found is false on a cache miss;
// a cached miss is found with a nil coordinate.
func (c *Cache) Get(ctx context.Context, address string) (coord *model.Coordinate, found bool, err error) {
	var matched int64
	var lat, lon sql.NullFloat64
	err = c.db.QueryRowContext(ctx,
		`SELECT matched, latitude, longitude FROM geocode_cache WHERE address_hash = ?`,
		cacheKey(address),
	).Scan(&matched, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode cache: get")
	}
	if matched == 0 || !lat.Valid || !lon.Valid {
		return nil, true, nil
	}
	return &model.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}, true, nil
}

// Put stores an answer. A nil coordinate records a definite miss.
func (c *Cache) Put(ctx context.Context, address string, coord *model.Coordinate) error {
	var matched int64
	var lat, lon sql.NullFloat64
	if coord != nil {
		matched = 1
		lat = sql.NullFloat64{Float64: coord.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: coord.Longitude, Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, address, matched, latitude, longitude, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			address = excluded.address,
			matched = excluded.matched,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			cached_at = excluded.cached_at`,
		cacheKey(address), address, matched, lat, lon, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "geocode cache: put")
	}
	return nil
}

// CachedGeocoder consults a Cache before delegating to the wrapped Geocoder.
type CachedGeocoder struct {
	next  Geocoder
	cache *Cache
}

// Cached wraps next with cache lookups.
func Cached(next Geocoder, cache *Cache) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache}
}

// Geocode implements Geocoder.
func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (model.Coordinate, error) {
	coord, found, err := g.cache.Get(ctx, address)
	if err != nil {
		zap.L().Warn("geocode cache: lookup failed, querying upstream", zap.Error(err))
	}
	if found {
		zap.L().Debug("geocode cache hit", zap.String("address", address), zap.Bool("matched", coord != nil))
		if coord == nil {
			return model.Coordinate{}, &NotFoundError{Query: address}
		}
		return *coord, nil
	}

	result, err := g.next.Geocode(ctx, address)
	switch {
	case err == nil:
		g.store(ctx, address, &result)
	case IsNotFound(err):
		g.store(ctx, address, nil)
	}
	return result, err
}

func (g *CachedGeocoder) store(ctx context.Context, address string, coord *model.Coordinate) {
	if err := g.cache.Put(ctx, address, coord); err != nil {
		zap.L().Warn("geocode cache: store failed", zap.String("address", address), zap.Error(err))
	}
}
