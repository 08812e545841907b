package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Entry is one cached lookup result. Non-matches are cached too so repeated
// runs never re-query text that resolves to nothing.
type Entry struct {
	Lat     float64
	Lon     float64
	Matched bool
}

// Cache stores geocode results in a local sqlite database.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (and migrates) the cache database at the given path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geocode: exec %s", pragma)
		}
	}
	migration := `
CREATE TABLE IF NOT EXISTS geocode_cache (
	text_hash  TEXT PRIMARY KEY,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	matched    INTEGER NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "geocode: migrate cache")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// cacheKey returns SHA-256 hex of the normalized lookup text.
func cacheKey(text string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return fmt.Sprintf("%x", h)
}

// Get looks up a cached result.
func (c *Cache) Get(ctx context.Context, text string) (Entry, bool, error) {
	var e Entry
	var matched int
	row := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, matched FROM geocode_cache WHERE text_hash = ?`,
		cacheKey(text),
	)
	if err := row.Scan(&e.Lat, &e.Lon, &matched); err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, eris.Wrap(err, "geocode: cache read")
	}
	e.Matched = matched != 0
	return e, true, nil
}

// Put stores a result, replacing any previous entry for the same text.
func (c *Cache) Put(ctx context.Context, text string, e Entry) error {
	matched := 0
	if e.Matched {
		matched = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (text_hash, latitude, longitude, matched, cached_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT (text_hash) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			matched = excluded.matched,
			cached_at = datetime('now')`,
		cacheKey(text), e.Lat, e.Lon, matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: cache write")
	}
	return nil
}
