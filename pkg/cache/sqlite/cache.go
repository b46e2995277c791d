// Package sqlite implements the backend response cache on a local SQLite
// database. Entries are keyed strings with a per-entry TTL; expiry is checked
// lazily at read time, so correctness never depends on a background sweep.
package sqlite

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite"

	"github.com/autocode-ai/autocode/pkg/models"
)

// Cache is a TTL-keyed store of backend read results. It is owned by a
// single process; mutations are persisted immediately.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

const createCacheTables = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	hit_count  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS cache_stats (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	hits          INTEGER NOT NULL DEFAULT 0,
	misses        INTEGER NOT NULL DEFAULT 0,
	sets          INTEGER NOT NULL DEFAULT 0,
	invalidations INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO cache_stats (id) VALUES (1);
`

// New opens the cache database at dbPath and creates the schema. Expired
// entries left over from a previous run are dropped on open.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	c := &Cache{db: db, now: time.Now}
	if _, err := c.Cleanup(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Get returns the cached value for key. found is false if the key is absent
// or the entry has expired; an expired entry is removed on the way out.
func (c *Cache) Get(key string) ([]byte, bool) {
	var value []byte
	var createdAt, ttlSeconds int64

	err := c.db.QueryRow(
		`SELECT value, created_at, ttl_seconds FROM cache_entries WHERE key = ?`,
		key,
	).Scan(&value, &createdAt, &ttlSeconds)

	if err != nil {
		c.bump("misses")
		return nil, false
	}

	if c.now().Unix() >= createdAt+ttlSeconds {
		_, _ = c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
		c.bump("misses")
		return nil, false
	}

	_, _ = c.db.Exec(`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE key = ?`, key)
	c.bump("hits")
	return value, true
}

// Set inserts or overwrites an entry, resetting its hit count. A TTL of zero
// or less means "do not cache": any existing entry under the key is removed
// and nothing is stored.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("cache set: %w", err)
		}
		return nil
	}

	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (key, value, created_at, ttl_seconds, hit_count)
		 VALUES (?, ?, ?, ?, 0)`,
		key, value, c.now().Unix(), int64(ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	c.bump("sets")
	return nil
}

// Invalidate removes a single entry. Removing an absent key is a no-op.
func (c *Cache) Invalidate(key string) error {
	res, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.bump("invalidations")
	}
	return nil
}

// InvalidatePattern removes all entries whose key matches the regular
// expression pattern, anchored at the start of the key, and returns the
// number removed.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return 0, fmt.Errorf("cache invalidate pattern: %w", err)
	}

	rows, err := c.db.Query(`SELECT key FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate pattern: %w", err)
	}
	defer rows.Close()

	var matched []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return 0, fmt.Errorf("scan cache key: %w", err)
		}
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, key := range matched {
		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return 0, fmt.Errorf("cache invalidate pattern: %w", err)
		}
		c.bump("invalidations")
	}
	return len(matched), nil
}

// Cleanup purges all expired entries. It bounds on-disk size and is not
// required for correctness.
func (c *Cache) Cleanup() (int64, error) {
	res, err := c.db.Exec(
		`DELETE FROM cache_entries WHERE created_at + ttl_seconds <= ?`,
		c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes cache entries. If expiredOnly is true, only expired entries
// are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	if expiredOnly {
		_, err := c.Cleanup()
		return err
	}
	if _, err := c.db.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.bump("invalidations")
	return nil
}

// Stats returns cumulative cache performance metrics. Counters are persisted
// alongside the entries, so they survive restarts.
func (c *Cache) Stats() (models.CacheStats, error) {
	var s models.CacheStats
	err := c.db.QueryRow(
		`SELECT hits, misses, sets, invalidations FROM cache_stats WHERE id = 1`,
	).Scan(&s.Hits, &s.Misses, &s.Sets, &s.Invalidations)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}

	if err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&s.Entries); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}

// EntryInfo describes a single entry for diagnostics. Returns found=false
// for an absent key.
func (c *Cache) EntryInfo(key string) (models.CacheEntryInfo, bool) {
	var value []byte
	var createdAt, ttlSeconds, hitCount int64

	err := c.db.QueryRow(
		`SELECT value, created_at, ttl_seconds, hit_count FROM cache_entries WHERE key = ?`,
		key,
	).Scan(&value, &createdAt, &ttlSeconds, &hitCount)
	if err != nil {
		return models.CacheEntryInfo{}, false
	}

	age := c.now().Sub(time.Unix(createdAt, 0))
	remaining := time.Duration(ttlSeconds)*time.Second - age
	if remaining < 0 {
		remaining = 0
	}
	return models.CacheEntryInfo{
		Key:          key,
		HitCount:     hitCount,
		Age:          age,
		RemainingTTL: remaining,
		Expired:      remaining == 0,
		Size:         len(value),
	}, true
}

// List returns diagnostics for all entries, expired ones included.
func (c *Cache) List() ([]models.CacheEntryInfo, error) {
	rows, err := c.db.Query(`SELECT key FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	infos := make([]models.CacheEntryInfo, 0, len(keys))
	for _, key := range keys {
		if info, ok := c.EntryInfo(key); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) bump(counter string) {
	_, _ = c.db.Exec(`UPDATE cache_stats SET ` + counter + ` = ` + counter + ` + 1 WHERE id = 1`)
}
