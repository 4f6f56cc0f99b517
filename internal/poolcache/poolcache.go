// Package poolcache remembers which venues already have a liquidity pool
// for a token, so the monitor can skip polling venues it has seen before.
package poolcache

import (
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache is a small Badger-backed KV of discovered pools.
//
// Key schema:
//   pool:<token>:<venue> → pool id
type Cache struct {
	db *badger.DB
}

type OpenOptions struct {
	Path     string
	InMemory bool // tests
}

func Open(opts OpenOptions) (*Cache, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("poolcache: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithInMemory(opts.InMemory)
	if opts.InMemory {
		bopts.Dir = ""
		bopts.ValueDir = ""
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("poolcache: open: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func poolKey(token, venue string) []byte {
	return []byte(fmt.Sprintf("pool:%s:%s", strings.ToLower(token), venue))
}

func tokenPrefix(token string) []byte {
	return []byte(fmt.Sprintf("pool:%s:", strings.ToLower(token)))
}

// Record stores one discovered pool. Overwriting with the same value is
// harmless; pipeline retries replay discoveries.
func (c *Cache) Record(token, venue, poolID string) error {
	if c == nil || c.db == nil {
		return errors.New("poolcache: not opened")
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(poolKey(token, venue), []byte(poolID))
	})
}

// Lookup returns every known venue→pool entry for a token. An empty map
// means nothing has been discovered yet.
func (c *Cache) Lookup(token string) (map[string]string, error) {
	if c == nil || c.db == nil {
		return nil, errors.New("poolcache: not opened")
	}
	out := make(map[string]string)
	prefix := tokenPrefix(token)
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			venue := strings.TrimPrefix(string(item.Key()), string(prefix))
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[venue] = string(val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("poolcache: lookup: %w", err)
	}
	return out, nil
}

// Ping verifies the database is usable (health probe).
func (c *Cache) Ping() error {
	if c == nil || c.db == nil {
		return errors.New("poolcache: not opened")
	}
	return c.db.View(func(txn *badger.Txn) error { return nil })
}
