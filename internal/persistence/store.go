// Package persistence is the on-disk settings store for DVR state. Entries
// are stored as JSON values in badger under dvr/log/<uuid>, mirroring the
// settings tree layout users of the original format expect.
package persistence

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dvrd/internal/log"
)

const entryPrefix = "dvr/log/"

// Store wraps the badger database holding persisted DVR settings.
type Store struct {
	db   *badger.DB
	logc zerolog.Logger
}

// Open opens (or creates) the settings database under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompression(0)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	return &Store{
		db:   db,
		logc: log.WithComponent("persistence"),
	}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one entry's settings map under its uuid.
func (s *Store) Save(uuid string, conf map[string]any) error {
	raw, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", uuid, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(entryPrefix+uuid), raw)
	})
	if err != nil {
		return fmt.Errorf("save entry %s: %w", uuid, err)
	}
	return nil
}

// Remove deletes one entry's persisted settings. Removing an absent key is
// not an error.
func (s *Store) Remove(uuid string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(entryPrefix + uuid))
	})
	if err != nil {
		return fmt.Errorf("remove entry %s: %w", uuid, err)
	}
	return nil
}

// Load reads one entry's settings map. Returns badger.ErrKeyNotFound when
// absent.
func (s *Store) Load(uuid string) (map[string]any, error) {
	var conf map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + uuid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &conf)
		})
	})
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// Each iterates every persisted entry, invoking fn with the uuid and the
// decoded settings map. Undecodable values are logged and skipped so one
// corrupt record does not block startup.
func (s *Store) Each(fn func(uuid string, conf map[string]any)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			uuid := string(item.Key()[len(entryPrefix):])
			var conf map[string]any
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &conf)
			})
			if err != nil {
				s.logc.Warn().Err(err).Str("uuid", uuid).Msg("skipping unreadable entry")
				continue
			}
			fn(uuid, conf)
		}
		return nil
	})
}
