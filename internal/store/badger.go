package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/session"
)

// BadgerStore is a Store backed by an embedded Badger key-value database.
// Keys are partition-hex + "/" + sort key, so one session's history is a
// contiguous key range walkable with a prefix iterator.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenBadger opens (or creates) a Badger database under dataDir.
func OpenBadger(dataDir string, log *logrus.Logger) (*BadgerStore, error) {
	if log == nil {
		log = logrus.New()
	}

	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerStore{db: db, log: log}, nil
}

// Get implements Store.
func (b *BadgerStore) Get(ctx context.Context, hash session.HashedSessionID, date guess.Date) (*guess.DailyGuesses, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}

	var names []guess.PersonaName
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(hash, date))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &names)
		})
	})
	if err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}
	if !found {
		return nil, nil
	}

	return &guess.DailyGuesses{
		SessionHash: hash,
		Date:        date,
		Guesses:     names,
	}, nil
}

// QueryAll implements Store.
func (b *BadgerStore) QueryAll(ctx context.Context, hash session.HashedSessionID) ([]guess.DailyGuesses, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}

	prefix := partitionPrefix(hash)
	var out []guess.DailyGuesses

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			date, err := ParseSortKey(string(item.Key()[len(prefix):]))
			if err != nil {
				b.log.WithField("key", string(item.Key())).Warn("skipping record with malformed key")
				continue
			}

			var names []guess.PersonaName
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &names)
			}); err != nil {
				return err
			}

			out = append(out, guess.DailyGuesses{
				SessionHash: hash,
				Date:        date,
				Guesses:     names,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewStoreUnavailable(err)
	}
	return out, nil
}

// Put implements Store.
func (b *BadgerStore) Put(ctx context.Context, d guess.DailyGuesses) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStoreUnavailable(err)
	}

	data, err := json.Marshal(d.Names())
	if err != nil {
		return errors.NewInternal(err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(d.SessionHash, d.Date), data)
	})
	if err != nil {
		return errors.NewStoreUnavailable(err)
	}
	return nil
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	if err := b.db.Sync(); err != nil {
		b.log.WithError(err).Warn("badger sync on close failed")
	}
	return b.db.Close()
}

// recordKey builds the full composite key for one session and day.
func recordKey(hash session.HashedSessionID, date guess.Date) []byte {
	return []byte(hash.Hex() + "/" + SortKey(date))
}

// partitionPrefix covers every day-scoped record of one session.
func partitionPrefix(hash session.HashedSessionID) []byte {
	return []byte(hash.Hex() + "/" + SortKeyPrefix)
}
