// Package badgerstore persists quakes and local user accounts in an embedded
// Badger key-value store.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

const (
	quakePrefix = "terremoti/"
	userPrefix  = "users/"
)

// Store implements reconcile.Collection and auth.UserStore. Quake records
// are keyed by their USGS id, which also serves as the record id.
type Store struct {
	db *badger.DB
}

// Open opens the store at path. An empty path opens an in-memory store.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func quakeKey(id string) []byte { return []byte(quakePrefix + id) }
func userKey(email string) []byte { return []byte(userPrefix + email) }

func (s *Store) FindByExternalID(_ context.Context, externalID string) (string, bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(quakeKey(externalID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find %s: %w", externalID, err)
	}
	return externalID, true, nil
}

func (s *Store) Create(_ context.Context, doc domain.QuakeDocument) error {
	val, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.USGSID, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(quakeKey(doc.USGSID), val)
	}); err != nil {
		return fmt.Errorf("create %s: %w", doc.USGSID, err)
	}
	return nil
}

func (s *Store) Update(_ context.Context, recordID string, doc domain.QuakeDocument) error {
	val, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.USGSID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(quakeKey(recordID)); err != nil {
			return err
		}
		return txn.Set(quakeKey(recordID), val)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("update %s: %w", doc.USGSID, reconcile.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", doc.USGSID, err)
	}
	return nil
}

// Documents returns every stored quake ordered by USGS id.
func (s *Store) Documents(_ context.Context) ([]domain.QuakeDocument, error) {
	var docs []domain.QuakeDocument
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(quakePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var doc domain.QuakeDocument
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].USGSID < docs[j].USGSID })
	return docs, nil
}

func (s *Store) CreateUser(_ context.Context, u auth.User) error {
	val, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(u.Email))
		switch {
		case err == nil:
			return auth.ErrUserExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(userKey(u.Email), val)
	})
	if errors.Is(err, auth.ErrUserExists) {
		return auth.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (auth.User, bool, error) {
	var u auth.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, fmt.Errorf("find user: %w", err)
	}
	return u, true, nil
}
