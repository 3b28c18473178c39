// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leveldb implements storage.StateStorer on goleveldb, either in a
// data directory or in memory.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb"
	ldberr "github.com/syndtr/goleveldb/leveldb/errors"
	ldbs "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ storage.StateStorer = (*Store)(nil)

// Store is a state store backed by a leveldb database.
type Store struct {
	db *leveldb.DB
}

// NewInMemoryStateStore creates a state store that is not persisted on disk.
func NewInMemoryStateStore() (*Store, error) {
	db, err := leveldb.Open(ldbs.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStateStore opens the state store at path, creating it if needed. A
// corrupted database is recovered.
func NewStateStore(path string, logger logging.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if ldberr.IsCorrupted(err) {
		logger.Warningf("statestore %s corrupted, recovering: %v", path, err)
		if db, err = leveldb.RecoverFile(path, nil); err != nil {
			return nil, fmt.Errorf("statestore recovery: %w", err)
		}
		logger.Infof("statestore %s recovered", path)
	}
	if err != nil {
		return nil, fmt.Errorf("statestore %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Get decodes the value of key into i. A missing key is
// storage.ErrNotFound.
func (s *Store) Get(key string, i interface{}) error {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return storage.Decode(data, i)
}

// Put encodes i and stores it under key.
func (s *Store) Put(key string, i interface{}) error {
	data, err := storage.Encode(i)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Put([]byte(key), data, nil)
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

// Iterate visits the keys with the prefix in lexical order. The key and
// value slices are copies.
func (s *Store) Iterate(prefix string, iterFunc storage.StateIterFunc) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		stop, err := iterFunc(key, value)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return iter.Error()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
