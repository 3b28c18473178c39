// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the key/value state store used to persist
// transaction nonces, pending transactions and deployment records.
package storage

import (
	"encoding"
	"encoding/json"
	"errors"
	"io"
)

// ErrNotFound is returned when a key is not present in the store.
var ErrNotFound = errors.New("storage: not found")

// StateStorer is a key/value store of encoded values. Keys sharing a prefix
// can be iterated in lexical order.
type StateStorer interface {
	Get(key string, i interface{}) (err error)
	Put(key string, i interface{}) (err error)
	Delete(key string) (err error)
	Iterate(prefix string, iterFunc StateIterFunc) (err error)
	io.Closer
}

// StateIterFunc is called for every visited key and value. Returning true
// stops the iteration.
type StateIterFunc func(key, value []byte) (stop bool, err error)

// Encode returns the stored form of a value: its binary form if it has
// one, JSON otherwise.
func Encode(i interface{}) ([]byte, error) {
	if m, ok := i.(encoding.BinaryMarshaler); ok {
		return m.MarshalBinary()
	}
	return json.Marshal(i)
}

// Decode is the inverse of Encode.
func Decode(data []byte, i interface{}) error {
	if u, ok := i.(encoding.BinaryUnmarshaler); ok {
		return u.UnmarshalBinary(data)
	}
	return json.Unmarshal(data, i)
}
