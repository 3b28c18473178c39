// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds the behaviour every storage.StateStorer
// implementation is expected to satisfy.
package test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rafflekit/rafflekit/pkg/storage"
)

const (
	keySerialized = "deployment_31337_Raffle" // stores the serialized type
	keyJSON       = "nonce_31337"             // stores a json value
)

type Serializing struct {
	value           string
	marshalCalled   bool
	unmarshalCalled bool
}

func (st *Serializing) MarshalBinary() (data []byte, err error) {
	st.marshalCalled = true
	return []byte(st.value), nil
}

func (st *Serializing) UnmarshalBinary(data []byte) (err error) {
	st.value = string(data)
	st.unmarshalCalled = true
	return nil
}

type record struct {
	Address string `json:"address"`
	Block   uint64 `json:"block"`
}

// Run executes the shared state store checks against stores built by f.
func Run(t *testing.T, f func(t *testing.T) storage.StateStorer) {
	t.Helper()

	t.Run("put get", func(t *testing.T) {
		store := f(t)
		insertValues(t, store)
		checkPersistedValues(t, store)
	})

	t.Run("not found", func(t *testing.T) {
		store := f(t)
		var r record
		if err := store.Get("missing", &r); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := f(t)
		insertValues(t, store)
		if err := store.Delete(keyJSON); err != nil {
			t.Fatal(err)
		}
		var r record
		if err := store.Get(keyJSON, &r); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("iterate", func(t *testing.T) {
		store := f(t)
		testStoreIterator(t, store)
	})
}

// RunPersist checks that values survive reopening a store on the same path.
func RunPersist(t *testing.T, f func(t *testing.T, dir string) storage.StateStorer) {
	t.Helper()

	dir := t.TempDir()

	store := f(t, dir)
	insertValues(t, store)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store = f(t, dir)
	defer store.Close()
	checkPersistedValues(t, store)
}

func insertValues(t *testing.T, store storage.StateStorer) {
	t.Helper()

	v := &Serializing{value: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}
	if err := store.Put(keySerialized, v); err != nil {
		t.Fatal(err)
	}
	if !v.marshalCalled {
		t.Fatal("binaryMarshaller not called on serialized type")
	}

	if err := store.Put(keyJSON, record{Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", Block: 7}); err != nil {
		t.Fatal(err)
	}
}

func checkPersistedValues(t *testing.T, store storage.StateStorer) {
	t.Helper()

	v := &Serializing{}
	if err := store.Get(keySerialized, v); err != nil {
		t.Fatal(err)
	}
	if !v.unmarshalCalled {
		t.Fatal("unmarshaler not called")
	}
	if v.value != "0x5FbDB2315678afecb367f032d93F642f64180aa3" {
		t.Fatalf("got persisted value %s", v.value)
	}

	var r record
	if err := store.Get(keyJSON, &r); err != nil {
		t.Fatal(err)
	}
	want := record{Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", Block: 7}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func testStoreIterator(t *testing.T, store storage.StateStorer) {
	t.Helper()

	prefix := "deployment_5_"
	for k, v := range map[string]string{
		prefix + "Raffle":           "value1",
		"deployment_31337_Raffle":   "value2",
		prefix + "RefundableERC721": "value3",
	} {
		if err := store.Put(k, v); err != nil {
			t.Fatal(err)
		}
	}

	entries := make(map[string]string)
	err := store.Iterate(prefix, func(key, value []byte) (stop bool, err error) {
		var entry string
		if err := json.Unmarshal(value, &entry); err != nil {
			return true, err
		}
		entries[string(key)] = entry
		return false, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{prefix + "Raffle": "value1", prefix + "RefundableERC721": "value3"}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}

	var visited int
	err = store.Iterate(prefix, func(_, _ []byte) (bool, error) {
		visited++
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if visited != 1 {
		t.Fatalf("iteration did not stop, visited %d", visited)
	}
}
