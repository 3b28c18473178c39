// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"path/filepath"

	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/statestore/leveldb"
)

// InitStateStore will initialize the stateStore with the given path to the
// data directory. When given an empty directory path, the function will instead
// initialize an in-memory state store that will not be persisted.
func InitStateStore(logger logging.Logger, dataDir string) (*leveldb.Store, error) {
	if dataDir == "" {
		logger.Warning("using in-mem state store, no nonces or deployments will be persisted")
		return leveldb.NewInMemoryStateStore()
	}
	return leveldb.NewStateStore(filepath.Join(dataDir, "statestore"), logger)
}
