// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock_test

import (
	"testing"

	"github.com/rafflekit/rafflekit/pkg/statestore/mock"
	"github.com/rafflekit/rafflekit/pkg/statestore/test"
	"github.com/rafflekit/rafflekit/pkg/storage"
)

func TestMockStateStore(t *testing.T) {
	test.Run(t, func(t *testing.T) storage.StateStorer {
		return mock.NewStateStore()
	})
}
