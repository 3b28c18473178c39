// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"net/http"

	"github.com/rafflekit/rafflekit/pkg/jsonhttp"
)

func (s *Service) keeperHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.OK(w, s.keeper.Status())
}
