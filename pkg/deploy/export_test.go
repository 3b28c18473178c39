// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import "time"

func (v *Verifier) SetPollInterval(d time.Duration) {
	v.pollInterval = d
}
