// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rafflekit/rafflekit/cmd/rafflekit/cmd"
)

func TestScenariosInMemory(t *testing.T) {
	for _, tc := range []struct {
		name   string
		args   []string
		env    map[string]string
		prefix string
	}{
		{
			name:   "raffle",
			args:   []string{"--scenario-tags", "raffle"},
			prefix: "raffle/",
		},
		{
			name:   "nft from environment",
			env:    map[string]string{"RAFFLEKIT_SCENARIO_TAGS": "nft"},
			prefix: "nft/",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			var outputBuf bytes.Buffer
			if err := newCommand(t,
				cmd.WithArgs(append([]string{"scenarios", "--in-memory", "--verbosity", "0"}, tc.args...)...),
				cmd.WithOutput(&outputBuf),
			).Execute(); err != nil {
				t.Fatalf("%v\n%s", err, outputBuf.String())
			}

			lines := strings.Split(strings.TrimSpace(outputBuf.String()), "\n")
			if len(lines) < 2 {
				t.Fatalf("got output %q", outputBuf.String())
			}
			for _, l := range lines[:len(lines)-1] {
				fields := strings.Fields(l)
				if fields[0] != "ok" {
					t.Fatalf("scenario failed: %q", l)
				}
				if !strings.HasPrefix(fields[1], tc.prefix) {
					t.Fatalf("got scenario %s, want only %s scenarios", fields[1], tc.prefix)
				}
			}
			if last := lines[len(lines)-1]; !strings.HasSuffix(last, "scenarios passed") {
				t.Fatalf("got summary %q", last)
			}
		})
	}
}
