// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd_test

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/rafflekit/rafflekit/cmd/rafflekit/cmd"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var homeDir string

func TestMain(m *testing.M) {
	dir, err := ioutil.TempDir("", "rafflekit-cmd-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	homeDir = dir

	code := m.Run()
	if err := os.RemoveAll(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(code)
}

func newCommand(t *testing.T, opts ...cmd.Option) (c *cmd.Command) {
	t.Helper()

	c, err := cmd.NewCommand(append([]cmd.Option{cmd.WithHomeDir(homeDir), cmd.WithEnvFile("")}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewLogger(t *testing.T) {
	for _, verbosity := range []string{"0", "silent", "1", "error", "2", "warn", "3", "info", "4", "debug", "5", "trace"} {
		t.Run(verbosity, func(t *testing.T) {
			if _, err := cmd.NewLogger(&cobra.Command{}, verbosity); err != nil {
				t.Fatal(err)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := cmd.NewLogger(&cobra.Command{}, "loud"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestUnknownVerbosity(t *testing.T) {
	err := newCommand(t,
		cmd.WithArgs("scenarios", "--in-memory", "--verbosity", "loud"),
		cmd.WithOutput(ioutil.Discard),
	).Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown verbosity level") {
		t.Fatalf("got error %v, want unknown verbosity level", err)
	}
}

func TestNetworksCmd(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "networks.yaml", []byte(`networks:
  - chainId: 5
    subscriptionId: 4242
`), 0644); err != nil {
		t.Fatal(err)
	}

	var outputBuf bytes.Buffer
	if err := newCommand(t,
		cmd.WithArgs("networks", "--networks-file", "networks.yaml"),
		cmd.WithFS(fs),
		cmd.WithOutput(&outputBuf),
	).Execute(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(outputBuf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and two chains:\n%s", len(lines), outputBuf.String())
	}
	if fields := strings.Fields(lines[1]); fields[0] != "5" || fields[1] != "goerli" || fields[6] != "4242" {
		t.Fatalf("got goerli row %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); fields[0] != "31337" || fields[2] != "true" || fields[3] != "0.5" {
		t.Fatalf("got hardhat row %q", lines[2])
	}
}

func TestNetworksCmdInvalidFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "networks.yaml", []byte(`networks:
  - chainId: 5
    subscription: 4242
`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := newCommand(t,
		cmd.WithArgs("networks", "--networks-file", "networks.yaml"),
		cmd.WithFS(fs),
		cmd.WithOutput(ioutil.Discard),
	).Execute(); err == nil {
		t.Fatal("expected error for an unknown field")
	}
}
