// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/afero"
)

// ErrArtifactNotFound is returned when no compiled artifact exists for a
// contract.
var ErrArtifactNotFound = errors.New("deploy: artifact not found")

var errFound = errors.New("found")

// Artifact is a compiled contract as written by hardhat.
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABIJSON      json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`

	ABI  abi.ABI `json:"-"`
	path string
}

// BuildInfo is the compiler input and version an artifact was built with.
type BuildInfo struct {
	SolcVersion     string          `json:"solcVersion"`
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           json.RawMessage `json:"input"`
}

// FullyQualifiedName is the source:contract name used for verification.
func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// DeployData returns the creation bytecode followed by the abi encoded
// constructor arguments.
func (a *Artifact) DeployData(args ...interface{}) ([]byte, error) {
	code, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s bytecode: %w", a.ContractName, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: empty bytecode, the contract is abstract", a.ContractName)
	}
	packed, err := a.ConstructorArgs(args...)
	if err != nil {
		return nil, err
	}
	return append(code, packed...), nil
}

// ConstructorArgs abi encodes the constructor arguments.
func (a *Artifact) ConstructorArgs(args ...interface{}) ([]byte, error) {
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("%s constructor arguments: %w", a.ContractName, err)
	}
	return packed, nil
}

// Artifacts reads compiled contracts from a hardhat artifacts directory.
type Artifacts struct {
	fs  afero.Fs
	dir string
}

func NewArtifacts(fs afero.Fs, dir string) *Artifacts {
	return &Artifacts{fs: fs, dir: dir}
}

// Get finds the artifact of the named contract anywhere below the
// artifacts directory.
func (s *Artifacts) Get(name string) (*Artifact, error) {
	want := name + ".json"
	var found string
	err := afero.Walk(s.fs, s.dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == want && strings.HasSuffix(filepath.Dir(p), ".sol") {
			found = p
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	if found == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrArtifactNotFound)
	}

	b, err := afero.ReadFile(s.fs, found)
	if err != nil {
		return nil, err
	}
	a := &Artifact{path: found}
	if err := json.Unmarshal(b, a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", found, err)
	}
	if a.ABI, err = abi.JSON(strings.NewReader(string(a.ABIJSON))); err != nil {
		return nil, fmt.Errorf("parse abi of %s: %w", name, err)
	}
	return a, nil
}

// BuildInfo follows the debug file next to the artifact to the compiler
// input the artifact was produced from.
func (s *Artifacts) BuildInfo(a *Artifact) (*BuildInfo, error) {
	dbgPath := strings.TrimSuffix(a.path, ".json") + ".dbg.json"
	b, err := afero.ReadFile(s.fs, dbgPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dbgPath, err)
	}
	var dbg struct {
		BuildInfo string `json:"buildInfo"`
	}
	if err := json.Unmarshal(b, &dbg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", dbgPath, err)
	}
	infoPath := path.Join(path.Dir(filepath.ToSlash(a.path)), dbg.BuildInfo)
	b, err = afero.ReadFile(s.fs, filepath.FromSlash(infoPath))
	if err != nil {
		return nil, fmt.Errorf("read build info: %w", err)
	}
	info := new(BuildInfo)
	if err := json.Unmarshal(b, info); err != nil {
		return nil, fmt.Errorf("decode build info: %w", err)
	}
	return info, nil
}
