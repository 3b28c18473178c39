// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertError is a decoded contract revert.
type RevertError struct {
	// Name is the custom error name, empty for a plain revert.
	Name string
	// Args are the custom error arguments in declaration order.
	Args []interface{}
	// Reason is the Error(string) message of a plain revert.
	Reason string
	// Data is the raw revert payload if the node returned it.
	Data []byte
}

func (e *RevertError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("execution reverted: %s%v", e.Name, e.Args)
	}
	if e.Reason != "" {
		return "execution reverted: " + e.Reason
	}
	return "execution reverted"
}

// customErrorMessage matches nodes that only report the custom error in the
// message, such as "reverted with custom error 'Raffle__NotOpen()'".
var customErrorMessage = regexp.MustCompile(`custom error '([A-Za-z0-9_]+)\(([^)]*)\)'`)

// RevertData extracts the revert payload carried by a JSON-RPC error.
func RevertData(err error) ([]byte, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return nil, false
	}
	switch v := de.ErrorData().(type) {
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, false
		}
		return b, true
	case []byte:
		return v, true
	}
	return nil, false
}

// DecodeRevert decodes a call or estimation error against the custom errors
// declared in the ABI. It returns false if err is not a revert.
func DecodeRevert(a *abi.ABI, err error) (*RevertError, bool) {
	if err == nil {
		return nil, false
	}
	var re *RevertError
	if errors.As(err, &re) {
		return re, true
	}
	if data, ok := RevertData(err); ok {
		return decodeRevertData(a, data), true
	}
	if m := customErrorMessage.FindStringSubmatch(err.Error()); m != nil {
		return &RevertError{Name: m[1], Args: parseMessageArgs(m[2])}, true
	}
	if strings.Contains(err.Error(), "revert") {
		reason := err.Error()
		if i := strings.Index(reason, "reverted with reason string '"); i >= 0 {
			reason = strings.TrimSuffix(reason[i+len("reverted with reason string '"):], "'")
		}
		return &RevertError{Reason: reason}, true
	}
	return nil, false
}

func decodeRevertData(a *abi.ABI, data []byte) *RevertError {
	if reason, err := abi.UnpackRevert(data); err == nil {
		return &RevertError{Reason: reason, Data: data}
	}
	if len(data) >= 4 && a != nil {
		for name, e := range a.Errors {
			if !bytes.Equal(e.ID[:4], data[:4]) {
				continue
			}
			args, err := e.Inputs.Unpack(data[4:])
			if err != nil {
				break
			}
			return &RevertError{Name: name, Args: args, Data: data}
		}
	}
	return &RevertError{Data: data}
}

// ErrorSelector returns the 4 byte selector of the named custom error.
func ErrorSelector(a *abi.ABI, name string) ([]byte, error) {
	e, ok := a.Errors[name]
	if !ok {
		return nil, fmt.Errorf("unknown error %s", name)
	}
	return common.CopyBytes(e.ID[:4]), nil
}

// parseMessageArgs parses the decimal arguments a node prints for a custom
// error. Arguments that are not integers are kept as strings.
func parseMessageArgs(s string) []interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	args := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if v, ok := new(big.Int).SetString(p, 0); ok {
			args = append(args, v)
			continue
		}
		args = append(args, strings.Trim(p, `"`))
	}
	return args
}
