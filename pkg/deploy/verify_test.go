// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/deploy"
	"github.com/rafflekit/rafflekit/pkg/tracing"
)

func etherscan(t *testing.T, submit, status []string, traced bool) *httptest.Server {
	t.Helper()
	var submits, polls int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if traced && r.Header.Get(tracing.TraceContextHeaderName) == "" {
			t.Errorf("request without %s header", tracing.TraceContextHeaderName)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		var result string
		switch r.Form.Get("action") {
		case "verifysourcecode":
			if r.Form.Get("codeformat") != "solidity-standard-json-input" || r.Form.Get("contractname") != "contracts/Raffle.sol:Raffle" {
				t.Errorf("got form %v", r.Form)
			}
			result = submit[submits]
			submits++
		case "checkverifystatus":
			result = status[polls]
			polls++
		default:
			t.Errorf("unexpected action %q", r.Form.Get("action"))
		}
		resp := map[string]string{"status": "0", "message": "NOTOK", "result": result}
		if result == "guid" || result == "Pass - Verified" {
			resp["status"], resp["message"] = "1", "OK"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestVerify(t *testing.T) {
	_, artifacts := newArtifacts(t)
	a, err := artifacts.Get(deploy.RaffleContract)
	if err != nil {
		t.Fatal(err)
	}
	info, err := artifacts.BuildInfo(a)
	if err != nil {
		t.Fatal(err)
	}
	address := common.HexToAddress("0x1")

	for _, tc := range []struct {
		name    string
		submit  []string
		status  []string
		traced  bool
		wantErr error
	}{
		{
			name:   "verified",
			submit: []string{"Unable to locate ContractCode at 0x1", "guid"},
			status: []string{"Pending in queue", "Pass - Verified"},
			traced: true,
		},
		{
			name:   "already verified",
			submit: []string{"Contract source code already verified"},
		},
		{
			name:    "rejected",
			submit:  []string{"guid"},
			status:  []string{"Fail - Unable to verify"},
			wantErr: deploy.ErrVerificationFailed,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := etherscan(t, tc.submit, tc.status, tc.traced)
			defer srv.Close()

			var tracer *tracing.Tracer
			if tc.traced {
				var closer io.Closer
				tracer, closer, err = tracing.NewTracer(&tracing.Options{Enabled: true, ServiceName: "test"})
				if err != nil {
					t.Fatal(err)
				}
				defer closer.Close()
			}

			v := deploy.NewVerifier(logger, tracer, srv.Client(), srv.URL, "key")
			v.SetPollInterval(time.Millisecond)

			err := v.Verify(context.Background(), a, info, address, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error %v, want %v", err, tc.wantErr)
			}
		})
	}
}
