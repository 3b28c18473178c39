// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/tracing"
	"golang.org/x/time/rate"
)

var (
	ErrVerificationFailed = errors.New("deploy: verification failed")
	ErrNoEtherscanAPI     = errors.New("deploy: no etherscan api for chain")
)

var etherscanAPIs = map[int64]string{
	1:        "https://api.etherscan.io/api",
	5:        "https://api-goerli.etherscan.io/api",
	11155111: "https://api-sepolia.etherscan.io/api",
}

// EtherscanAPIURL returns the etherscan api endpoint of the chain.
func EtherscanAPIURL(chainID int64) (string, error) {
	u, ok := etherscanAPIs[chainID]
	if !ok {
		return "", fmt.Errorf("chain %d: %w", chainID, ErrNoEtherscanAPI)
	}
	return u, nil
}

const (
	defaultPollInterval = 5 * time.Second
	locateRetries       = 5

	// etherscan allows five calls per second on a free api key
	requestsPerSecond = 5
)

// Verifier submits contract sources to etherscan.
type Verifier struct {
	logger       logging.Logger
	tracer       *tracing.Tracer
	client       *http.Client
	apiURL       string
	apiKey       string
	pollInterval time.Duration
	limiter      *rate.Limiter
}

// NewVerifier returns a Verifier for the etherscan api at apiURL. Requests
// carry the span context of the verification.
func NewVerifier(logger logging.Logger, tracer *tracing.Tracer, client *http.Client, apiURL, apiKey string) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Verifier{
		logger:       logger,
		tracer:       tracer,
		client:       client,
		apiURL:       apiURL,
		apiKey:       apiKey,
		pollInterval: defaultPollInterval,
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Verify submits the standard json input of the artifact and waits for
// etherscan to accept it. A contract that is already verified is not an
// error.
func (v *Verifier) Verify(ctx context.Context, a *Artifact, info *BuildInfo, address common.Address, constructorArgs []byte) (err error) {
	span, logger, ctx := v.tracer.StartSpanFromContext(ctx, "etherscan-verify", v.logger)
	defer func() { tracing.FinishSpan(span, err) }()
	span.SetTag("contract", a.ContractName)
	span.SetTag("address", address.Hex())

	logger.Infof("verifying %s at %s", a.ContractName, address)

	form := url.Values{}
	form.Set("apikey", v.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", address.Hex())
	form.Set("sourceCode", string(info.Input))
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("contractname", a.FullyQualifiedName())
	form.Set("compilerversion", "v"+info.SolcLongVersion)
	// the misspelling is part of the etherscan api
	form.Set("constructorArguements", hex.EncodeToString(constructorArgs))

	var guid string
	for attempt := 0; ; attempt++ {
		resp, err := v.post(ctx, form)
		if err != nil {
			return err
		}
		if resp.Status == "1" {
			guid = resp.Result
			break
		}
		if alreadyVerified(resp.Result) {
			logger.Infof("%s at %s is already verified", a.ContractName, address)
			return nil
		}
		// etherscan has not indexed the bytecode of a fresh deployment yet
		if strings.Contains(resp.Result, "Unable to locate ContractCode") && attempt < locateRetries {
			if err := v.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Result)
	}

	for {
		if err := v.sleep(ctx); err != nil {
			return err
		}
		resp, err := v.status(ctx, guid)
		if err != nil {
			return err
		}
		switch {
		case strings.Contains(resp.Result, "Pending"):
			continue
		case resp.Status == "1", alreadyVerified(resp.Result):
			logger.Infof("verified %s at %s", a.ContractName, address)
			return nil
		default:
			return fmt.Errorf("%w: %s", ErrVerificationFailed, resp.Result)
		}
	}
}

func (v *Verifier) post(ctx context.Context, form url.Values) (*etherscanResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return v.do(req)
}

func (v *Verifier) status(ctx context.Context, guid string) (*etherscanResponse, error) {
	q := url.Values{}
	q.Set("apikey", v.apiKey)
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return v.do(req)
}

func (v *Verifier) do(req *http.Request) (*etherscanResponse, error) {
	if err := v.tracer.AddContextHTTPHeader(req.Context(), req.Header); err != nil && !errors.Is(err, tracing.ErrContextNotFound) {
		return nil, fmt.Errorf("etherscan: trace header: %w", err)
	}
	if err := v.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("etherscan: %w", err)
	}
	r, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etherscan: %w", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan: unexpected status %s", r.Status)
	}
	resp := new(etherscanResponse)
	if err := json.NewDecoder(r.Body).Decode(resp); err != nil {
		return nil, fmt.Errorf("etherscan: decode response: %w", err)
	}
	return resp, nil
}

func (v *Verifier) sleep(ctx context.Context) error {
	select {
	case <-time.After(v.pollInterval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func alreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}
