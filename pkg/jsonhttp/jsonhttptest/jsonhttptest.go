// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jsonhttptest issues requests against a JSON API in tests and
// checks the responses.
package jsonhttptest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/rafflekit/rafflekit/pkg/jsonhttp"
)

// Request sends a request and fails t unless the response has
// responseCode and matches the expectations in opts. It returns the
// response headers.
func Request(t *testing.T, client *http.Client, method, url string, responseCode int, opts ...Option) http.Header {
	t.Helper()

	o := new(options)
	for _, opt := range opts {
		opt.apply(o)
	}

	req, err := http.NewRequest(method, url, o.requestBody)
	if err != nil {
		t.Fatal(err)
	}
	if o.requestHeaders != nil {
		req.Header = o.requestHeaders
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != responseCode {
		t.Errorf("got response status %s, want %v %s", resp.Status, responseCode, http.StatusText(responseCode))
	}

	switch {
	case o.expectedResponse != nil:
		got, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, o.expectedResponse) {
			t.Errorf("got response %s, want %s", string(got), string(o.expectedResponse))
		}
	case o.expectedJSONResponse != nil:
		if v := resp.Header.Get("Content-Type"); v != jsonhttp.DefaultContentTypeHeader {
			t.Errorf("got content type %q, want %q", v, jsonhttp.DefaultContentTypeHeader)
		}
		got, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		want, err := json.Marshal(o.expectedJSONResponse)
		if err != nil {
			t.Fatal(err)
		}
		if got = bytes.TrimSpace(got); !bytes.Equal(got, want) {
			t.Errorf("got json response %s, want %s", string(got), string(want))
		}
	case o.unmarshalResponse != nil:
		if err := json.NewDecoder(resp.Body).Decode(o.unmarshalResponse); err != nil {
			t.Fatal(err)
		}
	}
	return resp.Header
}

func WithRequestBody(body io.Reader) Option {
	return optionFunc(func(o *options) {
		o.requestBody = body
	})
}

func WithRequestHeader(key, value string) Option {
	return optionFunc(func(o *options) {
		if o.requestHeaders == nil {
			o.requestHeaders = make(http.Header)
		}
		o.requestHeaders.Add(key, value)
	})
}

func WithExpectedResponse(response []byte) Option {
	return optionFunc(func(o *options) {
		o.expectedResponse = response
	})
}

func WithExpectedJSONResponse(response interface{}) Option {
	return optionFunc(func(o *options) {
		o.expectedJSONResponse = response
	})
}

// WithUnmarshalResponse decodes the response body into response, which
// must be a pointer.
func WithUnmarshalResponse(response interface{}) Option {
	return optionFunc(func(o *options) {
		o.unmarshalResponse = response
	})
}

type options struct {
	requestBody          io.Reader
	requestHeaders       http.Header
	expectedResponse     []byte
	expectedJSONResponse interface{}
	unmarshalResponse    interface{}
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }
