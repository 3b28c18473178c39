// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonhttp_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rafflekit/rafflekit/pkg/jsonhttp"
)

func TestRespond(t *testing.T) {
	for _, tc := range []struct {
		name     string
		code     int
		response interface{}
		want     jsonhttp.StatusResponse
	}{
		{
			name: "nil response",
			code: http.StatusNotFound,
			want: jsonhttp.StatusResponse{Message: "Not Found", Code: http.StatusNotFound},
		},
		{
			name:     "string",
			code:     http.StatusBadRequest,
			response: "invalid chain id",
			want:     jsonhttp.StatusResponse{Message: "invalid chain id", Code: http.StatusBadRequest},
		},
		{
			name:     "error",
			code:     http.StatusInternalServerError,
			response: errors.New("node unavailable"),
			want:     jsonhttp.StatusResponse{Message: "node unavailable", Code: http.StatusInternalServerError},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			jsonhttp.Respond(w, tc.code, tc.response)

			if w.Code != tc.code {
				t.Fatalf("got status code %d, want %d", w.Code, tc.code)
			}
			if got := w.Header().Get("Content-Type"); got != jsonhttp.DefaultContentTypeHeader {
				t.Fatalf("got content type %q, want %q", got, jsonhttp.DefaultContentTypeHeader)
			}
			var got jsonhttp.StatusResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRespondStruct(t *testing.T) {
	type status struct {
		Players int `json:"players"`
	}
	w := httptest.NewRecorder()
	jsonhttp.OK(w, status{Players: 3})

	if got, want := w.Body.String(), "{\"players\":3}\n\n"; got != want {
		t.Fatalf("got body %q, want %q", got, want)
	}
}

func TestMethodHandler(t *testing.T) {
	h := jsonhttp.MethodHandler{
		http.MethodGet: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonhttp.OK(w, nil)
		}),
	}

	t.Run("allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("got status code %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("got status code %d, want %d", w.Code, http.StatusMethodNotAllowed)
		}
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()
	jsonhttp.NotFoundHandler(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status code %d, want %d", w.Code, http.StatusNotFound)
	}
}
