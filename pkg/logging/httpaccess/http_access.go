// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpaccess logs one entry per request served by the debug API.
package httpaccess

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/tracing"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the identifier assigned to every served request.
const RequestIDHeader = "X-Request-Id"

// NewHTTPAccessLogHandler logs message at level once a request has been
// served. The entry carries the trace id of the request, if any.
func NewHTTPAccessLogHandler(logger logging.Logger, level logrus.Level, tracer *tracing.Tracer, message string) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := &recorder{ResponseWriter: w, level: level}
			h.ServeHTTP(rec, r)
			if rec.level == 0 {
				return
			}

			ctx, _ := tracer.WithContextFromHTTPHeaders(r.Context(), r.Header)
			fields := requestFields(r)
			fields["status"] = rec.statusCode()
			fields["size"] = rec.size
			fields["duration"] = time.Since(start).Seconds()
			fields["request_id"] = requestID

			tracing.NewLoggerWithTraceID(ctx, logger).WithFields(fields).Log(rec.level, message)
		})
	}
}

// SetAccessLogLevelHandler overrides the level of the access log entry for
// the wrapped handler. Level 0 suppresses the entry.
func SetAccessLogLevelHandler(level logrus.Level) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rec, ok := w.(*recorder); ok {
				rec.level = level
			}
			h.ServeHTTP(w, r)
		})
	}
}

func requestFields(r *http.Request) logrus.Fields {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	fields := logrus.Fields{
		"ip":     ip,
		"method": r.Method,
		"uri":    r.RequestURI,
		"proto":  r.Proto,
	}
	optional := map[string]string{
		"referrer":        r.Referer(),
		"user-agent":      r.UserAgent(),
		"x-forwarded-for": r.Header.Get("X-Forwarded-For"),
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// recorder captures the status and size of a response.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	level  logrus.Level
}

func (rec *recorder) statusCode() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func (rec *recorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *recorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

func (rec *recorder) WriteHeader(status int) {
	rec.ResponseWriter.WriteHeader(status)
	if rec.status == 0 {
		rec.status = status
	}
}
