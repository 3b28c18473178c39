// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tracing wraps a jaeger tracer for raffle rounds, upkeeps and the
// HTTP calls made on their behalf. A nil *Tracer is valid and traces
// nothing.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

// ErrContextNotFound is returned when there is no span context in HTTP
// headers or in a context.
var ErrContextNotFound = errors.New("tracing context not found")

// LogField is the log entry field holding the trace id.
const LogField = "traceid"

const (
	// TraceContextHeaderName is the HTTP header propagating the span context.
	TraceContextHeaderName = "rafflekit-trace-id"
	// TraceBaggageHeaderPrefix prefixes the HTTP headers propagating baggage.
	TraceBaggageHeaderPrefix = "rafflekitctx-"
)

type contextKey struct{}

// Tracer starts spans and moves span contexts between contexts, HTTP
// headers and log entries.
type Tracer struct {
	tracer opentracing.Tracer
}

// Options configure NewTracer. Endpoint is the jaeger agent host:port.
type Options struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// NewTracer returns a Tracer reporting to the jaeger agent of the options.
// The closer flushes the spans that were not reported yet.
func NewTracer(o *Options) (*Tracer, io.Closer, error) {
	if o == nil {
		o = new(Options)
	}
	t, closer, err := config.Configuration{
		Disabled:    !o.Enabled,
		ServiceName: o.ServiceName,
		Sampler: &config.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			LogSpans:            true,
			BufferFlushInterval: time.Second,
			LocalAgentHostPort:  o.Endpoint,
		},
		Headers: &jaeger.HeadersConfig{
			TraceContextHeaderName:   TraceContextHeaderName,
			TraceBaggageHeaderPrefix: TraceBaggageHeaderPrefix,
		},
	}.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("jaeger tracer: %w", err)
	}
	return &Tracer{tracer: t}, closer, nil
}

func (t *Tracer) ot() opentracing.Tracer {
	if t == nil || t.tracer == nil {
		return opentracing.NoopTracer{}
	}
	return t.tracer
}

// StartSpanFromContext starts a span, a child of the one in ctx if there
// is one. The returned entry of l carries the trace id and the returned
// context carries the span. The entry is nil when l is nil.
func (t *Tracer) StartSpanFromContext(ctx context.Context, operationName string, l logging.Logger, opts ...opentracing.StartSpanOption) (opentracing.Span, *logrus.Entry, context.Context) {
	if parent := FromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent))
	}
	span := t.ot().StartSpan(operationName, opts...)
	sc := span.Context()
	return span, loggerWithTraceID(sc, l), WithContext(ctx, sc)
}

// AddContextHTTPHeader writes the span context of ctx to the headers of an
// outgoing request.
func (t *Tracer) AddContextHTTPHeader(ctx context.Context, headers http.Header) error {
	sc := FromContext(ctx)
	if sc == nil {
		return ErrContextNotFound
	}
	return t.ot().Inject(sc, opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(headers))
}

// FromHTTPHeaders reads the span context of an incoming request.
func (t *Tracer) FromHTTPHeaders(headers http.Header) (opentracing.SpanContext, error) {
	sc, err := t.ot().Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(headers))
	switch {
	case errors.Is(err, opentracing.ErrSpanContextNotFound):
		return nil, ErrContextNotFound
	case err != nil:
		return nil, err
	}
	return sc, nil
}

// WithContextFromHTTPHeaders returns ctx with the span context of the
// headers. On error ctx is returned unchanged.
func (t *Tracer) WithContextFromHTTPHeaders(ctx context.Context, headers http.Header) (context.Context, error) {
	sc, err := t.FromHTTPHeaders(headers)
	if err != nil {
		return ctx, err
	}
	return WithContext(ctx, sc), nil
}

// FinishSpan marks the span as failed when err is not nil and finishes it.
func FinishSpan(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

// WithContext returns ctx carrying the span context.
func WithContext(ctx context.Context, sc opentracing.SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext returns the span context of ctx or nil.
func FromContext(ctx context.Context) opentracing.SpanContext {
	sc, _ := ctx.Value(contextKey{}).(opentracing.SpanContext)
	return sc
}

// NewLoggerWithTraceID returns an entry of l with the trace id of the span
// context in ctx, if there is one.
func NewLoggerWithTraceID(ctx context.Context, l logging.Logger) *logrus.Entry {
	return loggerWithTraceID(FromContext(ctx), l)
}

func loggerWithTraceID(sc opentracing.SpanContext, l logging.Logger) *logrus.Entry {
	if l == nil {
		return nil
	}
	if jsc, ok := sc.(jaeger.SpanContext); ok && jsc.TraceID().IsValid() {
		return l.WithField(LogField, jsc.TraceID().String())
	}
	return l.NewEntry()
}
