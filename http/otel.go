package http

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer(name)
	meter  = otel.Meter(name)
	logger = otelslog.NewLogger(name)

	activeConns       metric.Int64UpDownCounter
	requestCount      metric.Int64Counter
	handshakeFailures metric.Int64Counter
	acceptErrors      metric.Int64Counter
)

func init() {
	var err error
	activeConns, err = meter.Int64UpDownCounter("ember.connections.active",
		metric.WithDescription("The number of connections being served"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	requestCount, err = meter.Int64Counter("ember.requests",
		metric.WithDescription("The number of requests served by protocol and status"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}

	handshakeFailures, err = meter.Int64Counter("ember.tls.handshake.failures",
		metric.WithDescription("The number of failed TLS handshakes"),
		metric.WithUnit("{handshake}"))
	if err != nil {
		panic(err)
	}

	acceptErrors, err = meter.Int64Counter("ember.accept.errors",
		metric.WithDescription("The number of failed accept calls"),
		metric.WithUnit("{error}"))
	if err != nil {
		panic(err)
	}
}
