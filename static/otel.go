package static

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const name = "github.com/freekieb7/ember/static"

var (
	meter  = otel.Meter(name)
	logger = otelslog.NewLogger(name)

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
)

func init() {
	var err error
	cacheHits, err = meter.Int64Counter("ember.static.cache.hits",
		metric.WithDescription("The number of file payloads served from the cache"),
		metric.WithUnit("{hit}"))
	if err != nil {
		panic(err)
	}

	cacheMisses, err = meter.Int64Counter("ember.static.cache.misses",
		metric.WithDescription("The number of file payloads loaded from disk into the cache"),
		metric.WithUnit("{miss}"))
	if err != nil {
		panic(err)
	}
}
