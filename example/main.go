package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/freekieb7/ember/http"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const name = "github.com/freekieb7/ember/example"

var (
	tracer  = otel.Tracer(name)
	meter   = otel.Meter(name)
	logger  = otelslog.NewLogger(name)
	rollCnt metric.Int64Counter
)

func init() {
	var err error
	rollCnt, err = meter.Int64Counter("dice.rolls",
		metric.WithDescription("The number of rolls by roll value"),
		metric.WithUnit("{roll}"))
	if err != nil {
		panic(err)
	}
}

func main() {
	if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalln(err)
	}
}

func run() error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	clock := http.NewEventSource(time.Second)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				clock.Write(now.Format(time.RFC3339))
			case <-ctx.Done():
				clock.End()
				return
			}
		}
	}()

	router := http.NewRouter()
	router.Use(http.LogMiddleware())

	router.GET("/roll", func(req *http.Request, params []string) *http.ResponseBuilder {
		spanCtx, span := tracer.Start(req.Context(), "roll")
		defer span.End()

		roll := 1 + rand.Intn(6)
		logger.InfoContext(spanCtx, "Anonymous player is rolling the dice", "result", roll)

		rollValueAttr := attribute.Int("roll.value", roll)
		span.SetAttributes(rollValueAttr)
		rollCnt.Add(spanCtx, 1, metric.WithAttributes(rollValueAttr))

		return http.NewResponseBuilder().WithStatus(http.StatusOK).WithText(strconv.Itoa(roll) + "\n")
	})

	router.POST("/echo", func(req *http.Request, params []string) *http.ResponseBuilder {
		contentType := req.Header.Get(http.HeaderContentType)
		if contentType == "" {
			contentType = http.MediaTypeOctet
		}
		return http.NewResponseBuilder().WithStatus(http.StatusOK).WithBytes(contentType, req.Body)
	})

	router.GET("/clock", func(req *http.Request, params []string) *http.ResponseBuilder {
		return clock.Respond()
	})

	router.Group("/api", func(group *http.Router) {
		group.GET("/users/([0-9]+)", func(req *http.Request, params []string) *http.ResponseBuilder {
			return http.NewResponseBuilder().WithStatus(http.StatusOK).WithJson(map[string]string{"id": params[0]})
		})
	}, http.BasicAuth("", map[string]string{"admin": "secret"}), http.CORS("*", http.MethodGet))

	cfg := http.DefaultConfig()
	cfg.SecurePort = -1

	server := http.NewServer("example", http.NewChain(router), cfg)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe(ctx)
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		stop()
	}

	return <-serverErrCh
}
