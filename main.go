package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/freekieb7/ember/filesystem"
	"github.com/freekieb7/ember/http"
	"github.com/freekieb7/ember/static"
	"github.com/freekieb7/ember/telemetry"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/freekieb7/ember")

type options struct {
	port           int
	securePort     int
	cert           string
	key            string
	certPassword   string
	hostname       string
	root           string
	acmeDir        string
	dispatcher     string
	maxRequestSize int64
	h2c            bool
	http2          bool
	precache       bool
	reusePort      bool
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("ember", flag.ContinueOnError)
	fs.IntVar(&opts.port, "port", http.DefaultPort, "plaintext port, -1 to disable")
	fs.IntVar(&opts.securePort, "sport", http.DefaultSecurePort, "secure port, used when a certificate is given")
	fs.StringVar(&opts.cert, "cert", "", "certificate file (PEM or PKCS#12)")
	fs.StringVar(&opts.key, "key", "", "private key file when the PEM certificate does not hold it")
	fs.StringVar(&opts.certPassword, "cert-password", "", "PKCS#12 password")
	fs.StringVar(&opts.hostname, "hostname", "", "bind address and default authority")
	fs.StringVar(&opts.root, "root", ".", "directory to serve")
	fs.StringVar(&opts.acmeDir, "acme-dir", "", "ACME http-01 token directory, defaults to <root>/.well-known/acme-challenge")
	fs.StringVar(&opts.dispatcher, "dispatcher", "unbounded", "inline, single, fixed:N or unbounded")
	fs.Int64Var(&opts.maxRequestSize, "max-request-size", http.DefaultMaxRequestSize, "request size limit in bytes")
	fs.BoolVar(&opts.h2c, "h2c", false, "accept HTTP/2 with prior knowledge on the plaintext port")
	fs.BoolVar(&opts.http2, "http2", true, "offer HTTP/2 on the secure port")
	fs.BoolVar(&opts.precache, "precache", false, "load every file of the root into memory on start")
	fs.BoolVar(&opts.reusePort, "reuse-port", false, "set SO_REUSEPORT on the listeners")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func newDispatcher(spec string) (http.Dispatcher, error) {
	kind, arg, _ := strings.Cut(spec, ":")
	switch kind {
	case "inline":
		return http.NewInlineDispatcher(), nil
	case "single":
		return http.NewSingleWorkerDispatcher(), nil
	case "fixed":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid worker count %q", arg)
		}
		return http.NewFixedPoolDispatcher(n), nil
	case "unbounded", "":
		return http.NewUnboundedDispatcher(), nil
	default:
		return nil, fmt.Errorf("unknown dispatcher %q", spec)
	}
}

func newHttps(opts options) (*http.Https, error) {
	if opts.cert == "" {
		return nil, nil
	}

	data, err := os.ReadFile(opts.cert)
	if err != nil {
		return nil, err
	}
	blob := http.CertificateBlob{Data: data, Password: opts.certPassword}
	if opts.key != "" {
		if blob.Key, err = os.ReadFile(opts.key); err != nil {
			return nil, err
		}
	}

	return http.NewHttps(http.HttpsConfig{Certificate: blob, HTTP2: opts.http2})
}

func newAcmeHandler(opts options) (*static.AcmeChallengeHandler, error) {
	dir := opts.acmeDir
	if dir == "" {
		dir = filepath.Join(opts.root, ".well-known", "acme-challenge")
	}
	tokens, err := filesystem.NewLocalFileSystem(dir)
	if err != nil {
		return nil, err
	}
	return static.NewAcmeChallengeHandler(tokens), nil
}

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalln(err)
	}
}

func run(args []string) (err error) {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := telemetry.Setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, otelShutdown(context.Background()))
	}()

	dispatcher, err := newDispatcher(opts.dispatcher)
	if err != nil {
		return err
	}
	https, err := newHttps(opts)
	if err != nil {
		return err
	}

	root, err := filesystem.NewLocalFileSystem(opts.root)
	if err != nil {
		return err
	}

	var files http.Handler
	if opts.precache {
		handler := static.NewPreCachedFileHandler(root, static.NewCache(0))
		if _, err := handler.Setup(ctx); err != nil {
			return err
		}
		files = handler
	} else {
		files = static.NewFileHandler(root)
	}

	chain := http.NewChain(files)
	if acme, err := newAcmeHandler(opts); err == nil {
		chain.Acme = acme
	} else if opts.acmeDir != "" {
		return err
	}
	chain.SecurePort = opts.securePort
	chain.Decorate = http.SecurityHeaders()

	cfg := http.DefaultConfig()
	cfg.Port = opts.port
	cfg.SecurePort = opts.securePort
	cfg.Hostname = opts.hostname
	cfg.MaxRequestSize = opts.maxRequestSize
	cfg.Dispatcher = dispatcher
	cfg.Https = https
	cfg.H2C = opts.h2c
	cfg.ReusePort = opts.reusePort

	server := http.NewServer("ember", chain, cfg)

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

	logger.Info("shutting down")
	return <-serverErrCh
}
