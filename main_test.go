package main

import (
	"testing"

	"github.com/freekieb7/ember/http"
)

func TestNewDispatcher(t *testing.T) {
	testCases := []struct {
		value   string
		workers int
		valid   bool
	}{
		{"inline", 0, true},
		{"single", 1, true},
		{"fixed:4", 4, true},
		{"unbounded", 0, true},
		{"", 0, true},
		{"fixed:0", 0, false},
		{"fixed:x", 0, false},
		{"threads", 0, false},
	}

	for _, tc := range testCases {
		d, err := newDispatcher(tc.value)
		if !tc.valid {
			if err == nil {
				t.Errorf("newDispatcher(%q) expected an error", tc.value)
			}
			continue
		}
		if err != nil {
			t.Errorf("newDispatcher(%q) = %v", tc.value, err)
			continue
		}
		if pool, ok := d.(*http.PoolDispatcher); ok && pool.Workers() != tc.workers {
			t.Errorf("newDispatcher(%q) has %d workers, want %d", tc.value, pool.Workers(), tc.workers)
		}
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-port", "-1", "-sport", "8443", "-h2c", "-dispatcher", "fixed:2"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.port != -1 || opts.securePort != 8443 || !opts.h2c || opts.dispatcher != "fixed:2" {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.http2 || opts.maxRequestSize != http.DefaultMaxRequestSize {
		t.Errorf("unexpected defaults %+v", opts)
	}

	if _, err := parseFlags([]string{"-unknown"}); err == nil {
		t.Error("expected an unknown flag to fail")
	}
}

func TestNewHttpsWithoutCertificate(t *testing.T) {
	h, err := newHttps(options{})
	if err != nil || h != nil {
		t.Errorf("newHttps = %v, %v, want nothing", h, err)
	}
}
