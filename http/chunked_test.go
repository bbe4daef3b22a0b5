package http

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadChunked(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		available int64
		body      string
		err       error
	}{
		{"single chunk", "5\r\nhello\r\n0\r\n\r\n", 1024, "hello", nil},
		{"several chunks", "3\r\nabc\r\n3\r\ndef\r\n0\r\n\r\n", 1024, "abcdef", nil},
		{"extension", "3;name=value\r\nabc\r\n0\r\n\r\n", 1024, "abc", nil},
		{"upper hex", "A\r\n0123456789\r\n0\r\n\r\n", 1024, "0123456789", nil},
		{"empty", "0\r\n\r\n", 1024, "", nil},
		{"bad size", "g\r\nabc\r\n0\r\n\r\n", 1024, "", errMalformed},
		{"missing crlf", "3\r\nabcX\r\n0\r\n\r\n", 1024, "", errMalformed},
		{"trailer", "3\r\nabc\r\n0\r\nX-Trailer: 1\r\n\r\n", 1024, "", errMalformed},
		{"short chunk", "5\r\nabc", 1024, "", errMalformed},
		{"too large", "10\r\n0123456789abcdef\r\n0\r\n\r\n", 8, "", errTooLarge},
		{"size line too long", strings.Repeat("0", 300) + "1\r\na\r\n0\r\n\r\n", 1024, "", errMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, err := readChunked(bufio.NewReader(strings.NewReader(tc.input)), tc.available)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(body) != tc.body {
				t.Errorf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nbare\nlast"))

	line, err := readLine(br, 64)
	if err != nil || string(line) != "GET / HTTP/1.1" {
		t.Fatalf("readLine = %q, %v", line, err)
	}
	if _, err := readLine(br, 64); !errors.Is(err, errMalformed) {
		t.Errorf("bare LF: err = %v, want errMalformed", err)
	}
	if _, err := readLine(br, 64); err != io.ErrUnexpectedEOF {
		t.Errorf("unterminated line: err = %v, want io.ErrUnexpectedEOF", err)
	}

	br = bufio.NewReader(strings.NewReader("0123456789\r\n"))
	if _, err := readLine(br, 4); !errors.Is(err, errTooLarge) {
		t.Errorf("err = %v, want errTooLarge", err)
	}
}
