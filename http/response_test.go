package http

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestResponseBuilder(t *testing.T) {
	res, err := NewResponseBuilder().
		WithStatus(StatusOK).
		WithText("hello").
		WithETag(`"v1"`).
		WithMaxAge(60, true).
		WithPrivate().
		Build()
	if err != nil {
		t.Fatal(err)
	}

	if res.Header.Get(HeaderContentLength) != "5" {
		t.Errorf("Content-Length = %q", res.Header.Get(HeaderContentLength))
	}
	if res.Header.Get(HeaderContentType) != MediaTypeText {
		t.Errorf("Content-Type = %q", res.Header.Get(HeaderContentType))
	}
	if got := res.Header.Values(HeaderCacheControl); len(got) != 2 || got[0] != "max-age=60, immutable" || got[1] != "private" {
		t.Errorf("Cache-Control = %q", got)
	}
	if !res.Successful() {
		t.Error("expected a successful response")
	}
}

func TestResponseBuilderNoStatus(t *testing.T) {
	if _, err := NewResponseBuilder().WithText("x").Build(); !errors.Is(err, ErrNoStatus) {
		t.Errorf("err = %v, want ErrNoStatus", err)
	}
}

func TestResponseBuilderUnknownStatus(t *testing.T) {
	res, err := NewResponseBuilder().WithStatus(599).WithNoBody().Build()
	if err != nil {
		t.Fatal(err)
	}
	if res.Code != 599 || res.Message != unknownStatusCode {
		t.Errorf("status line = %d %q", res.Code, res.Message)
	}
}

func TestResponseBuilderNoStore(t *testing.T) {
	b := NewResponseBuilder().WithStatus(StatusOK).WithETag(`"v1"`).WithNoStore()
	if b.HeaderValue(HeaderETag) != "" {
		t.Error("no-store responses carry no validator")
	}
	if b.HeaderValue(HeaderCacheControl) != "no-store" {
		t.Errorf("Cache-Control = %q", b.HeaderValue(HeaderCacheControl))
	}
}

func TestResponseBuilderIsolation(t *testing.T) {
	b := NewResponseBuilder().WithStatus(StatusOK).WithHeader("X-A", "1")
	first, _ := b.Build()
	b.WithHeader("X-A", "2")

	if first.Header.Get("X-A") != "1" {
		t.Error("expected built responses to be independent of the builder")
	}
}

func TestResponseJson(t *testing.T) {
	b := NewResponseBuilder().WithStatus(StatusOK).WithJson(map[string]int{"n": 1})
	res, _ := b.Build()
	if got := string(res.Body.(*bytesBody).Bytes()); got != `{"n":1}` {
		t.Errorf("body = %s", got)
	}

	b = NewResponseBuilder().WithStatus(StatusOK).WithJson(func() {})
	if b.Status() != StatusInternalServerError {
		t.Errorf("status = %d, want 500 for unencodable data", b.Status())
	}
}

func TestResponseWrite(t *testing.T) {
	res, _ := NewResponseBuilder().WithStatus(StatusCreated).WithHeader("X-Id", "7").WithText("made").Build()

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	closeAfter, err := res.write(bw, false)
	if err != nil {
		t.Fatal(err)
	}
	if closeAfter {
		t.Error("a body of known length keeps the connection")
	}

	want := "HTTP/1.1 201 Created\r\nX-Id: 7\r\nContent-Type: " + MediaTypeText + "\r\nContent-Length: 4\r\n\r\nmade"
	if buf.String() != want {
		t.Errorf("wrote %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if _, err := res.write(bw, true); err != nil {
		t.Fatal(err)
	}
	if strings.HasSuffix(buf.String(), "made") {
		t.Error("HEAD responses carry no body")
	}
}

func TestResponseWriteUnknownLength(t *testing.T) {
	res, _ := NewResponseBuilder().WithStatus(StatusOK).WithBody(ReaderBody(MediaTypeText, strings.NewReader("stream"), -1)).Build()
	if res.Header.Has(HeaderContentLength) {
		t.Fatal("unexpected Content-Length")
	}

	var buf bytes.Buffer
	closeAfter, err := res.write(bufio.NewWriter(&buf), false)
	if err != nil {
		t.Fatal(err)
	}
	if !closeAfter {
		t.Error("a body of unknown length ends with the connection")
	}
	if !strings.HasSuffix(buf.String(), "\r\n\r\nstream") {
		t.Errorf("wrote %q", buf.String())
	}
}
