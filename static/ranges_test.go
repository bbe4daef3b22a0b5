package static

import (
	"errors"
	"testing"
	"time"
)

func TestParseRange(t *testing.T) {
	const size = 1000

	testCases := []struct {
		header string
		ranges []ByteRange
		err    error
	}{
		{"bytes=100-200", []ByteRange{{100, 200}}, nil},
		{"bytes=0-1000", []ByteRange{{0, 1000}}, nil},
		{"bytes=900-", []ByteRange{{900, 1000}}, nil},
		{"bytes=-100", []ByteRange{{0, 100}}, nil},
		{"bytes=0-10, 20-30", []ByteRange{{0, 10}, {20, 30}}, nil},
		{"bytes=20-30,0-10", []ByteRange{{20, 30}, {0, 10}}, nil},
		{"items=0-10", nil, ErrRangeMalformed},
		{"bytes=10", nil, ErrRangeMalformed},
		{"bytes=a-10", nil, ErrRangeMalformed},
		{"bytes=-5-10", nil, ErrRangeMalformed},
		{"bytes=200-100", nil, ErrRangeMalformed},
		{"bytes=100-100", nil, ErrRangeMalformed},
		{"bytes=0-10,", nil, ErrRangeMalformed},
		{"bytes=0-1001", nil, ErrRangeUnsatisfiable},
		{"bytes=1001-", nil, ErrRangeUnsatisfiable},
		{"bytes=0-10,990-2000", nil, ErrRangeUnsatisfiable},
	}

	for _, tc := range testCases {
		ranges, err := ParseRange(tc.header, size)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("ParseRange(%q) err = %v, want %v", tc.header, err, tc.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRange(%q) err = %v", tc.header, err)
			continue
		}
		if len(ranges) != len(tc.ranges) {
			t.Errorf("ParseRange(%q) = %v, want %v", tc.header, ranges, tc.ranges)
			continue
		}
		for i := range ranges {
			if ranges[i] != tc.ranges[i] {
				t.Errorf("ParseRange(%q)[%d] = %v, want %v", tc.header, i, ranges[i], tc.ranges[i])
			}
		}
	}
}

func TestByteRangeContentRange(t *testing.T) {
	r := ByteRange{Start: 100, End: 200}
	if r.Length() != 100 {
		t.Errorf("Length = %d", r.Length())
	}
	if got := r.ContentRange(1000); got != "bytes 100-200/1000" {
		t.Errorf("ContentRange = %q", got)
	}
}

func TestETag(t *testing.T) {
	mod := time.UnixMilli(1700000000000)

	a := ETag("/index.html", mod)
	if a != ETag("/index.html", mod) {
		t.Error("expected identical path and time to give identical tags")
	}
	if a == ETag("/index.html", mod.Add(time.Millisecond)) {
		t.Error("expected a new modification time to change the tag")
	}
	if a == ETag("/other.html", mod) {
		t.Error("expected another path to change the tag")
	}
	if a[0] != '"' || a[len(a)-1] != '"' {
		t.Errorf("tag %s is not quoted", a)
	}
}

func TestMatchETag(t *testing.T) {
	etag := `"abc123"`

	testCases := []struct {
		header string
		match  bool
	}{
		{`"abc123"`, true},
		{`W/"abc123"`, true},
		{`"other", "abc123"`, true},
		{`*`, true},
		{`"ABC123"`, true},
		{`"other"`, false},
		{``, false},
	}

	for _, tc := range testCases {
		if got := MatchETag(tc.header, etag); got != tc.match {
			t.Errorf("MatchETag(%q) = %v, want %v", tc.header, got, tc.match)
		}
	}
}

func TestPolicyFor(t *testing.T) {
	testCases := []struct {
		filename string
		policy   Policy
	}{
		{"index.html", Policy{Compress: true}},
		{"app.js", Policy{Compress: true}},
		{"style.css", Policy{Compress: true}},
		{"logo.png", Policy{Immutable: true, MaxAge: oneYear}},
		{"logo.svg", Policy{Compress: true, Immutable: true, MaxAge: oneYear}},
		{"font.woff2", Policy{Immutable: true, MaxAge: oneYear}},
		{"font.ttf", Policy{Compress: true, Immutable: true, MaxAge: oneYear}},
		{"data.json", Policy{Compress: true, MaxAge: -1}},
		{"feed.xml", Policy{Compress: true, MaxAge: -1}},
		{"movie.mp4", Policy{Ranges: true}},
		{"archive.zip", Policy{Ranges: true}},
		{"notes.txt", Policy{Compress: true}},
	}

	for _, tc := range testCases {
		mediaType := MediaType(tc.filename)
		if mediaType == "" {
			t.Errorf("no media type for %s", tc.filename)
			continue
		}
		if got := PolicyFor(mediaType); got != tc.policy {
			t.Errorf("PolicyFor(%s) = %+v, want %+v", mediaType, got, tc.policy)
		}
	}
}

func TestMediaType(t *testing.T) {
	if got := MediaType("/A/B/INDEX.HTML"); got != "text/html" {
		t.Errorf("MediaType = %q", got)
	}
	if got := MediaType("Makefile"); got != "" {
		t.Errorf("MediaType = %q, want none", got)
	}
	if got := ContentType("text/css"); got != "text/css; charset=utf-8" {
		t.Errorf("ContentType = %q", got)
	}
	if got := ContentType("image/png"); got != "image/png" {
		t.Errorf("ContentType = %q", got)
	}
}
