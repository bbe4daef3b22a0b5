package static

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrRangeMalformed     = errors.New("static: malformed range")
	ErrRangeUnsatisfiable = errors.New("static: range not satisfiable")
)

const bytesUnit = "bytes"

// ByteRange is the half-open slice [Start, End) of a representation.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start
}

// ContentRange formats r for the Content-Range header.
func (r ByteRange) ContentRange(size int64) string {
	return bytesUnit + " " + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) + "/" + strconv.FormatInt(size, 10)
}

// ParseRange parses a Range header against a representation of size bytes.
// Every range is validated before anything is returned.
func ParseRange(header string, size int64) ([]ByteRange, error) {
	set, ok := strings.CutPrefix(header, bytesUnit+"=")
	if !ok {
		return nil, ErrRangeMalformed
	}

	parts := strings.Split(set, ",")
	ranges := make([]ByteRange, 0, len(parts))
	for _, part := range parts {
		r, err := parseByteRange(strings.TrimSpace(part), size)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseByteRange(value string, size int64) (ByteRange, error) {
	first, last, ok := strings.Cut(value, "-")
	if !ok || strings.Contains(last, "-") {
		return ByteRange{}, ErrRangeMalformed
	}

	r := ByteRange{Start: 0, End: size}
	if first != "" {
		n, err := strconv.ParseInt(first, 10, 64)
		if err != nil || n < 0 {
			return ByteRange{}, ErrRangeMalformed
		}
		if n > size {
			return ByteRange{}, ErrRangeUnsatisfiable
		}
		r.Start = n
	}
	if last != "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return ByteRange{}, ErrRangeMalformed
		}
		if n > size {
			return ByteRange{}, ErrRangeUnsatisfiable
		}
		r.End = n
	}

	if r.Start >= r.End {
		return ByteRange{}, ErrRangeMalformed
	}
	return r, nil
}
