package static

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// ETag derives the validator of a file from its path below the root and its
// modification time.
func ETag(rel string, modTime time.Time) string {
	return `"` + base64.RawURLEncoding.EncodeToString([]byte(rel)) + fmt.Sprintf("%012x", modTime.UnixMilli()) + `"`
}

// MatchETag reports whether a header listing entity tags (If-None-Match,
// If-Match, If-Range) names etag. "*" matches anything. Weak prefixes and
// quotes are ignored and the comparison is case-insensitive.
func MatchETag(header, etag string) bool {
	want := opaque(etag)
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if candidate != "" && strings.EqualFold(opaque(candidate), want) {
			return true
		}
	}
	return false
}

func opaque(tag string) string {
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`)
}
