package static

import (
	"path"
	"strings"
)

const oneYear = 31536000

// Policy tells how files of one media type are served. MaxAge is in seconds;
// -1 disables caching and 0 forces revalidation.
type Policy struct {
	Compress  bool
	Ranges    bool
	Immutable bool
	MaxAge    int64
}

var mediaTypes = map[string]string{
	".html":        "text/html",
	".htm":         "text/html",
	".xhtml":       "application/xhtml+xml",
	".webmanifest": "application/manifest+json",
	".css":         "text/css",
	".js":          "text/javascript",
	".mjs":         "text/javascript",
	".txt":         "text/plain",
	".md":          "text/markdown",
	".csv":         "text/csv",
	".json":        "application/json",
	".map":         "application/json",
	".xml":         "application/xml",
	".atom":        "application/atom+xml",

	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",

	".woff":  "font/woff",
	".woff2": "font/woff2",
	".eot":   "application/vnd.ms-fontobject",
	".otf":   "font/otf",
	".ttf":   "font/ttf",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",

	".gz":  "application/gzip",
	".tgz": "application/x-gtar",
	".xz":  "application/x-xz",
	".7z":  "application/x-7z-compressed",
	".zip": "application/zip",
	".bin": "application/octet-stream",
	".pdf": "application/pdf",
}

// MediaType returns the media type for a file name, or "" when the
// extension is not known.
func MediaType(filename string) string {
	return mediaTypes[strings.ToLower(path.Ext(filename))]
}

// DefaultAllowedMediaTypes returns every media type MediaType can produce.
func DefaultAllowedMediaTypes() map[string]bool {
	allowed := make(map[string]bool, len(mediaTypes))
	for _, mediaType := range mediaTypes {
		allowed[mediaType] = true
	}
	return allowed
}

// ContentType is the header value for a media type.
func ContentType(mediaType string) string {
	if strings.HasPrefix(mediaType, "text/") || mediaType == "application/json" ||
		strings.HasSuffix(mediaType, "+xml") || mediaType == "application/xml" {
		return mediaType + "; charset=utf-8"
	}
	return mediaType
}

func PolicyFor(mediaType string) Policy {
	typ, sub, _ := strings.Cut(mediaType, "/")

	switch {
	case sub == "html" || sub == "xhtml+xml" || sub == "manifest+json" || sub == "css" || sub == "javascript":
		return Policy{Compress: true}
	case typ == "image":
		return Policy{Compress: sub == "svg+xml", Immutable: true, MaxAge: oneYear}
	case sub == "woff" || sub == "font-woff" || sub == "woff2" || sub == "vnd.ms-fontobject":
		return Policy{Immutable: true, MaxAge: oneYear}
	case sub == "otf" || sub == "ttf" || sub == "opentype" || sub == "truetype":
		return Policy{Compress: true, Immutable: true, MaxAge: oneYear}
	case sub == "json" || sub == "xml" || sub == "atom+xml" || sub == "csv":
		return Policy{Compress: true, MaxAge: -1}
	case typ == "video" || typ == "audio" ||
		sub == "gzip" || sub == "x-gtar" || sub == "x-xz" || sub == "x-7z-compressed" ||
		sub == "zip" || sub == "octet-stream" || sub == "pdf":
		return Policy{Ranges: true}
	default:
		return Policy{Compress: typ == "text"}
	}
}
