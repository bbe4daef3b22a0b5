package static

import (
	"context"
	"os"

	"github.com/freekieb7/ember/filesystem"
)

// PreCachedFileHandler is a FileHandler whose cache is filled up front by
// Setup.
type PreCachedFileHandler struct {
	*FileHandler
}

func NewPreCachedFileHandler(fs filesystem.Filesystem, cache *Cache) *PreCachedFileHandler {
	if cache == nil {
		cache = NewCache(0)
	}
	return &PreCachedFileHandler{FileHandler: NewFileHandler(fs).WithCache(cache)}
}

// Setup loads every servable file below the root into the cache. Files of
// unknown or disallowed media types and dot directories are skipped.
func (h *PreCachedFileHandler) Setup(ctx context.Context) (int, error) {
	loaded := 0
	err := h.fs.Walk("/", func(rel string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		mediaType := MediaType(rel)
		if mediaType == "" || !h.AllowedMediaTypes[mediaType] {
			return nil
		}

		f := file{rel: rel, size: info.Size(), etag: ETag(rel, info.ModTime()), policy: h.Policy(mediaType)}
		payload, compressed, err := h.loader(f)()
		if err != nil {
			return err
		}
		h.cache.Store(rel, f.etag, payload, compressed)
		loaded++
		return nil
	})
	if err != nil {
		return loaded, err
	}

	logger.InfoContext(ctx, "precache: loaded files", "root", h.fs.Root(), "files", loaded)
	return loaded, nil
}
