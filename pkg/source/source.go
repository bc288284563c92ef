// Package source loads photo collections for the layout engine.
//
// A source is addressed by a URI:
//
//	photos.json               JSON manifest
//	photos.yaml, photos.yml   YAML manifest
//	~/Pictures/trip           directory of images
//	sqlite://gallery.db       SQLite photo store
//	mongodb://host/gallery    MongoDB photo store (?collection=photos)
//
// [Open] dispatches on the URI and returns a [Source]. Sources are paged:
// [Source.Fetch] returns at most limit photos starting at offset and fewer
// than limit once the collection is exhausted. Reaching the end is a normal
// condition, not an error. [Pager] builds on that to load successive pages
// as the viewer scrolls.
//
// Sources return photos as stored. Use [Sanitize] to drop photos the layout
// engine cannot place (empty or duplicate IDs, non-positive dimensions).
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

// Source is a paged, read-only photo collection.
type Source interface {
	// Name identifies the collection. It is used as the cache key for
	// fetched pages, so two sources with the same Name must return the
	// same photos. An empty Name disables caching.
	Name() string

	// Fetch returns at most limit photos starting at offset, in collection
	// order. A limit <= 0 returns everything from offset on. An offset past
	// the end returns an empty slice and no error.
	Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error)

	// Close releases any underlying handles.
	Close() error
}

// Store is a Source that can also be written to.
type Store interface {
	Source

	// Put inserts or updates photos by ID. Updated photos keep their
	// position in the collection; new photos are appended in slice order.
	Put(ctx context.Context, photos []masonry.Photo) error
}

// Open resolves uri to a Source.
func Open(ctx context.Context, uri string) (Source, error) {
	if err := errors.ValidateSourceURI(uri); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(uri, sqliteScheme):
		return OpenSQLite(ctx, strings.TrimPrefix(uri, sqliteScheme))
	case isMongoURI(uri):
		return OpenMongo(ctx, uri)
	}

	info, err := os.Stat(uri)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "source %s", uri)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "source %s", uri)
	}
	if info.IsDir() {
		return OpenDir(uri)
	}
	return OpenFile(uri)
}

// OpenStore resolves uri to a writable Store. Only database URIs are
// writable.
func OpenStore(ctx context.Context, uri string) (Store, error) {
	if err := errors.ValidateSourceURI(uri); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(uri, sqliteScheme):
		return OpenSQLite(ctx, strings.TrimPrefix(uri, sqliteScheme))
	case isMongoURI(uri):
		return OpenMongo(ctx, uri)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "%s is not a writable store (use sqlite:// or mongodb://)", uri)
	}
}

// IsManifest reports whether uri names a manifest file that can be watched
// for changes.
func IsManifest(uri string) bool {
	if strings.Contains(uri, "://") {
		return false
	}
	return errors.ValidateManifestFilename(filepath.Base(uri)) == nil
}

// page returns photos[offset:offset+limit] clamped to the slice bounds.
func page(photos []masonry.Photo, offset, limit int) []masonry.Photo {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(photos) {
		return []masonry.Photo{}
	}
	end := len(photos)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]masonry.Photo, end-offset)
	copy(out, photos[offset:end])
	return out
}
