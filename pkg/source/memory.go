package source

import (
	"context"

	"github.com/matzehuels/masonry/pkg/core/masonry"
)

// Memory is an in-memory Source over a fixed slice of photos.
type Memory struct {
	name   string
	photos []masonry.Photo
}

// NewMemory returns a Source serving photos. The slice is copied.
func NewMemory(name string, photos []masonry.Photo) *Memory {
	return &Memory{name: name, photos: append([]masonry.Photo(nil), photos...)}
}

// Name returns the name given to NewMemory.
func (m *Memory) Name() string { return m.name }

// Fetch returns one page of photos.
func (m *Memory) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page(m.photos, offset, limit), nil
}

// Len returns the collection size.
func (m *Memory) Len() int { return len(m.photos) }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
