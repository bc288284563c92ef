package source

import (
	"context"

	"github.com/matzehuels/masonry/pkg/core/masonry"
)

// DefaultPageSize is the number of photos fetched per page.
const DefaultPageSize = 30

// FetchFunc loads one page of photos. Runner-backed callers pass a cached
// fetch; plain callers pass [Source.Fetch].
type FetchFunc func(ctx context.Context, offset, limit int) ([]masonry.Photo, error)

// Pager accumulates successive pages of a source. Each page is sanitized
// against everything already loaded, so photos repeated across pages are
// dropped.
//
// A Pager is not safe for concurrent use.
type Pager struct {
	fetch     FetchFunc
	size      int
	offset    int
	photos    []masonry.Photo
	seen      map[string]bool
	rejected  []Rejected
	exhausted bool
}

// NewPager returns a pager over src. A size <= 0 uses DefaultPageSize.
func NewPager(src Source, size int) *Pager {
	return NewPagerFunc(src.Fetch, size)
}

// NewPagerFunc returns a pager over an arbitrary fetch function.
func NewPagerFunc(fetch FetchFunc, size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{fetch: fetch, size: size, seen: make(map[string]bool)}
}

// Next loads the next page and returns how many photos it added. Once the
// source is exhausted Next returns 0 and no error.
func (p *Pager) Next(ctx context.Context) (int, error) {
	if p.exhausted {
		return 0, nil
	}

	batch, err := p.fetch(ctx, p.offset, p.size)
	if err != nil {
		return 0, err
	}
	p.offset += len(batch)
	if len(batch) < p.size {
		p.exhausted = true
	}

	kept, dropped := sanitize(batch, p.seen)
	for i := range dropped {
		dropped[i].Index += p.offset - len(batch)
	}
	p.rejected = append(p.rejected, dropped...)
	p.photos = append(p.photos, kept...)
	return len(kept), nil
}

// Photos returns every photo loaded so far. The returned slice must not be
// modified.
func (p *Pager) Photos() []masonry.Photo { return p.photos }

// Rejected returns every photo dropped so far, indexed by source offset.
func (p *Pager) Rejected() []Rejected { return p.rejected }

// Exhausted reports whether the last page came back short.
func (p *Pager) Exhausted() bool { return p.exhausted }

// Offset returns the source offset of the next page.
func (p *Pager) Offset() int { return p.offset }
