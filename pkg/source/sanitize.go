package source

import (
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

// Rejected records a photo dropped by Sanitize.
type Rejected struct {
	Index int // position in the input slice
	Photo masonry.Photo
	Err   error
}

// Sanitize drops photos the layout engine cannot place: empty or malformed
// IDs, non-positive or NaN dimensions, and repeated IDs (the first
// occurrence wins). Kept photos retain their relative order.
func Sanitize(photos []masonry.Photo) (kept []masonry.Photo, dropped []Rejected) {
	return sanitize(photos, make(map[string]bool, len(photos)))
}

// sanitize is Sanitize against IDs already accepted; seen is updated.
func sanitize(photos []masonry.Photo, seen map[string]bool) (kept []masonry.Photo, dropped []Rejected) {
	kept = make([]masonry.Photo, 0, len(photos))
	for i, p := range photos {
		err := errors.ValidatePhotoID(p.ID)
		if err == nil {
			err = errors.ValidateDimensions(p.Width, p.Height)
		}
		if err == nil && seen[p.ID] {
			err = errors.New(errors.ErrCodeInvalidPhoto, "duplicate photo id %q", p.ID)
		}
		if err != nil {
			dropped = append(dropped, Rejected{Index: i, Photo: p, Err: err})
			continue
		}
		seen[p.ID] = true
		kept = append(kept, p)
	}
	return kept, dropped
}
