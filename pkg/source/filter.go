package source

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/matzehuels/masonry/pkg/core/masonry"
)

// photoMatchSource implements fuzzy.Source over a photo slice.
type photoMatchSource []masonry.Photo

func (s photoMatchSource) String(i int) string {
	p := s[i]
	return strings.Join([]string{p.Alt, p.Photographer, p.ID}, " ")
}

func (s photoMatchSource) Len() int { return len(s) }

// Filter returns the photos whose alt text, photographer or ID fuzzy-match
// query. Matches keep collection order rather than score order so the
// filtered layout reads like the full one. An empty query returns photos
// unchanged.
func Filter(photos []masonry.Photo, query string) []masonry.Photo {
	query = strings.TrimSpace(query)
	if query == "" {
		return photos
	}

	matches := fuzzy.FindFrom(query, photoMatchSource(photos))
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Index
	}
	slices.Sort(idx)

	out := make([]masonry.Photo, len(idx))
	for i, j := range idx {
		out[i] = photos[j]
	}
	return out
}
