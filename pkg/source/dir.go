package source

import (
	"context"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// DirSource serves the images below a directory. Files are listed once when
// opened, in lexical path order; dimensions are read from each image header
// as its page is fetched.
//
// A file whose header cannot be decoded is returned with zero dimensions so
// that offsets stay stable; [Sanitize] drops it.
type DirSource struct {
	root  string
	name  string
	files []string // slash paths relative to root
}

// OpenDir lists the images below root.
func OpenDir(root string) (*DirSource, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "scan %s", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &DirSource{root: root, name: "dir:" + abs, files: files}, nil
}

// Name returns "dir:" followed by the absolute root.
func (s *DirSource) Name() string { return s.name }

// Len returns the number of image files found.
func (s *DirSource) Len() int { return len(s.files) }

// Fetch decodes the image headers of one page of files.
func (s *DirSource) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.files) {
		return []masonry.Photo{}, nil
	}
	end := len(s.files)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	photos := make([]masonry.Photo, 0, end-offset)
	for _, rel := range s.files[offset:end] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		photos = append(photos, s.photo(rel))
	}
	return photos, nil
}

func (s *DirSource) photo(rel string) masonry.Photo {
	path := filepath.Join(s.root, filepath.FromSlash(rel))
	p := masonry.Photo{
		ID:  rel,
		Alt: strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)),
		Src: masonry.ImageSources{Original: path},
	}

	w, h, err := decodeDimensions(path)
	if err == nil {
		p.Width, p.Height = float64(w), float64(h)
	}
	return p
}

func decodeDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Close is a no-op.
func (s *DirSource) Close() error { return nil }
