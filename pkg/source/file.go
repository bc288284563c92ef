package source

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

// manifest is the object form of a photo manifest. A manifest may also be a
// bare list of photos.
type manifest struct {
	Photos []masonry.Photo `json:"photos" yaml:"photos"`
}

// FileSource serves photos from a JSON or YAML manifest. The file is read
// once when opened.
type FileSource struct {
	path   string
	name   string
	photos []masonry.Photo
}

// OpenFile reads the manifest at path.
func OpenFile(path string) (*FileSource, error) {
	if err := errors.ValidateManifestFilename(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read manifest %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "read manifest %s", path)
	}

	photos, err := ParseManifest(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse manifest %s", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &FileSource{
		path:   path,
		name:   abs + "@" + cache.Hash(data)[:16],
		photos: photos,
	}, nil
}

// ParseManifest decodes manifest data. ext selects the format (".json",
// ".yaml" or ".yml").
func ParseManifest(data []byte, ext string) ([]masonry.Photo, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return parseJSONManifest(data)
	case ".yaml", ".yml":
		return parseYAMLManifest(data)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported manifest format %q", ext)
	}
}

func parseJSONManifest(data []byte) ([]masonry.Photo, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var photos []masonry.Photo
		if err := json.Unmarshal(trimmed, &photos); err != nil {
			return nil, err
		}
		return photos, nil
	}

	var m manifest
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, err
	}
	return m.Photos, nil
}

func parseYAMLManifest(data []byte) ([]masonry.Photo, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var photos []masonry.Photo
		if err := root.Decode(&photos); err != nil {
			return nil, err
		}
		return photos, nil
	}

	var m manifest
	if err := root.Decode(&m); err != nil {
		return nil, err
	}
	return m.Photos, nil
}

// WriteManifest encodes photos as a JSON manifest in object form.
func WriteManifest(path string, photos []masonry.Photo) error {
	if photos == nil {
		photos = []masonry.Photo{}
	}
	data, err := json.MarshalIndent(manifest{Photos: photos}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Name returns the absolute manifest path tagged with a content hash.
func (s *FileSource) Name() string { return s.name }

// Path returns the manifest path as given to OpenFile.
func (s *FileSource) Path() string { return s.path }

// Fetch returns one page of photos.
func (s *FileSource) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page(s.photos, offset, limit), nil
}

// Len returns the number of photos in the manifest.
func (s *FileSource) Len() int { return len(s.photos) }

// Close is a no-op.
func (s *FileSource) Close() error { return nil }
