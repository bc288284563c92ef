package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxPhotoIDLength bounds photo IDs accepted from manifests and HTTP payloads.
const maxPhotoIDLength = 256

// ValidatePhotoID validates an opaque photo identifier.
//
// IDs are treated as opaque keys by the layout engine, so the rules only
// guard the edges where IDs become cache keys, SQL parameters and JSON:
//   - No empty IDs
//   - No control characters
//   - Maximum length of 256 bytes
func ValidatePhotoID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPhoto, "photo id cannot be empty")
	}

	if len(id) > maxPhotoIDLength {
		return New(ErrCodeInvalidPhoto, "photo id too long (max %d characters)", maxPhotoIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPhoto, "photo id contains invalid control characters")
		}
	}

	return nil
}

// ValidateDimensions checks the intrinsic pixel size of a photo.
// Both dimensions must be strictly positive; the balancer divides by width.
func ValidateDimensions(width, height float64) error {
	if !(width > 0) {
		return New(ErrCodeInvalidPhoto, "photo width must be > 0, got %v", width)
	}
	if !(height > 0) {
		return New(ErrCodeInvalidPhoto, "photo height must be > 0, got %v", height)
	}
	return nil
}

// manifestExtensions lists the manifest formats understood by the file source.
var manifestExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// ValidateManifestFilename validates a photo manifest filename.
// It must carry one of the supported extensions.
func ValidateManifestFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidFormat, "manifest filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !manifestExtensions[ext] {
		return New(ErrCodeInvalidFormat, "unsupported manifest format %q (must be .json, .yaml or .yml)", ext)
	}

	return nil
}

// ValidatePath validates a relative file path for safety.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// sourceSchemes lists the URI schemes understood by source.Open.
var sourceSchemes = []string{"sqlite://", "mongodb://", "mongodb+srv://"}

// ValidateSourceURI validates a photo source reference.
//
// A source is either a URI with a known scheme or a plain filesystem path
// (manifest file or image directory). Unknown schemes are rejected so that a
// typo like "sqlit://" is not silently treated as a relative path.
func ValidateSourceURI(uri string) error {
	if uri == "" {
		return New(ErrCodeInvalidSource, "source cannot be empty")
	}

	for _, r := range uri {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidSource, "source contains invalid characters")
		}
	}

	idx := strings.Index(uri, "://")
	if idx < 0 {
		return nil
	}

	for _, scheme := range sourceSchemes {
		if strings.HasPrefix(uri, scheme) {
			if len(uri) == len(scheme) {
				return New(ErrCodeInvalidSource, "source %q is missing a location", uri)
			}
			return nil
		}
	}

	return New(ErrCodeInvalidSource, "unsupported source scheme %q", uri[:idx])
}
