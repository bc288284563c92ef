package source

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

func samplePhotos() []masonry.Photo {
	return []masonry.Photo{
		{ID: "a", Width: 100, Height: 100, Alt: "red fox", Photographer: "Ada"},
		{ID: "b", Width: 100, Height: 200, Alt: "snowy owl", Photographer: "Grace"},
		{ID: "c", Width: 200, Height: 100, Alt: "fox cubs", Photographer: "Linus"},
		{ID: "d", Width: 100, Height: 150, Alt: "harbor seal", Photographer: "Ada"},
	}
}

func ids(photos []masonry.Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.ID
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		want    []string
		wantErr bool
	}{
		{"json list", ".json", `[{"id":"a","width":1,"height":2},{"id":"b","width":3,"height":4}]`, []string{"a", "b"}, false},
		{"json object", ".json", `{"photos":[{"id":"a","width":1,"height":2}]}`, []string{"a"}, false},
		{"json empty object", ".json", `{}`, []string{}, false},
		{"yaml list", ".yaml", "- id: a\n  width: 1\n  height: 2\n", []string{"a"}, false},
		{"yaml object", ".yml", "photos:\n  - id: a\n    width: 1\n    height: 2\n  - id: b\n    width: 1\n    height: 1\n", []string{"a", "b"}, false},
		{"yaml empty", ".yaml", "", []string{}, false},

		{"bad json", ".json", `{"photos":`, nil, true},
		{"bad yaml", ".yaml", "photos: [", nil, true},
		{"unknown ext", ".toml", `photos = []`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest([]byte(tt.data), tt.ext)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(got))
		})
	}
}

func TestParseManifestDisplayFields(t *testing.T) {
	data := `[{"id":"a","width":1,"height":2,"alt":"fox","photographer":"Ada","avg_color":"#aa8844","src":{"medium":"m.jpg"}}]`
	got, err := ParseManifest([]byte(data), ".json")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "fox", got[0].Alt)
	require.Equal(t, "Ada", got[0].Photographer)
	require.Equal(t, "#aa8844", got[0].AvgColor)
	require.Equal(t, "m.jpg", got[0].Src.Medium)
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "photos.json")
	require.NoError(t, WriteManifest(path, samplePhotos()))

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 4, src.Len())
	require.Contains(t, src.Name(), "@")

	got, err := src.Fetch(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, ids(got))

	got, err = src.Fetch(ctx, 3, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"d"}, ids(got))

	got, err = src.Fetch(ctx, 10, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = src.Fetch(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
}

func TestFileSourceNameTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photos.json")

	require.NoError(t, WriteManifest(path, samplePhotos()[:2]))
	first, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, WriteManifest(path, samplePhotos()))
	second, err := OpenFile(path)
	require.NoError(t, err)

	require.NotEqual(t, first.Name(), second.Name())
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "hello")

	tests := []struct {
		name string
		uri  string
		code errors.Code
	}{
		{"empty", "", errors.ErrCodeInvalidSource},
		{"unknown scheme", "ftp://example.com/photos.json", errors.ErrCodeInvalidSource},
		{"missing file", filepath.Join(dir, "missing.json"), errors.ErrCodeFileNotFound},
		{"wrong extension", filepath.Join(dir, "notes.txt"), errors.ErrCodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.uri)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestOpenStoreRejectsFiles(t *testing.T) {
	_, err := OpenStore(context.Background(), "photos.json")
	require.True(t, errors.Is(err, errors.ErrCodeUnsupported), "got %v", err)
}

func TestIsManifest(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"photos.json", true},
		{"feed/photos.yaml", true},
		{"sqlite://photos.json", false},
		{"Pictures", false},
	}
	for _, tt := range tests {
		if got := IsManifest(tt.uri); got != tt.want {
			t.Errorf("IsManifest(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, png.Encode(f, img))
}

func writeGIF(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	require.NoError(t, gif.Encode(f, img, nil))
}

func TestDirSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 40, 20)
	writePNG(t, filepath.Join(dir, "trip", "a.png"), 10, 30)
	writeGIF(t, filepath.Join(dir, "c.gif"), 8, 8)
	writeFile(t, dir, "broken.jpg", "not a jpeg")
	writeFile(t, dir, "notes.txt", "ignored")
	writePNG(t, filepath.Join(dir, ".thumbs", "x.png"), 1, 1)

	src, err := Open(ctx, dir)
	require.NoError(t, err)
	defer src.Close()

	got, err := src.Fetch(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"b.png", "broken.jpg", "c.gif", "trip/a.png"}, ids(got))

	require.Equal(t, 40.0, got[0].Width)
	require.Equal(t, 20.0, got[0].Height)
	require.Equal(t, "b", got[0].Alt)
	require.Equal(t, 10.0, got[3].Width)
	require.Equal(t, 30.0, got[3].Height)

	kept, dropped := Sanitize(got)
	require.Equal(t, []string{"b.png", "c.gif", "trip/a.png"}, ids(kept))
	require.Len(t, dropped, 1)
	require.Equal(t, "broken.jpg", dropped[0].Photo.ID)

	page, err := src.Fetch(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"c.gif"}, ids(page))
}

func TestSanitize(t *testing.T) {
	in := []masonry.Photo{
		{ID: "a", Width: 1, Height: 1},
		{ID: "", Width: 1, Height: 1},
		{ID: "b", Width: 0, Height: 1},
		{ID: "c", Width: 1, Height: -1},
		{ID: "a", Width: 2, Height: 2},
		{ID: "d", Width: 1, Height: 1},
	}

	kept, dropped := Sanitize(in)
	require.Equal(t, []string{"a", "d"}, ids(kept))
	require.Len(t, dropped, 4)

	var idx []int
	for _, r := range dropped {
		idx = append(idx, r.Index)
		require.True(t, errors.Is(r.Err, errors.ErrCodeInvalidPhoto), "got %v", r.Err)
	}
	require.Equal(t, []int{1, 2, 3, 4}, idx)
}

func TestFilter(t *testing.T) {
	photos := samplePhotos()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"a", "b", "c", "d"}},
		{"   ", []string{"a", "b", "c", "d"}},
		{"fox", []string{"a", "c"}},
		{"ada", []string{"a", "d"}},
		{"zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			require.Equal(t, tt.want, ids(Filter(photos, tt.query)))
		})
	}
}

func TestPager(t *testing.T) {
	ctx := context.Background()
	photos := append(samplePhotos(), masonry.Photo{ID: "e", Width: 1, Height: 1})
	p := NewPager(NewMemory("mem", photos), 2)

	n, err := p.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.False(t, p.Exhausted())

	n, err = p.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.False(t, p.Exhausted())

	n, err = p.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, p.Exhausted())

	n, err = p.Next(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(p.Photos()))
}

func TestPagerExactMultipleEndsOnEmptyPage(t *testing.T) {
	ctx := context.Background()
	p := NewPager(NewMemory("mem", samplePhotos()), 2)

	for range 2 {
		_, err := p.Next(ctx)
		require.NoError(t, err)
	}
	require.False(t, p.Exhausted())

	n, err := p.Next(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, p.Exhausted())
}

func TestPagerDropsDuplicatesAcrossPages(t *testing.T) {
	ctx := context.Background()
	photos := []masonry.Photo{
		{ID: "a", Width: 1, Height: 1},
		{ID: "b", Width: 1, Height: 1},
		{ID: "a", Width: 1, Height: 1},
		{ID: "c", Width: 0, Height: 1},
	}
	p := NewPager(NewMemory("mem", photos), 2)

	for !p.Exhausted() {
		_, err := p.Next(ctx)
		require.NoError(t, err)
	}

	require.Equal(t, []string{"a", "b"}, ids(p.Photos()))
	require.Len(t, p.Rejected(), 2)
	require.Equal(t, 2, p.Rejected()[0].Index)
	require.Equal(t, 3, p.Rejected()[1].Index)
	require.Equal(t, 4, p.Offset())
}

func TestPagerPropagatesErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPager(NewMemory("mem", samplePhotos()), 2)
	_, err := p.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, p.Exhausted())
	require.Zero(t, p.Offset())
}
