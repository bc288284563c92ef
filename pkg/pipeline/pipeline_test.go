package pipeline

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/source"
)

func squares(n int) []masonry.Photo {
	photos := make([]masonry.Photo, n)
	for i := range photos {
		photos[i] = masonry.Photo{ID: fmt.Sprintf("p%d", i), Width: 100, Height: 100}
	}
	return photos
}

func testOptions() Options {
	return Options{
		Width:               300,
		MinColumnWidth:      100,
		MaxColumns:          3,
		EstimatedCardHeight: 100,
	}
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	r := NewRunner(c, nil, nil)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSetLayoutDefaults(t *testing.T) {
	opts := Options{}
	opts.SetLayoutDefaults()

	if opts.Width != 0 {
		t.Errorf("Width should stay 0, got %v", opts.Width)
	}
	if opts.MinColumnWidth != masonry.DefaultMinColumnWidth {
		t.Errorf("MinColumnWidth should be %v, got %v", masonry.DefaultMinColumnWidth, opts.MinColumnWidth)
	}
	if opts.MaxColumns != masonry.DefaultMaxColumns {
		t.Errorf("MaxColumns should be %d, got %d", masonry.DefaultMaxColumns, opts.MaxColumns)
	}
	if opts.EstimatedCardHeight != masonry.DefaultEstimatedCardHeight {
		t.Errorf("EstimatedCardHeight should be %v, got %v", masonry.DefaultEstimatedCardHeight, opts.EstimatedCardHeight)
	}
}

func TestSetWindowDefaults(t *testing.T) {
	opts := Options{}
	opts.SetWindowDefaults()

	if opts.ViewportHeight != 0 {
		t.Errorf("ViewportHeight should stay 0, got %v", opts.ViewportHeight)
	}
	if opts.Buffer != 0 {
		t.Errorf("Buffer should stay 0, got %d", opts.Buffer)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		window bool
		code   errors.Code
	}{
		{"valid layout", func(o *Options) {}, false, ""},
		{"valid window", func(o *Options) { o.Buffer = 3 }, true, ""},
		{"negative width", func(o *Options) { o.Width = -1 }, false, ""},
		{"negative min column width", func(o *Options) { o.MinColumnWidth = -10 }, false, errors.ErrCodeInvalidConfig},
		{"negative max columns", func(o *Options) { o.MaxColumns = -1 }, false, errors.ErrCodeInvalidConfig},
		{"negative estimate", func(o *Options) { o.EstimatedCardHeight = -5 }, false, errors.ErrCodeInvalidConfig},
		{"negative buffer", func(o *Options) { o.Buffer = -1 }, true, errors.ErrCodeInvalidConfig},
		{"negative viewport", func(o *Options) { o.ViewportHeight = -1 }, true, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)

			var err error
			if tt.window {
				err = opts.ValidateForWindow()
			} else {
				err = opts.ValidateForLayout()
			}

			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestWidthDegradesToZero(t *testing.T) {
	tests := []struct {
		name  string
		width float64
		want  float64
	}{
		{"zero", 0, 0},
		{"negative", -10, 0},
		{"nan", math.NaN(), 0},
		{"positive", 640, 640},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Width = tt.width
			if err := opts.ValidateForLayout(); err != nil {
				t.Fatalf("ValidateForLayout() error: %v", err)
			}
			if opts.Width != tt.want {
				t.Errorf("Width = %v, want %v", opts.Width, tt.want)
			}
		})
	}
}

func TestComputeLayoutZeroWidth(t *testing.T) {
	r := newTestRunner(t)
	opts := testOptions()
	opts.Width = 0

	l, err := r.ComputeLayout(context.Background(), squares(4), opts)
	if err != nil {
		t.Fatalf("ComputeLayout() error: %v", err)
	}
	if l.NumColumns != 1 || l.ContainerWidth != 0 {
		t.Errorf("layout = %d columns at width %v, want 1 at 0", l.NumColumns, l.ContainerWidth)
	}
	if l.Columns[0].Height != 0 {
		t.Errorf("column height = %v, want 0", l.Columns[0].Height)
	}
}

func TestValidateForLayoutIdempotent(t *testing.T) {
	opts := Options{}
	if err := opts.ValidateForLayout(); err != nil {
		t.Fatalf("first validation failed: %v", err)
	}
	first := opts
	if err := opts.ValidateForLayout(); err != nil {
		t.Fatalf("second validation failed: %v", err)
	}
	if opts.Config() != first.Config() || opts.Width != first.Width {
		t.Errorf("options changed on second call: %+v vs %+v", opts, first)
	}
}

func TestValidatePhotos(t *testing.T) {
	tests := []struct {
		name    string
		photos  []masonry.Photo
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", squares(3), false},
		{"empty id", []masonry.Photo{{Width: 1, Height: 1}}, true},
		{"zero width", []masonry.Photo{{ID: "a", Height: 1}}, true},
		{"duplicate", []masonry.Photo{{ID: "a", Width: 1, Height: 1}, {ID: "a", Width: 1, Height: 1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhotos(tt.photos)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePhotos() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidPhoto) {
				t.Errorf("wrong code: %v", err)
			}
		})
	}
}

func TestCollectionHash(t *testing.T) {
	a, err := CollectionHash(squares(3))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := CollectionHash(squares(3))
	if a != b {
		t.Error("hash should be deterministic")
	}

	reordered := squares(3)
	reordered[0], reordered[1] = reordered[1], reordered[0]
	c, _ := CollectionHash(reordered)
	if a == c {
		t.Error("hash should depend on order")
	}

	empty, _ := CollectionHash(nil)
	none, _ := CollectionHash([]masonry.Photo{})
	if empty != none {
		t.Error("nil and empty collections should hash alike")
	}
}

func TestComputeLayoutCaching(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	photos := squares(6)

	l, hit, err := r.ComputeLayoutWithCacheInfo(ctx, photos, testOptions())
	if err != nil {
		t.Fatalf("ComputeLayout() error: %v", err)
	}
	if hit {
		t.Error("first call should miss the cache")
	}
	if l.NumColumns != 3 || l.ColumnWidth != 100 || l.Len() != 6 {
		t.Errorf("layout = %d columns of %v with %d photos, want 3 of 100 with 6", l.NumColumns, l.ColumnWidth, l.Len())
	}
	if l.ContentHeight != 300 {
		t.Errorf("ContentHeight = %v, want 300", l.ContentHeight)
	}

	again, hit, err := r.ComputeLayoutWithCacheInfo(ctx, photos, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second call should hit the cache")
	}
	if again.NumColumns != l.NumColumns || again.Len() != l.Len() {
		t.Errorf("cached layout differs: %+v", again)
	}

	refresh := testOptions()
	refresh.Refresh = true
	if _, hit, _ := r.ComputeLayoutWithCacheInfo(ctx, photos, refresh); hit {
		t.Error("refresh should bypass the cache")
	}

	narrow := testOptions()
	narrow.Width = 150
	nl, hit, err := r.ComputeLayoutWithCacheInfo(ctx, photos, narrow)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("different width should miss the cache")
	}
	if nl.NumColumns != 1 {
		t.Errorf("NumColumns = %d, want 1", nl.NumColumns)
	}

	taller := testOptions()
	taller.EstimatedCardHeight = 500
	tl, hit, _ := r.ComputeLayoutWithCacheInfo(ctx, photos, taller)
	if hit {
		t.Error("different estimate should not reuse a stale content height")
	}
	if tl.ContentHeight != 1500 {
		t.Errorf("ContentHeight = %v, want 1500", tl.ContentHeight)
	}
}

func TestComputeLayoutRejectsInvalidPhotos(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	photos := []masonry.Photo{{ID: "a", Width: 0, Height: 10}}
	if _, err := r.ComputeLayout(context.Background(), photos, testOptions()); !errors.Is(err, errors.ErrCodeInvalidPhoto) {
		t.Errorf("error = %v, want INVALID_PHOTO", err)
	}
}

func TestComputeWindow(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	photos := squares(6)

	tests := []struct {
		name        string
		scroll      float64
		buffer      int
		wantVisible int
	}{
		{"first row only", 0, 0, 3},
		{"buffer reaches second row", 0, 1, 6},
		{"second row", 120, 0, 3},
		{"past the end", 1000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.ViewportHeight = 50
			opts.ScrollOffset = tt.scroll
			opts.Buffer = tt.buffer

			w, err := r.ComputeWindow(ctx, photos, opts)
			if err != nil {
				t.Fatalf("ComputeWindow() error: %v", err)
			}
			if got := w.Visible(); got != tt.wantVisible {
				t.Errorf("Visible() = %d, want %d", got, tt.wantVisible)
			}
			if w.Sentinel != w.ContentHeight || w.ContentHeight != 300 {
				t.Errorf("Sentinel = %v, ContentHeight = %v, want both 300", w.Sentinel, w.ContentHeight)
			}
			if w.Total != 6 {
				t.Errorf("Total = %d, want 6", w.Total)
			}
		})
	}
}

func TestExecute(t *testing.T) {
	r := newTestRunner(t)
	opts := testOptions()
	opts.ViewportHeight = 50

	res, err := r.Execute(context.Background(), squares(6), opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.CollectionHash == "" {
		t.Error("CollectionHash should be set")
	}
	if res.Stats.Photos != 6 || res.Stats.Columns != 3 || res.Stats.Visible != 3 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if res.CacheInfo.LayoutHit {
		t.Error("first Execute should miss")
	}

	res, err = r.Execute(context.Background(), squares(6), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CacheInfo.LayoutHit {
		t.Error("second Execute should hit")
	}
}

// countingSource counts Fetch calls.
type countingSource struct {
	source.Source
	calls int
}

func (s *countingSource) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	s.calls++
	return s.Source.Fetch(ctx, offset, limit)
}

func TestLoadCachesPages(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	photos := append(squares(3), masonry.Photo{ID: "bad", Width: 0, Height: 1})
	src := &countingSource{Source: source.NewMemory("mem", photos)}

	got, hit, err := r.LoadWithCacheInfo(ctx, src, false)
	if err != nil {
		t.Fatal(err)
	}
	if hit || src.calls != 1 {
		t.Errorf("first load: hit=%v calls=%d", hit, src.calls)
	}
	if len(got) != 3 {
		t.Errorf("Load() returned %d photos, want 3 (invalid dropped)", len(got))
	}

	_, hit, _ = r.LoadWithCacheInfo(ctx, src, false)
	if !hit || src.calls != 1 {
		t.Errorf("second load: hit=%v calls=%d", hit, src.calls)
	}

	_, hit, _ = r.LoadWithCacheInfo(ctx, src, true)
	if hit || src.calls != 2 {
		t.Errorf("refresh load: hit=%v calls=%d", hit, src.calls)
	}
}

func TestLoadSkipsCacheForUnnamedSources(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	src := &countingSource{Source: source.NewMemory("", squares(2))}

	for range 2 {
		if _, err := r.Load(ctx, src); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, want 2", src.calls)
	}
}

func TestFetcherDrivesPager(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)
	src := &countingSource{Source: source.NewMemory("mem", squares(5))}

	p := source.NewPagerFunc(r.Fetcher(src, false), 2)
	for !p.Exhausted() {
		if _, err := p.Next(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if len(p.Photos()) != 5 || src.calls != 3 {
		t.Errorf("photos = %d, calls = %d", len(p.Photos()), src.calls)
	}

	p = source.NewPagerFunc(r.Fetcher(src, false), 2)
	for !p.Exhausted() {
		if _, err := p.Next(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 3 {
		t.Errorf("second pass should be served from cache, calls = %d", src.calls)
	}
}
