package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/layout"
	"github.com/matzehuels/masonry/pkg/observability"
	"github.com/matzehuels/masonry/pkg/source"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// LayoutTTL overrides cache.TTLLayout when positive.
	LayoutTTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete layout → window pipeline with caching.
func (r *Runner) Execute(ctx context.Context, photos []masonry.Photo, opts Options) (*Result, error) {
	if err := opts.ValidateForWindow(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{}

	// Stage 1: Layout
	layoutStart := time.Now()
	hash, err := CollectionHash(photos)
	if err != nil {
		return nil, fmt.Errorf("hash collection: %w", err)
	}
	result.CollectionHash = hash

	l, layoutHit, err := r.ComputeLayoutWithCacheInfo(ctx, photos, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.Stats.Photos = l.Len()
	result.Stats.Columns = l.NumColumns
	result.CacheInfo.LayoutHit = layoutHit

	opts.Logger.Info("computed layout",
		"photos", l.Len(),
		"columns", l.NumColumns,
		"cached", layoutHit,
		"duration", result.Stats.LayoutTime)

	// Stage 2: Window
	windowStart := time.Now()
	result.Window = r.WindowLayout(ctx, l, opts)
	result.Stats.WindowTime = time.Since(windowStart)
	result.Stats.Visible = result.Window.Visible()

	opts.Logger.Info("computed window",
		"visible", result.Stats.Visible,
		"scroll", opts.ScrollOffset,
		"duration", result.Stats.WindowTime)

	return result, nil
}

// ComputeLayoutWithCacheInfo balances photos into columns with caching and
// returns cache hit info.
func (r *Runner) ComputeLayoutWithCacheInfo(ctx context.Context, photos []masonry.Photo, opts Options) (layout.Layout, bool, error) {
	if err := opts.ValidateForLayout(); err != nil {
		return layout.Layout{}, false, err
	}
	r.applyLogger(&opts)

	if err := ValidatePhotos(photos); err != nil {
		return layout.Layout{}, false, err
	}

	// Compute cache key
	hash, err := CollectionHash(photos)
	if err != nil {
		return layout.Layout{}, false, err
	}
	cacheKey := r.Keyer.LayoutKey(hash, opts.LayoutKeyOpts())
	cfg := opts.Config()

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			cached, err := layout.UnmarshalLayout(data)
			if err == nil && cached.EstimatedCardHeight == cfg.EstimatedCardHeight {
				observability.Cache().OnCacheHit(ctx, cacheKey)
				return cached, true, nil // Cache hit
			}
			// If deserialization fails, fall through to recompute
			opts.Logger.Debug("discarding cached layout", "key", cacheKey, "error", err)
		}
		observability.Cache().OnCacheMiss(ctx, cacheKey)
	}

	// Balance
	start := time.Now()
	balanced := masonry.Balance(photos, opts.Width, cfg)
	observability.Layout().OnRebalance(ctx, len(photos), balanced.NumColumns, time.Since(start))
	l := layout.Export(balanced, cfg)

	// Cache the result
	if data, err := layout.MarshalLayout(l); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, r.layoutTTL()); err != nil {
			opts.Logger.Warn("cache write failed", "key", cacheKey, "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cacheKey, len(data))
		}
	}

	return l, false, nil // Cache miss
}

// ComputeLayout is a convenience wrapper that calls ComputeLayoutWithCacheInfo and discards the cache hit info.
func (r *Runner) ComputeLayout(ctx context.Context, photos []masonry.Photo, opts Options) (layout.Layout, error) {
	l, _, err := r.ComputeLayoutWithCacheInfo(ctx, photos, opts)
	return l, err
}

// ComputeWindow balances photos (cached) and selects the items near the
// viewport described by opts.
func (r *Runner) ComputeWindow(ctx context.Context, photos []masonry.Photo, opts Options) (layout.Window, error) {
	if err := opts.ValidateForWindow(); err != nil {
		return layout.Window{}, err
	}
	l, err := r.ComputeLayout(ctx, photos, opts)
	if err != nil {
		return layout.Window{}, err
	}
	return r.WindowLayout(ctx, l, opts), nil
}

// WindowLayout selects the items of an already computed layout near the
// viewport described by opts. Windows are cheap and never cached.
func (r *Runner) WindowLayout(ctx context.Context, l layout.Layout, opts Options) layout.Window {
	start := time.Now()
	w := layout.ExportWindow(layout.Parse(l), opts.Viewport(), l.Config())
	observability.Layout().OnRewindow(ctx, w.Visible(), time.Since(start))
	return w
}

// FetchWithCacheInfo reads one raw page of photos from src with caching and
// returns cache hit info. Sources whose Name is empty are never cached.
func (r *Runner) FetchWithCacheInfo(ctx context.Context, src source.Source, offset, limit int, refresh bool) ([]masonry.Photo, bool, error) {
	name := src.Name()
	cacheKey := r.Keyer.CollectionKey(name, offset, limit)

	if name != "" && !refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var photos []masonry.Photo
			if err := json.Unmarshal(data, &photos); err == nil {
				observability.Cache().OnCacheHit(ctx, cacheKey)
				return photos, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, cacheKey)
	}

	photos, err := src.Fetch(ctx, offset, limit)
	if err != nil {
		return nil, false, err
	}

	if name != "" {
		if data, err := json.Marshal(photos); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLCollection); err == nil {
				observability.Cache().OnCacheSet(ctx, cacheKey, len(data))
			}
		}
	}

	return photos, false, nil
}

// Fetcher returns a cached page loader for src, suitable for
// [source.NewPagerFunc].
func (r *Runner) Fetcher(src source.Source, refresh bool) source.FetchFunc {
	return func(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
		photos, _, err := r.FetchWithCacheInfo(ctx, src, offset, limit, refresh)
		return photos, err
	}
}

// LoadWithCacheInfo reads every photo of src (cached), drops the ones the
// layout engine cannot place, and returns cache hit info. Dropped photos are
// logged as warnings.
func (r *Runner) LoadWithCacheInfo(ctx context.Context, src source.Source, refresh bool) ([]masonry.Photo, bool, error) {
	photos, hit, err := r.FetchWithCacheInfo(ctx, src, 0, 0, refresh)
	if err != nil {
		return nil, false, err
	}

	kept, rejected := source.Sanitize(photos)
	for _, rej := range rejected {
		r.Logger.Warn("skipping photo", "index", rej.Index, "id", rej.Photo.ID, "reason", errors.UserMessage(rej.Err))
	}
	return kept, hit, nil
}

// Load is a convenience wrapper that calls LoadWithCacheInfo and discards the cache hit info.
func (r *Runner) Load(ctx context.Context, src source.Source) ([]masonry.Photo, error) {
	photos, _, err := r.LoadWithCacheInfo(ctx, src, false)
	return photos, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) layoutTTL() time.Duration {
	if r.LayoutTTL > 0 {
		return r.LayoutTTL
	}
	return cache.TTLLayout
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// CollectionHash returns the content hash of a photo collection.
// Order matters: the same photos in a different order balance differently.
func CollectionHash(photos []masonry.Photo) (string, error) {
	if photos == nil {
		photos = []masonry.Photo{}
	}
	return cache.HashJSON(photos)
}

// ValidatePhotos checks every photo's ID and dimensions and rejects
// duplicate IDs.
func ValidatePhotos(photos []masonry.Photo) error {
	seen := make(map[string]int, len(photos))
	for i, p := range photos {
		if err := errors.ValidatePhotoID(p.ID); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPhoto, err, "photo %d", i)
		}
		if err := errors.ValidateDimensions(p.Width, p.Height); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPhoto, err, "photo %q", p.ID)
		}
		if j, dup := seen[p.ID]; dup {
			return errors.New(errors.ErrCodeInvalidPhoto, "duplicate photo id %q at %d and %d", p.ID, j, i)
		}
		seen[p.ID] = i
	}
	return nil
}
