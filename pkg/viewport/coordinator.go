package viewport

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/observability"
)

// DefaultBuffer is the window margin, in estimated cards, used when none is
// given.
const DefaultBuffer = 3

// Stats counts the recomputations a coordinator performed.
type Stats struct {
	Rebalances int
	Rewindows  int
	Renders    int
	Boundaries int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the layout constants.
func WithConfig(cfg masonry.Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithBuffer sets the window margin in estimated card heights.
func WithBuffer(n int) Option {
	return func(c *Coordinator) { c.buffer = n }
}

// WithLogger sets the logger. Recomputations are logged at debug level.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext sets the context passed to observability hooks.
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// WithOnActivate sets the callback invoked by Activate.
func WithOnActivate(fn func(masonry.Photo)) Option {
	return func(c *Coordinator) { c.onActivate = fn }
}

// WithOnBoundary sets the callback invoked once per boundary crossing.
func WithOnBoundary(fn func()) Option {
	return func(c *Coordinator) { c.onBoundary = fn }
}

// WithRenderer sets the callback that receives snapshots. It is called only
// when a handler produced a snapshot that differs from the previous one.
func WithRenderer(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.render = fn }
}

// WithBoundaryTrigger attaches the coordinator to t.
func WithBoundaryTrigger(t BoundaryTrigger) Option {
	return func(c *Coordinator) { c.trigger = t }
}

// WithThreshold sets the intersection threshold passed to the boundary
// trigger.
func WithThreshold(th float64) Option {
	return func(c *Coordinator) { c.threshold = th }
}

// Coordinator holds the current balance and viewport of one scroll container.
type Coordinator struct {
	cfg       masonry.Config
	buffer    int
	threshold float64
	logger    *log.Logger
	ctx       context.Context

	onActivate func(masonry.Photo)
	onBoundary func()
	render     func(Snapshot)

	trigger BoundaryTrigger
	handle  Handle
	subs    []Subscription
	closed  bool

	photos   []masonry.Photo
	layout   masonry.Layout
	measured bool

	scroll         float64
	viewportHeight float64

	current  Snapshot
	rendered *Snapshot
	stats    Stats
}

// New creates a coordinator for photos. The collection is balanced at width
// zero until the first container measurement arrives, so nothing is visible
// before then.
//
// Configuration errors are reported with code INVALID_CONFIG.
func New(photos []masonry.Photo, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:       masonry.DefaultConfig(),
		buffer:    DefaultBuffer,
		threshold: DefaultThreshold,
		logger:    log.NewWithOptions(io.Discard, log.Options{}),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if c.buffer < 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "buffer must be >= 0, got %d", c.buffer)
	}
	if err := ValidateThreshold(c.threshold); err != nil {
		return nil, err
	}

	c.photos = slices.Clone(photos)
	c.rebalance(0)
	c.rewindow()

	if c.trigger != nil {
		c.handle = c.trigger.Attach(c.threshold, c.boundary)
	}
	return c, nil
}

// Mount subscribes the coordinator to src. Resize events drive
// OnContainerWidthChanged, scroll events drive OnScroll. Subscriptions are
// released by Close.
func (c *Coordinator) Mount(src EventSource) error {
	if c.closed {
		return errors.New(errors.ErrCodeInvalidInput, "coordinator is closed")
	}
	c.subs = append(c.subs,
		src.OnResize(c.OnContainerWidthChanged),
		src.OnScroll(c.OnScroll),
	)
	return nil
}

// Close releases event subscriptions and the boundary attachment. It is
// idempotent. Handlers called after Close still recompute, but no boundary
// callback is forwarded anymore.
func (c *Coordinator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, s := range c.subs {
		s.Detach()
	}
	c.subs = nil
	if c.trigger != nil {
		c.trigger.Detach(c.handle)
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

// OnContainerWidthChanged rebalances for a new container width. Widths that
// are not positive count as zero. Repeating the current width is a no-op,
// except for the first measurement which always rebalances.
func (c *Coordinator) OnContainerWidthChanged(width float64) {
	if !(width > 0) {
		width = 0
	}
	if c.measured && width == c.layout.ContainerWidth {
		return
	}
	c.measured = true
	c.rebalance(width)
	c.rewindow()
	c.publish()
}

// OnCollectionChanged replaces the photo collection. An identical collection
// is a no-op. When only display fields changed (same IDs and dimensions in
// the same order) the columns keep their assignment and the new photos are
// re-windowed without a rebalance.
func (c *Coordinator) OnCollectionChanged(photos []masonry.Photo) {
	if slices.Equal(c.photos, photos) {
		return
	}
	sameGeometry := sameCollection(c.photos, photos)
	c.photos = slices.Clone(photos)
	if sameGeometry {
		c.layout = withPhotos(c.layout, c.photos)
	} else {
		c.rebalance(c.layout.ContainerWidth)
	}
	c.rewindow()
	c.publish()
}

// OnScrollChanged re-windows for a new scroll offset.
func (c *Coordinator) OnScrollChanged(offset float64) {
	c.scroll = offset
	c.rewindow()
	c.publish()
}

// OnViewportSizeChanged re-windows for a new viewport height.
func (c *Coordinator) OnViewportSizeChanged(height float64) {
	c.viewportHeight = max(height, 0)
	c.rewindow()
	c.publish()
}

// OnScroll re-windows for a new scroll offset and viewport height at once.
func (c *Coordinator) OnScroll(offset, viewportHeight float64) {
	c.scroll = offset
	c.viewportHeight = max(viewportHeight, 0)
	c.rewindow()
	c.publish()
}

// Activate invokes the activation callback with the materialized photo of
// the given ID. It reports false when no such photo is currently rendered.
func (c *Coordinator) Activate(id string) bool {
	it, ok := c.current.Find(id)
	if !ok {
		return false
	}
	if c.onActivate != nil {
		c.onActivate(it.Item)
	}
	return true
}

// =============================================================================
// Accessors
// =============================================================================

// Snapshot returns the current renderable state.
func (c *Coordinator) Snapshot() Snapshot { return c.current }

// Layout returns the current balance.
func (c *Coordinator) Layout() masonry.Layout { return c.layout }

// Photos returns the current collection.
func (c *Coordinator) Photos() []masonry.Photo { return slices.Clone(c.photos) }

// Measured reports whether a container width has been received.
func (c *Coordinator) Measured() bool { return c.measured }

// Stats returns recomputation counters.
func (c *Coordinator) Stats() Stats { return c.stats }

// Config returns the layout constants in use.
func (c *Coordinator) Config() masonry.Config { return c.cfg }

// =============================================================================
// Internals
// =============================================================================

func (c *Coordinator) rebalance(width float64) {
	start := time.Now()
	c.layout = masonry.Balance(c.photos, width, c.cfg)
	c.stats.Rebalances++

	elapsed := time.Since(start)
	observability.Layout().OnRebalance(c.ctx, len(c.photos), c.layout.NumColumns, elapsed)
	c.logger.Debug("rebalanced",
		"photos", len(c.photos),
		"columns", c.layout.NumColumns,
		"width", width,
		"duration", elapsed)
}

func (c *Coordinator) rewindow() {
	start := time.Now()
	vp := masonry.Viewport{
		ScrollOffset: c.scroll,
		Height:       c.viewportHeight,
		Buffer:       c.buffer,
	}
	est := c.cfg.EstimatedCardHeight

	cols := make([]ColumnView, len(c.layout.Columns))
	for i, col := range c.layout.Columns {
		cols[i] = ColumnView{
			Index:  i,
			Height: col.Height,
			Items:  masonry.Window(col, c.layout.ColumnWidth, vp, est),
		}
	}
	content := c.layout.ContentHeight(est)
	c.current = Snapshot{
		Columns:        cols,
		NumColumns:     c.layout.NumColumns,
		ContainerWidth: c.layout.ContainerWidth,
		ColumnWidth:    c.layout.ColumnWidth,
		ScrollOffset:   c.scroll,
		ViewportHeight: c.viewportHeight,
		ContentHeight:  content,
		Sentinel:       content,
		Total:          len(c.photos),
	}
	c.stats.Rewindows++
	observability.Layout().OnRewindow(c.ctx, c.current.Visible(), time.Since(start))
}

// publish hands the current snapshot to the renderer if it changed, then
// lets a geometry-driven trigger look at the new sentinel position. The
// trigger may call back into the coordinator.
func (c *Coordinator) publish() {
	if c.render != nil && (c.rendered == nil || !c.rendered.Equal(c.current)) {
		snap := c.current
		c.rendered = &snap
		c.stats.Renders++
		c.render(snap)
	}

	if obs, ok := c.trigger.(GeometryObserver); ok && !c.closed && c.measured {
		obs.Observe(Geometry{
			ScrollOffset:   c.scroll,
			ViewportHeight: c.viewportHeight,
			SentinelTop:    c.current.Sentinel,
		})
	}
}

func (c *Coordinator) boundary() {
	if c.closed {
		return
	}
	c.stats.Boundaries++
	observability.Layout().OnBoundary(c.ctx)
	c.logger.Debug("boundary reached", "photos", len(c.photos))
	if c.onBoundary != nil {
		c.onBoundary()
	}
}

func sameCollection(a, b []masonry.Photo) bool {
	return slices.EqualFunc(a, b, masonry.Photo.SameDimensions)
}

// withPhotos returns l with every placed photo replaced by its counterpart
// in photos. photos must match the balanced collection in IDs and
// dimensions, so column heights stay valid.
func withPhotos(l masonry.Layout, photos []masonry.Photo) masonry.Layout {
	byID := make(map[string][]masonry.Photo, len(photos))
	for _, p := range photos {
		byID[p.ID] = append(byID[p.ID], p)
	}

	cols := make([]masonry.Column, len(l.Columns))
	for i, col := range l.Columns {
		placed := make([]masonry.Photo, len(col.Photos))
		for j, p := range col.Photos {
			q := byID[p.ID]
			placed[j], byID[p.ID] = q[0], q[1:]
		}
		cols[i] = masonry.Column{Photos: placed, Height: col.Height}
	}
	l.Columns = cols
	return l
}
