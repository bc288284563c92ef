package viewport

import (
	"sort"
	"sync"

	"github.com/matzehuels/masonry/pkg/errors"
)

// DefaultThreshold is the intersection threshold used when none is given.
const DefaultThreshold = 0.1

// Handle identifies one attachment to a BoundaryTrigger.
type Handle uint64

// BoundaryTrigger is a near-bottom detection mechanism.
//
// Attach registers cb to be invoked once per crossing of the sentinel into
// the detection zone. Detach removes the registration; it is idempotent and
// accepts unknown handles.
type BoundaryTrigger interface {
	Attach(threshold float64, cb func()) Handle
	Detach(h Handle)
}

// GeometryObserver is implemented by triggers that derive crossings from the
// sentinel geometry. The coordinator calls Observe after every re-window.
type GeometryObserver interface {
	Observe(g Geometry)
}

// Geometry is the scroll state relevant to boundary detection.
type Geometry struct {
	ScrollOffset   float64
	ViewportHeight float64
	SentinelTop    float64
}

// ValidateThreshold rejects thresholds outside [0, 1].
func ValidateThreshold(threshold float64) error {
	if !(threshold >= 0 && threshold <= 1) {
		return errors.New(errors.ErrCodeInvalidConfig, "boundary threshold must be within [0, 1], got %v", threshold)
	}
	return nil
}

type attachment struct {
	threshold float64
	cb        func()
	inside    bool
}

// registry is the attachment bookkeeping shared by both triggers.
type registry struct {
	mu   sync.Mutex
	next Handle
	subs map[Handle]*attachment
}

func (r *registry) attach(threshold float64, cb func()) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[Handle]*attachment)
	}
	r.next++
	r.subs[r.next] = &attachment{threshold: threshold, cb: cb}
	return r.next
}

func (r *registry) detach(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, h)
}

// sorted returns handles in attachment order so callbacks run predictably.
func (r *registry) sorted() []Handle {
	hs := make([]Handle, 0, len(r.subs))
	for h := range r.subs {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// =============================================================================
// SignalTrigger
// =============================================================================

// SignalTrigger is fired by an external visibility mechanism. Each call to
// Signal counts as one crossing and reaches every attached callback once.
// The external mechanism is responsible for signalling once per crossing.
type SignalTrigger struct {
	reg registry
}

// NewSignalTrigger creates a trigger with no attachments.
func NewSignalTrigger() *SignalTrigger {
	return &SignalTrigger{}
}

// Attach implements BoundaryTrigger. The threshold is recorded for the
// external mechanism; see Threshold.
func (t *SignalTrigger) Attach(threshold float64, cb func()) Handle {
	return t.reg.attach(threshold, cb)
}

// Detach implements BoundaryTrigger.
func (t *SignalTrigger) Detach(h Handle) {
	t.reg.detach(h)
}

// Threshold returns the smallest threshold among current attachments, and
// false when nothing is attached.
func (t *SignalTrigger) Threshold() (float64, bool) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	found := false
	var th float64
	for _, a := range t.reg.subs {
		if !found || a.threshold < th {
			th, found = a.threshold, true
		}
	}
	return th, found
}

// Signal reports one crossing. Callbacks run on the calling goroutine,
// outside the trigger's lock.
func (t *SignalTrigger) Signal() {
	t.reg.mu.Lock()
	cbs := make([]func(), 0, len(t.reg.subs))
	for _, h := range t.reg.sorted() {
		cbs = append(cbs, t.reg.subs[h].cb)
	}
	t.reg.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// =============================================================================
// ScrollTrigger
// =============================================================================

// ScrollTrigger detects crossings from scroll geometry.
//
// An attachment with threshold th considers the sentinel inside its zone when
// the sentinel's top lies within th*ViewportHeight below the bottom edge of
// the viewport (or anywhere above it). The callback fires on each transition
// from outside to inside, and the attachment re-arms only once the sentinel
// has left the zone again. Observations with a non-positive viewport height
// are ignored.
type ScrollTrigger struct {
	reg registry
}

// NewScrollTrigger creates a trigger with no attachments.
func NewScrollTrigger() *ScrollTrigger {
	return &ScrollTrigger{}
}

// Attach implements BoundaryTrigger. New attachments start outside the zone.
func (t *ScrollTrigger) Attach(threshold float64, cb func()) Handle {
	return t.reg.attach(threshold, cb)
}

// Detach implements BoundaryTrigger.
func (t *ScrollTrigger) Detach(h Handle) {
	t.reg.detach(h)
}

// Observe implements GeometryObserver.
func (t *ScrollTrigger) Observe(g Geometry) {
	if !(g.ViewportHeight > 0) {
		return
	}
	bottom := g.ScrollOffset + g.ViewportHeight

	t.reg.mu.Lock()
	var fire []func()
	for _, h := range t.reg.sorted() {
		a := t.reg.subs[h]
		inside := g.SentinelTop <= bottom+a.threshold*g.ViewportHeight
		if inside && !a.inside {
			fire = append(fire, a.cb)
		}
		a.inside = inside
	}
	t.reg.mu.Unlock()

	for _, cb := range fire {
		cb()
	}
}
