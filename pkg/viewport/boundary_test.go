package viewport

import (
	"sync"
	"testing"

	"github.com/matzehuels/masonry/pkg/errors"
)

func TestValidateThreshold(t *testing.T) {
	tests := []struct {
		threshold float64
		wantErr   bool
	}{
		{0, false},
		{0.1, false},
		{1, false},
		{-0.01, true},
		{1.01, true},
	}

	for _, tt := range tests {
		err := ValidateThreshold(tt.threshold)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateThreshold(%v) error = %v, wantErr %v", tt.threshold, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("ValidateThreshold(%v) code = %s", tt.threshold, errors.GetCode(err))
		}
	}
}

func TestSignalTrigger(t *testing.T) {
	tr := NewSignalTrigger()

	var order []string
	a := tr.Attach(0.2, func() { order = append(order, "a") })
	tr.Attach(0.1, func() { order = append(order, "b") })

	tr.Signal()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("callbacks = %v, want [a b]", order)
	}
	if th, ok := tr.Threshold(); !ok || th != 0.1 {
		t.Errorf("Threshold() = (%v, %v), want (0.1, true)", th, ok)
	}

	tr.Detach(a)
	tr.Detach(a)
	tr.Detach(Handle(999))

	order = nil
	tr.Signal()
	if len(order) != 1 || order[0] != "b" {
		t.Errorf("callbacks after Detach = %v, want [b]", order)
	}
}

func TestSignalTriggerWithoutAttachments(t *testing.T) {
	tr := NewSignalTrigger()
	tr.Signal()
	tr.Detach(Handle(1))
	if _, ok := tr.Threshold(); ok {
		t.Error("Threshold() reported an attachment on an empty trigger")
	}
}

func TestSignalTriggerReentrant(t *testing.T) {
	tr := NewSignalTrigger()
	var h Handle
	calls := 0
	h = tr.Attach(0.1, func() {
		calls++
		tr.Detach(h)
	})

	tr.Signal()
	tr.Signal()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestScrollTrigger(t *testing.T) {
	tests := []struct {
		name  string
		steps []Geometry
		want  int
	}{
		{
			name: "never reaches zone",
			steps: []Geometry{
				{ScrollOffset: 0, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1000, ViewportHeight: 500, SentinelTop: 2000},
			},
			want: 0,
		},
		{
			name: "enters zone once",
			steps: []Geometry{
				{ScrollOffset: 0, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1460, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1500, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1700, ViewportHeight: 500, SentinelTop: 2000},
			},
			want: 1,
		},
		{
			name: "leaves and re-enters",
			steps: []Geometry{
				{ScrollOffset: 1500, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 500, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1500, ViewportHeight: 500, SentinelTop: 2000},
			},
			want: 2,
		},
		{
			name: "short content fires immediately",
			steps: []Geometry{
				{ScrollOffset: 0, ViewportHeight: 800, SentinelTop: 600},
				{ScrollOffset: 0, ViewportHeight: 800, SentinelTop: 600},
			},
			want: 1,
		},
		{
			name: "sentinel moves away after load",
			steps: []Geometry{
				{ScrollOffset: 1500, ViewportHeight: 500, SentinelTop: 2000},
				{ScrollOffset: 1500, ViewportHeight: 500, SentinelTop: 4000},
				{ScrollOffset: 3500, ViewportHeight: 500, SentinelTop: 4000},
			},
			want: 2,
		},
		{
			name: "unmeasured viewport ignored",
			steps: []Geometry{
				{ScrollOffset: 0, ViewportHeight: 0, SentinelTop: 0},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewScrollTrigger()
			calls := 0
			tr.Attach(0.1, func() { calls++ })
			for _, g := range tt.steps {
				tr.Observe(g)
			}
			if calls != tt.want {
				t.Errorf("calls = %d, want %d", calls, tt.want)
			}
		})
	}
}

func TestScrollTriggerThresholdZone(t *testing.T) {
	tr := NewScrollTrigger()
	near, far := 0, 0
	tr.Attach(0, func() { near++ })
	tr.Attach(1, func() { far++ })

	// Viewport bottom at 1000; sentinel 400 below it.
	tr.Observe(Geometry{ScrollOffset: 500, ViewportHeight: 500, SentinelTop: 1400})
	if near != 0 || far != 1 {
		t.Errorf("near, far = %d, %d, want 0, 1", near, far)
	}
}

func TestScrollTriggerDetach(t *testing.T) {
	tr := NewScrollTrigger()
	calls := 0
	h := tr.Attach(0.1, func() { calls++ })
	tr.Detach(h)
	tr.Detach(h)

	tr.Observe(Geometry{ScrollOffset: 0, ViewportHeight: 800, SentinelTop: 100})
	if calls != 0 {
		t.Errorf("calls after Detach = %d, want 0", calls)
	}
}

func TestSignalTriggerConcurrentAttach(t *testing.T) {
	tr := NewSignalTrigger()
	var wg sync.WaitGroup
	var mu sync.Mutex
	calls := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Attach(0.1, func() {
				mu.Lock()
				calls++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	tr.Signal()
	if calls != 16 {
		t.Errorf("calls = %d, want 16", calls)
	}
}
