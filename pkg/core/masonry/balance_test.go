package masonry

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func squares(n int, size float64) []Photo {
	photos := make([]Photo, n)
	for i := range photos {
		photos[i] = Photo{ID: fmt.Sprintf("p%d", i), Width: size, Height: size}
	}
	return photos
}

func randomPhotos(r *rand.Rand, n int) []Photo {
	photos := make([]Photo, n)
	for i := range photos {
		photos[i] = Photo{
			ID:     fmt.Sprintf("r%d", i),
			Width:  100 + r.Float64()*1900,
			Height: 100 + r.Float64()*1900,
		}
	}
	return photos
}

func TestColumnCount(t *testing.T) {
	cfg := Config{MinColumnWidth: 250, MaxColumns: 5, EstimatedCardHeight: 300}

	tests := []struct {
		name  string
		width float64
		want  int
	}{
		{"zero width", 0, 1},
		{"negative width", -100, 1},
		{"nan width", math.NaN(), 1},
		{"narrower than one column", 200, 1},
		{"exactly one column", 250, 1},
		{"just under two", 499, 1},
		{"a hair under two", 499.99999999, 1},
		{"exactly two", 500, 2},
		{"three", 800, 3},
		{"four", 1000, 4},
		{"at max", 1250, 5},
		{"wide", 1920, 5},
		{"very wide", 10000, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColumnCount(tt.width, cfg); got != tt.want {
				t.Errorf("ColumnCount(%v) = %d, want %d", tt.width, got, tt.want)
			}
		})
	}
}

func TestColumnCountNeverNarrowerThanMinimum(t *testing.T) {
	cfg := Config{MinColumnWidth: 100, MaxColumns: 5, EstimatedCardHeight: 300}
	w := 299.99999999

	n := ColumnCount(w, cfg)
	if n != 2 {
		t.Fatalf("ColumnCount(%v) = %d, want 2", w, n)
	}
	if got := w / float64(n); got < cfg.MinColumnWidth {
		t.Errorf("column width = %v, below minimum %v", got, cfg.MinColumnWidth)
	}
}

func TestColumnCountBound(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		cfg := Config{
			MinColumnWidth:      1 + r.Float64()*500,
			MaxColumns:          1 + r.Intn(12),
			EstimatedCardHeight: 300,
		}
		w := r.Float64() * 8000
		n := ColumnCount(w, cfg)
		if n < 1 || n > cfg.MaxColumns {
			t.Fatalf("ColumnCount(%v, %+v) = %d, outside [1, %d]", w, cfg, n, cfg.MaxColumns)
		}
		if w > 0 && n > 1 && w/float64(n) < cfg.MinColumnWidth {
			t.Fatalf("ColumnCount(%v, %+v) = %d, columns narrower than minimum", w, cfg, n)
		}
	}
}

func TestBalanceSquares(t *testing.T) {
	cfg := Config{MinColumnWidth: 100, MaxColumns: 5, EstimatedCardHeight: 300}
	l := Balance(squares(6, 100), 300, cfg)

	if l.NumColumns != 3 {
		t.Fatalf("NumColumns = %d, want 3", l.NumColumns)
	}
	if l.ColumnWidth != 100 {
		t.Errorf("ColumnWidth = %v, want 100", l.ColumnWidth)
	}
	for i, col := range l.Columns {
		if len(col.Photos) != 2 {
			t.Errorf("column %d has %d photos, want 2", i, len(col.Photos))
		}
		if col.Height != 200 {
			t.Errorf("column %d height = %v, want 200", i, col.Height)
		}
	}
}

func TestBalanceTieBreak(t *testing.T) {
	cfg := Config{MinColumnWidth: 100, MaxColumns: 3, EstimatedCardHeight: 300}
	l := Balance(squares(4, 50), 300, cfg)

	want := [][]string{{"p0", "p3"}, {"p1"}, {"p2"}}
	for i, col := range l.Columns {
		var got []string
		for _, p := range col.Photos {
			got = append(got, p.ID)
		}
		if fmt.Sprint(got) != fmt.Sprint(want[i]) {
			t.Errorf("column %d = %v, want %v", i, got, want[i])
		}
	}
}

func TestBalanceShortestColumn(t *testing.T) {
	cfg := Config{MinColumnWidth: 100, MaxColumns: 2, EstimatedCardHeight: 300}
	photos := []Photo{
		{ID: "tall", Width: 100, Height: 300},
		{ID: "a", Width: 100, Height: 100},
		{ID: "b", Width: 100, Height: 100},
		{ID: "c", Width: 100, Height: 100},
	}
	l := Balance(photos, 200, cfg)

	if got := len(l.Columns[0].Photos); got != 1 {
		t.Errorf("column 0 has %d photos, want 1", got)
	}
	if got := len(l.Columns[1].Photos); got != 3 {
		t.Errorf("column 1 has %d photos, want 3", got)
	}
	if l.Columns[0].Height != 300 || l.Columns[1].Height != 300 {
		t.Errorf("heights = %v, %v, want 300, 300", l.Columns[0].Height, l.Columns[1].Height)
	}
}

func TestBalanceEdgeCases(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("empty collection", func(t *testing.T) {
		l := Balance(nil, 1280, cfg)
		if l.NumColumns != 5 || len(l.Columns) != 5 {
			t.Fatalf("NumColumns = %d, len(Columns) = %d, want 5", l.NumColumns, len(l.Columns))
		}
		for i, col := range l.Columns {
			if len(col.Photos) != 0 || col.Height != 0 {
				t.Errorf("column %d = %+v, want empty", i, col)
			}
		}
	})

	t.Run("zero width", func(t *testing.T) {
		l := Balance(squares(4, 100), 0, cfg)
		if l.NumColumns != 1 {
			t.Fatalf("NumColumns = %d, want 1", l.NumColumns)
		}
		if got := len(l.Columns[0].Photos); got != 4 {
			t.Errorf("column 0 has %d photos, want 4", got)
		}
		if l.Columns[0].Height != 0 {
			t.Errorf("height = %v, want 0", l.Columns[0].Height)
		}
	})

	t.Run("negative width", func(t *testing.T) {
		l := Balance(squares(2, 100), -50, cfg)
		if l.NumColumns != 1 || l.ContainerWidth != 0 {
			t.Errorf("got %d columns at width %v, want 1 at 0", l.NumColumns, l.ContainerWidth)
		}
	})
}

func TestBalanceCoverage(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	cfg := DefaultConfig()

	for trial := 0; trial < 50; trial++ {
		photos := randomPhotos(r, 1+r.Intn(300))
		width := 1 + r.Float64()*3000
		l := Balance(photos, width, cfg)

		seen := make(map[string]int)
		for _, col := range l.Columns {
			for _, p := range col.Photos {
				seen[p.ID]++
			}
		}
		if len(seen) != len(photos) {
			t.Fatalf("trial %d: %d distinct photos placed, want %d", trial, len(seen), len(photos))
		}
		for id, n := range seen {
			if n != 1 {
				t.Fatalf("trial %d: photo %s placed %d times", trial, id, n)
			}
		}
		if l.Len() != len(photos) {
			t.Fatalf("trial %d: Len() = %d, want %d", trial, l.Len(), len(photos))
		}
	}
}

func TestBalanceHeightsMatchPlacement(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	l := Balance(randomPhotos(r, 200), 1337, DefaultConfig())

	for i, col := range l.Columns {
		items := Place(col, l.ColumnWidth)
		var sum float64
		for _, it := range items {
			sum += it.Height
		}
		if math.Abs(sum-col.Height) > 1e-6 {
			t.Errorf("column %d: placed height %v, balanced height %v", i, sum, col.Height)
		}
	}
}

func TestBalanceStableUnderAppend(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	photos := randomPhotos(r, 120)
	cfg := DefaultConfig()

	before := Balance(photos[:80], 1100, cfg)
	after := Balance(photos, 1100, cfg)

	for i := range before.Columns {
		prefix := after.Columns[i].Photos[:len(before.Columns[i].Photos)]
		for j, p := range before.Columns[i].Photos {
			if prefix[j].ID != p.ID {
				t.Fatalf("column %d position %d: %s moved to %s after append", i, j, p.ID, prefix[j].ID)
			}
		}
	}
}
