package palette

import (
	"reflect"
	"strings"
	"testing"
)

func TestPaletteDeterministic(t *testing.T) {
	first := Strings(Palette(5))
	second := Strings(Palette(5))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Palette(5) differs between calls: %v vs %v", first, second)
	}
	if len(first) != 5 {
		t.Errorf("expected 5 colors, got %d", len(first))
	}
}

func TestPaletteDistinct(t *testing.T) {
	for _, n := range []int{15, 20, 60} {
		colors := Strings(Palette(n))
		if len(colors) != n {
			t.Fatalf("Palette(%d) returned %d colors", n, len(colors))
		}
		seen := make(map[string]bool)
		for _, c := range colors {
			if seen[c] {
				t.Errorf("Palette(%d) has duplicate color %s", n, c)
			}
			seen[c] = true
		}
	}
}

func TestPaletteHueRotation(t *testing.T) {
	colors := Palette(17)

	if colors[14].HSL {
		t.Error("color 14 should come from the curated list")
	}
	tests := []struct {
		index int
		hue   float64
	}{
		{15, 262.5}, // 15 * 137.5 = 2062.5 mod 360
		{16, 40},    // 16 * 137.5 = 2200 mod 360
	}
	for _, tt := range tests {
		c := colors[tt.index]
		if !c.HSL {
			t.Errorf("color %d should be generated", tt.index)
		}
		if c.Hue != tt.hue {
			t.Errorf("color %d hue = %v, want %v", tt.index, c.Hue, tt.hue)
		}
	}
}

func TestPaletteEmpty(t *testing.T) {
	if got := Palette(0); got != nil {
		t.Errorf("Palette(0) = %v, want nil", got)
	}
}

func TestTransparent(t *testing.T) {
	tests := []struct {
		index, total int
		want         string
	}{
		{0, 3, "rgba(54, 162, 235, 0.2)"},
		{3, 3, "rgba(54, 162, 235, 0.2)"},
		{15, 20, "hsla(262.5, 70%, 50%, 0.2)"},
	}
	for _, tt := range tests {
		got := Transparent(tt.index, tt.total).String()
		if got != tt.want {
			t.Errorf("Transparent(%d, %d) = %s, want %s", tt.index, tt.total, got, tt.want)
		}
	}

	opaque := Palette(20)[15].String()
	if !strings.HasPrefix(opaque, "hsl(262.5") {
		t.Errorf("opaque variant = %s", opaque)
	}
}
