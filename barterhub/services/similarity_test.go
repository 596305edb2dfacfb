package services

import (
	"math"
	"testing"
)

func newSim(t *testing.T) *FuzzySimilarity {
	t.Helper()
	sim, err := NewFuzzySimilarity()
	if err != nil {
		t.Fatalf("NewFuzzySimilarity() error = %v", err)
	}
	return sim
}

func TestFuzzySimilarity_Similarity(t *testing.T) {
	sim := newSim(t)

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical text", "горный велосипед", "горный велосипед", 1.0},
		{"cyrillic against its transliteration", "велосипед", "velosiped", 1.0},
		{"singular against plural form", "велосипед", "velosipedy", 0.9},
		{"unrelated words", "книга", "стол", 0.0},
		{"empty side", "", "книга", 0.0},
		{"both empty", "", "", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sim.Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFuzzySimilarity_Bounds(t *testing.T) {
	sim := newSim(t)

	pairs := [][2]string{
		{"айфон 13 про", "iphone 13 pro"},
		{"учебник физики", "книга по физике"},
		{"щука", "schuka"},
		{"велосипед горный новый", "velosiped"},
	}
	for _, p := range pairs {
		got := sim.Similarity(p[0], p[1])
		if got < 0 || got > 1 {
			t.Errorf("Similarity(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestFuzzySimilarity_CacheStable(t *testing.T) {
	sim := newSim(t)

	first := sim.Similarity("велосипед", "velosipedy")
	for i := 0; i < 3; i++ {
		if got := sim.Similarity("велосипед", "velosipedy"); got != first {
			t.Fatalf("cached Similarity() = %v, first call %v", got, first)
		}
	}
}
