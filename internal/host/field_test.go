package host

import (
	"math"
	"testing"
)

func TestStressRange(t *testing.T) {
	f := NewField(42)
	for turn := 0; turn < 1000; turn++ {
		s := f.Stress(turn)
		if s < minStress || s > maxStress {
			t.Fatalf("Stress(%d) = %v, outside [%v, %v]", turn, s, minStress, maxStress)
		}
	}
}

func TestStressDeterministic(t *testing.T) {
	a := NewField(7)
	b := NewField(7)
	for turn := 0; turn < 100; turn++ {
		if got, want := a.Stress(turn), b.Stress(turn); got != want {
			t.Fatalf("Stress(%d): got %v, want %v", turn, got, want)
		}
	}
}

func TestStressDrifts(t *testing.T) {
	// Neighboring turns should differ only slightly; the field is a drift,
	// not white noise.
	f := NewField(11)
	for turn := 1; turn < 500; turn++ {
		delta := math.Abs(f.Stress(turn) - f.Stress(turn-1))
		if delta > 0.1 {
			t.Fatalf("Stress jumped %v between turns %d and %d", delta, turn-1, turn)
		}
	}
}

func TestStressSeedVariation(t *testing.T) {
	a := NewField(1)
	b := NewField(2)
	same := true
	for turn := 0; turn < 50; turn++ {
		if a.Stress(turn) != b.Stress(turn) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical stress curves")
	}
}
