package stats

import "testing"

func TestWeightedMean(t *testing.T) {
	got, ok := WeightedMean([]float64{10, 20}, []float64{1, 3})
	if !ok || got != 17.5 {
		t.Fatalf("WeightedMean: got %v, %v", got, ok)
	}
	if _, ok := WeightedMean([]float64{10}, []float64{0}); ok {
		t.Fatalf("WeightedMean: zero weight mass should not be ok")
	}
	if _, ok := WeightedMean(nil, nil); ok {
		t.Fatalf("WeightedMean: empty input should not be ok")
	}
}

func TestMeanClampAllEqual(t *testing.T) {
	if m := Mean([]float64{1, 0.5}); m != 0.75 {
		t.Fatalf("Mean: got %v", m)
	}
	if Mean(nil) != 0 {
		t.Fatalf("Mean(nil) should be 0")
	}
	if Clamp(1.4, 0.1, 1) != 1 || Clamp(-2, 0.1, 1) != 0.1 || Clamp(0.5, 0.1, 1) != 0.5 {
		t.Fatalf("Clamp out of range")
	}
	if !AllEqual([]float64{60, 60, 60}) || AllEqual([]float64{60, 61}) || !AllEqual(nil) {
		t.Fatalf("AllEqual wrong")
	}
}
