package filter

import (
	"testing"
)

func smootherSample(lat float64, acc float64, tsMs int64) FilteredLocation {
	return FilteredLocation{Lat: lat, Lon: 8.0, Accuracy: acc, Timestamp: tsMs}
}

func TestSmootherWarmupPassthrough(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	for i := 0; i < 2; i++ {
		in := smootherSample(52.0+float64(i)*1e-5, 5.0, int64(i)*1000)
		out := s.Smooth(in, 80)
		if out != in {
			t.Fatalf("sample %d modified during warmup: %+v != %+v", i, out, in)
		}
	}
	if s.FillLevel() != 2 {
		t.Errorf("fill = %d, want 2", s.FillLevel())
	}
}

func TestSmootherPullsTowardWindow(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	s.Smooth(smootherSample(52.0000, 5.0, 0), 80)
	s.Smooth(smootherSample(52.0000, 5.0, 1000), 80)
	out := s.Smooth(smootherSample(52.0010, 5.0, 2000), 80)

	// The smoothed latitude lies strictly between the window extremes.
	if out.Lat <= 52.0000 || out.Lat >= 52.0010 {
		t.Errorf("smoothed lat = %v, want inside (52.0000, 52.0010)", out.Lat)
	}
}

func TestSmootherAgeDecayFavorsRecent(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)
	s.Smooth(smootherSample(52.0000, 5.0, 0), 80)
	s.Smooth(smootherSample(52.0000, 5.0, 1000), 80)
	near := s.Smooth(smootherSample(52.0010, 5.0, 2000), 80)

	s.Reset()
	s.Smooth(smootherSample(52.0000, 5.0, 0), 80)
	s.Smooth(smootherSample(52.0000, 5.0, 1000), 80)
	// Same geometry, but the old samples are 30 s stale by the time the
	// third arrives, so they should count for much less.
	far := s.Smooth(smootherSample(52.0010, 5.0, 31000), 80)

	if far.Lat <= near.Lat {
		t.Errorf("stale window should pull less: far=%v near=%v", far.Lat, near.Lat)
	}
}

func TestSmootherWeightFavorsAccuracy(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	w1 := s.sampleWeight(smootherSample(52, 2.0, 0), 80)
	w2 := s.sampleWeight(smootherSample(52, 20.0, 0), 80)
	if w1 <= w2 {
		t.Errorf("weight(2m)=%v <= weight(20m)=%v", w1, w2)
	}

	wq1 := s.sampleWeight(smootherSample(52, 5.0, 0), 100)
	wq2 := s.sampleWeight(smootherSample(52, 5.0, 0), 20)
	if wq1 <= wq2 {
		t.Errorf("weight(q=100)=%v <= weight(q=20)=%v", wq1, wq2)
	}

	// Clamped into the configured band.
	if w := s.sampleWeight(smootherSample(52, 0.01, 0), 100); w > 10.0 {
		t.Errorf("weight = %v, want <= 10", w)
	}
	if w := s.sampleWeight(smootherSample(52, 1e6, 0), 0); w < 0.1 {
		t.Errorf("weight = %v, want >= 0.1", w)
	}
}

func TestSmootherNegligibleWeightFallsBack(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	for i := 0; i < 3; i++ {
		s.Smooth(smootherSample(52.0, 5.0, int64(i)*1000), 80)
	}
	// With a reference time far beyond every sample the decayed total drops
	// under the floor and the average must fall back to the input.
	latest := smootherSample(52.5, 5.0, 10_000_000)
	out := s.weightedAverage(latest)
	if out != latest {
		t.Errorf("fallback output %+v, want latest input", out)
	}
}

func TestSmootherAccuracyFromMostRecent(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	s.Smooth(smootherSample(52.0, 2.0, 0), 80)
	s.Smooth(smootherSample(52.0, 3.0, 1000), 80)
	out := s.Smooth(smootherSample(52.0, 7.5, 2000), 80)
	if out.Accuracy != 7.5 {
		t.Errorf("accuracy = %v, want most recent 7.5", out.Accuracy)
	}
}

func TestSmootherAltitudeAveraged(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	for i := 0; i < 3; i++ {
		in := smootherSample(52.0, 5.0, int64(i)*1000)
		in.Altitude = float64(i * 10)
		in.HasAltitude = true
		out := s.Smooth(in, 80)
		if i == 2 {
			if !out.HasAltitude {
				t.Fatal("altitude dropped")
			}
			if out.Altitude <= 0 || out.Altitude >= 20 {
				t.Errorf("altitude = %v, want inside (0, 20)", out.Altitude)
			}
		}
	}
}

func TestSmootherRingOverwritesOldest(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSmoother(cfg)
	for i := 0; i < 8; i++ {
		s.Smooth(smootherSample(52.0, 5.0, int64(i)*1000), 80)
	}
	if s.FillLevel() != cfg.SmootherWindow {
		t.Errorf("fill = %d, want capacity %d", s.FillLevel(), cfg.SmootherWindow)
	}
	// Oldest surviving sample is #3 (timestamps 3000..7000).
	if got := s.at(0).timestamp; got != 3000 {
		t.Errorf("oldest timestamp = %d, want 3000", got)
	}
}

func TestSmootherReset(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	for i := 0; i < 4; i++ {
		s.Smooth(smootherSample(52.0, 5.0, int64(i)*1000), 80)
	}
	s.Reset()
	if s.FillLevel() != 0 {
		t.Errorf("fill = %d after reset", s.FillLevel())
	}
	in := smootherSample(52.5, 5.0, 100000)
	if out := s.Smooth(in, 80); out != in {
		t.Error("warmup passthrough not restored after reset")
	}
}
