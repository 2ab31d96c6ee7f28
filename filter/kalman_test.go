package filter

import (
	"math"
	"testing"
)

func checkCovarianceHealthy(t *testing.T, e *Estimator) {
	t.Helper()
	p := e.covariance()
	for i := 0; i < stateSize; i++ {
		if p[i][i] < 0 {
			t.Fatalf("P[%d][%d] = %v, negative variance", i, i, p[i][i])
		}
		for j := 0; j < stateSize; j++ {
			if math.Abs(p[i][j]-p[j][i]) > 1e-9 {
				t.Fatalf("P not symmetric: P[%d][%d]=%v P[%d][%d]=%v", i, j, p[i][j], j, i, p[j][i])
			}
		}
	}
}

func TestEstimatorFirstFixPassesThrough(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	f := goodFix(1000)
	out := e.Filter(f, 5.0)
	if out.Lat != f.Lat || out.Lon != f.Lon {
		t.Errorf("first output (%v,%v), want input (%v,%v)", out.Lat, out.Lon, f.Lat, f.Lon)
	}
	if out.Accuracy != 5.0 {
		t.Errorf("accuracy = %v, want 5.0", out.Accuracy)
	}
	if out.Speed != 0 {
		t.Errorf("speed = %v, want 0", out.Speed)
	}
	if e.UpdateCount() != 0 {
		t.Errorf("update count = %d, want 0 after initialization", e.UpdateCount())
	}
}

func TestEstimatorAccuracyClamp(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	out := e.Filter(goodFix(0), 0.1)
	if out.Accuracy != 1.0 {
		t.Errorf("accuracy = %v, want clamped to 1.0", out.Accuracy)
	}
	e.Reset()
	out = e.Filter(goodFix(0), 500.0)
	if out.Accuracy != 100.0 {
		t.Errorf("accuracy = %v, want clamped to 100.0", out.Accuracy)
	}
}

// Scenario: two identical fixes 2 s apart, accuracy 5 m. The filtered
// accuracy must not exceed the measurement accuracy and the speed estimate
// stays at zero.
func TestEstimatorStaticPair(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	e.Filter(goodFix(0), 5.0)
	out := e.Filter(goodFix(2000), 5.0)

	if out.Accuracy > 5.0 {
		t.Errorf("accuracy = %v, want <= 5.0", out.Accuracy)
	}
	if out.Speed > 0.01 {
		t.Errorf("speed = %v, want ~0", out.Speed)
	}
	checkCovarianceHealthy(t, e)
}

func TestEstimatorStationaryConvergence(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	var out FilteredLocation
	for i := 0; i <= 5; i++ {
		out = e.Filter(goodFix(int64(i)*1000), 5.0)
		checkCovarianceHealthy(t, e)
	}
	if out.Accuracy > 5.0 {
		t.Errorf("converged accuracy = %v, want <= 5.0", out.Accuracy)
	}
	if out.Speed > 0.5 {
		t.Errorf("stationary speed = %v, want < 0.5", out.Speed)
	}
	if math.Abs(out.Lat-52.0) > 1e-7 || math.Abs(out.Lon-8.0) > 1e-7 {
		t.Errorf("stationary position drifted to (%v,%v)", out.Lat, out.Lon)
	}
}

func TestEstimatorTracksSteadyMotion(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	base := goodFix(0)
	var out FilteredLocation
	for i := 0; i <= 20; i++ {
		// Moving north at 1 m/s, one fix per second.
		f := northOf(base, float64(i), int64(i)*1000)
		out = e.Filter(f, 5.0)
		checkCovarianceHealthy(t, e)
	}
	if out.Speed < 0.6 || out.Speed > 1.4 {
		t.Errorf("estimated speed = %v, want ~1.0", out.Speed)
	}
}

// Scenario: a 40 s gap between two valid fixes. The estimator must
// reinitialize: counter back to zero, the later fix becomes the new origin
// and is returned unchanged.
func TestEstimatorReinitializesAfterGap(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	e.Filter(goodFix(0), 5.0)
	e.Filter(goodFix(2000), 5.0)
	if e.UpdateCount() != 1 {
		t.Fatalf("update count = %d, want 1", e.UpdateCount())
	}

	late := goodFix(42000)
	late.Lat = 52.001
	out := e.Filter(late, 5.0)
	if e.UpdateCount() != 0 {
		t.Errorf("update count = %d, want 0 after reinit", e.UpdateCount())
	}
	if out.Lat != late.Lat || out.Lon != late.Lon {
		t.Errorf("output (%v,%v), want the reinitializing fix unchanged", out.Lat, out.Lon)
	}
	if out.Accuracy != 5.0 {
		t.Errorf("accuracy = %v, want clamped input accuracy", out.Accuracy)
	}
}

func TestEstimatorReinitializesOnNonPositiveDelta(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	e.Filter(goodFix(5000), 5.0)
	e.Filter(goodFix(6000), 5.0)

	stale := goodFix(6000) // same timestamp: dt == 0
	e.Filter(stale, 5.0)
	if e.UpdateCount() != 0 {
		t.Errorf("update count = %d, want 0 after zero-delta reinit", e.UpdateCount())
	}
}

func TestEstimatorAccuracyImprovementStats(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	for i := 0; i <= 10; i++ {
		e.Filter(goodFix(int64(i)*1000), 5.0)
	}
	s := e.Stats()
	if !s.Initialized {
		t.Error("stats report uninitialized")
	}
	if s.Updates != 10 {
		t.Errorf("updates = %d, want 10", s.Updates)
	}
	if s.AvgAccuracyImprovement <= 0 {
		t.Errorf("avg improvement = %v, want > 0 for a stationary stream", s.AvgAccuracyImprovement)
	}
}

func TestEstimatorResetClearsState(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	e.Filter(goodFix(0), 5.0)
	e.Filter(goodFix(1000), 5.0)
	e.Reset()
	if e.UpdateCount() != 0 {
		t.Errorf("update count = %d after reset", e.UpdateCount())
	}
	if e.EstimatedSpeed() != 0 {
		t.Errorf("speed = %v after reset", e.EstimatedSpeed())
	}
	if !math.IsInf(e.PredictedAccuracy(), 1) {
		t.Errorf("accuracy = %v after reset, want +Inf", e.PredictedAccuracy())
	}
}
