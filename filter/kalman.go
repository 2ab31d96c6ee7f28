package filter

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// State vector indices: position first, velocity second.
const (
	stateN    = 0
	stateE    = 1
	stateVN   = 2
	stateVE   = 3
	stateSize = 4
)

// KalmanStats are the estimator's diagnostic counters.
type KalmanStats struct {
	Initialized            bool    `json:"initialized"`
	Updates                int     `json:"updates"`
	AvgAccuracyImprovement float64 `json:"avg_accuracy_improvement_m"`
	CurrentAccuracy        float64 `json:"current_accuracy_m"`
	EstimatedSpeed         float64 `json:"estimated_speed_mps"`
}

// Estimator is a 4-state constant-velocity Kalman filter over the local
// tangent plane: state [north, east, velNorth, velEast] in meters and m/s.
// The plane origin is the first fix seen after construction or reset, so the
// filter math stays linear and the state stays small.
type Estimator struct {
	cfg  Config
	proj Projector

	x [stateSize]float64
	p [stateSize][stateSize]float64

	lastUpdate  int64
	initialized bool

	updates         int
	accuracyGainSum float64
}

// NewEstimator returns an uninitialized estimator; the first call to Filter
// fixes the plane origin.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg.withDefaults()}
}

// Reset discards the whole filter state including the plane origin and the
// running statistics.
func (e *Estimator) Reset() {
	e.proj = Projector{}
	e.x = [stateSize]float64{}
	e.p = [stateSize][stateSize]float64{}
	e.lastUpdate = 0
	e.initialized = false
	e.updates = 0
	e.accuracyGainSum = 0
}

// Filter runs one predict/update cycle for an accepted fix and returns the
// filtered position. accuracyM is the reported (or substituted) horizontal
// accuracy; it is clamped before use.
//
// A non-positive time delta or one beyond the gap ceiling is a discontinuity:
// the old velocity and position estimates are worthless by then, so the
// filter reinitializes on the new fix instead of applying a large misleading
// correction.
func (e *Estimator) Filter(fix Fix, accuracyM float64) FilteredLocation {
	acc := clamp(accuracyM, e.cfg.MinAccuracyM, e.cfg.AccuracyCapM)

	if !e.initialized {
		e.initialize(fix, acc)
		return e.passthrough(fix, acc)
	}

	dt := float64(fix.Timestamp-e.lastUpdate) / 1000.0
	if dt <= 0 || dt > e.cfg.MaxFilterGapS {
		e.Reset()
		e.initialize(fix, acc)
		return e.passthrough(fix, acc)
	}

	e.predict(dt)
	e.update(fix, acc)
	e.conditionCovariance()

	e.lastUpdate = fix.Timestamp
	e.updates++

	filtered := e.PredictedAccuracy()
	if acc > filtered {
		e.accuracyGainSum += acc - filtered
	}

	lat, lon := e.proj.ToLatLon(e.x[stateN], e.x[stateE])
	return FilteredLocation{
		Lat:         lat,
		Lon:         lon,
		Accuracy:    filtered,
		Speed:       e.EstimatedSpeed(),
		Altitude:    fix.Altitude,
		HasAltitude: fix.HasAltitude,
		Timestamp:   fix.Timestamp,
	}
}

func (e *Estimator) initialize(fix Fix, acc float64) {
	e.proj.SetOrigin(fix.Lat, fix.Lon)
	e.x = [stateSize]float64{}
	e.p = [stateSize][stateSize]float64{}
	e.p[stateN][stateN] = acc * acc
	e.p[stateE][stateE] = acc * acc
	e.p[stateVN][stateVN] = e.cfg.InitialVelVar
	e.p[stateVE][stateVE] = e.cfg.InitialVelVar
	e.lastUpdate = fix.Timestamp
	e.initialized = true
}

// passthrough returns the initializing fix unchanged apart from the clamped
// accuracy; there is nothing to correct against yet.
func (e *Estimator) passthrough(fix Fix, acc float64) FilteredLocation {
	return FilteredLocation{
		Lat:         fix.Lat,
		Lon:         fix.Lon,
		Accuracy:    acc,
		Speed:       0,
		Altitude:    fix.Altitude,
		HasAltitude: fix.HasAltitude,
		Timestamp:   fix.Timestamp,
	}
}

// predict advances the constant-velocity model by dt. The covariance
// propagation P' = F P Fᵀ + Q is expanded in closed form for the sparse F of
// this model rather than done as a generic matrix chain; with dt only at
// (N,VN) and (E,VE) most products vanish. Q uses the standard white-noise
// acceleration terms q·dt⁴/4, q·dt³/2, q·dt².
func (e *Estimator) predict(dt float64) {
	q := e.cfg.ProcessNoise
	dt2 := dt * dt
	qPP := q * dt2 * dt2 / 4.0
	qPV := q * dt2 * dt / 2.0
	qVV := q * dt2

	e.x[stateN] += e.x[stateVN] * dt
	e.x[stateE] += e.x[stateVE] * dt

	p := &e.p
	var n [stateSize][stateSize]float64

	n[stateN][stateN] = p[stateN][stateN] + dt*(p[stateN][stateVN]+p[stateVN][stateN]) + dt2*p[stateVN][stateVN] + qPP
	n[stateE][stateE] = p[stateE][stateE] + dt*(p[stateE][stateVE]+p[stateVE][stateE]) + dt2*p[stateVE][stateVE] + qPP

	n[stateN][stateE] = p[stateN][stateE] + dt*p[stateN][stateVE] + dt*p[stateVN][stateE] + dt2*p[stateVN][stateVE]
	n[stateN][stateVN] = p[stateN][stateVN] + dt*p[stateVN][stateVN] + qPV
	n[stateN][stateVE] = p[stateN][stateVE] + dt*p[stateVN][stateVE]
	n[stateE][stateVN] = p[stateE][stateVN] + dt*p[stateVE][stateVN]
	n[stateE][stateVE] = p[stateE][stateVE] + dt*p[stateVE][stateVE] + qPV

	n[stateVN][stateVN] = p[stateVN][stateVN] + qVV
	n[stateVN][stateVE] = p[stateVN][stateVE]
	n[stateVE][stateVE] = p[stateVE][stateVE] + qVV

	// Mirror the lower triangle.
	for i := 0; i < stateSize; i++ {
		for j := 0; j < i; j++ {
			n[i][j] = n[j][i]
		}
	}
	e.p = n
	e.symmetrize()
}

// update corrects the prediction with the measured tangent-plane position.
// The 2x2 innovation covariance is inverted in closed form; a near-singular
// S makes the update a no-op rather than an error.
func (e *Estimator) update(fix Fix, acc float64) {
	mn, me := e.proj.ToLocalNE(fix.Lat, fix.Lon)
	in0 := mn - e.x[stateN]
	in1 := me - e.x[stateE]

	r := acc * acc
	s00 := e.p[stateN][stateN] + r
	s01 := e.p[stateN][stateE]
	s10 := e.p[stateE][stateN]
	s11 := e.p[stateE][stateE] + r

	det := s00*s11 - s01*s10
	if math.Abs(det) < singularDetFloor {
		return
	}
	i00 := s11 / det
	i01 := -s01 / det
	i10 := -s10 / det
	i11 := s00 / det

	// K = P Hᵀ S⁻¹; H selects the two position rows, so P Hᵀ is just the
	// first two columns of P.
	var k [stateSize][2]float64
	for i := 0; i < stateSize; i++ {
		k[i][0] = e.p[i][stateN]*i00 + e.p[i][stateE]*i10
		k[i][1] = e.p[i][stateN]*i01 + e.p[i][stateE]*i11
	}

	for i := 0; i < stateSize; i++ {
		e.x[i] += k[i][0]*in0 + k[i][1]*in1
	}

	// P' = P - K (H P); H P is the two position rows of P.
	var hp0, hp1 [stateSize]float64
	copy(hp0[:], e.p[stateN][:])
	copy(hp1[:], e.p[stateE][:])
	for i := 0; i < stateSize; i++ {
		for j := 0; j < stateSize; j++ {
			e.p[i][j] -= k[i][0]*hp0[j] + k[i][1]*hp1[j]
		}
	}
	e.symmetrize()
}

// symmetrize corrects floating-point drift so P stays symmetric.
func (e *Estimator) symmetrize() {
	for i := 0; i < stateSize; i++ {
		for j := i + 1; j < stateSize; j++ {
			v := 0.5 * (e.p[i][j] + e.p[j][i])
			e.p[i][j] = v
			e.p[j][i] = v
		}
	}
}

// conditionCovariance floors the spectrum of P at zero. Subtractive updates
// can push an eigenvalue slightly negative; when that happens the whole
// diagonal is lifted by the deficit.
func (e *Estimator) conditionCovariance() {
	sym := mat.NewSymDense(stateSize, nil)
	for i := 0; i < stateSize; i++ {
		for j := i; j < stateSize; j++ {
			sym.SetSym(i, j, e.p[i][j])
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return
	}
	vals := eig.Values(nil)
	minEig := vals[0]
	for _, v := range vals[1:] {
		if v < minEig {
			minEig = v
		}
	}
	if minEig < 0 {
		add := -minEig + 1e-9
		for i := 0; i < stateSize; i++ {
			e.p[i][i] += add
		}
	}
}

// PredictedAccuracy is the filter's own 1-sigma horizontal accuracy, the
// worse of the two position variances.
func (e *Estimator) PredictedAccuracy() float64 {
	if !e.initialized {
		return math.Inf(1)
	}
	return math.Sqrt(math.Max(e.p[stateN][stateN], e.p[stateE][stateE]))
}

// EstimatedSpeed is the magnitude of the velocity state in m/s.
func (e *Estimator) EstimatedSpeed() float64 {
	if !e.initialized {
		return 0
	}
	return math.Hypot(e.x[stateVN], e.x[stateVE])
}

// UpdateCount returns the number of completed predict/update cycles since the
// last (re)initialization.
func (e *Estimator) UpdateCount() int { return e.updates }

// Stats returns the estimator's diagnostic counters.
func (e *Estimator) Stats() KalmanStats {
	avg := 0.0
	if e.updates > 0 {
		avg = e.accuracyGainSum / float64(e.updates)
	}
	cur := 0.0
	if e.initialized {
		cur = e.PredictedAccuracy()
	}
	return KalmanStats{
		Initialized:            e.initialized,
		Updates:                e.updates,
		AvgAccuracyImprovement: avg,
		CurrentAccuracy:        cur,
		EstimatedSpeed:         e.EstimatedSpeed(),
	}
}

// covariance returns a copy of P, for tests and diagnostics.
func (e *Estimator) covariance() [stateSize][stateSize]float64 { return e.p }
