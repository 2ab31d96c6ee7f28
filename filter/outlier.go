package filter

import "math"

// Reason classifies why the gate rejected a fix.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNullLocation
	ReasonInvalidTimeDelta
	ReasonPoorAccuracy
	ReasonExcessiveSpeed
	ReasonGeometricInconsistency
	reasonCount
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNullLocation:
		return "null_location"
	case ReasonInvalidTimeDelta:
		return "invalid_time_delta"
	case ReasonPoorAccuracy:
		return "poor_accuracy"
	case ReasonExcessiveSpeed:
		return "excessive_speed"
	case ReasonGeometricInconsistency:
		return "geometric_inconsistency"
	default:
		return "unknown"
	}
}

// GateStats are the gate's diagnostic counters.
type GateStats struct {
	Checks   int            `json:"checks"`
	Rejects  int            `json:"rejects"`
	ByReason map[string]int `json:"by_reason"`
}

// Gate validates a raw fix against the previously accepted fix with a fixed
// cascade of physical-plausibility checks. The first failing check decides
// the rejection reason. Rejected fixes never advance the baseline.
type Gate struct {
	cfg Config

	lastReason Reason
	prev       *Fix // last accepted fix
	prevPrev   *Fix // accepted before that; baseline for the acceleration check
	poorStreak int

	checks  int
	rejects int
	reasons [reasonCount]int
}

// NewGate returns a gate with no baseline; the first fix it sees is always
// accepted.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg.withDefaults()}
}

// Reset drops the baseline and the poor-accuracy streak. Counters survive a
// reset; they describe the gate's whole life, not one anchor session.
func (g *Gate) Reset() {
	g.lastReason = ReasonNone
	g.prev = nil
	g.prevPrev = nil
	g.poorStreak = 0
}

// LastAccepted returns the current baseline fix, or nil before the first
// acceptance.
func (g *Gate) LastAccepted() *Fix { return g.prev }

// Reason returns the outcome of the most recent check.
func (g *Gate) Reason() Reason { return g.lastReason }

// IsOutlier validates current against previous given the elapsed time in
// milliseconds. previous == nil establishes the baseline and always passes.
func (g *Gate) IsOutlier(current, previous *Fix, elapsedMs int64) bool {
	g.checks++

	if current == nil || !current.Finite() {
		return g.reject(ReasonNullLocation)
	}
	if previous == nil {
		g.lastReason = ReasonNone
		g.accept(current)
		return false
	}

	dt := float64(elapsedMs) / 1000.0
	if dt < g.cfg.MinTimeDeltaS || dt > g.cfg.MaxTimeDeltaS {
		return g.reject(ReasonInvalidTimeDelta)
	}
	if !g.accuracyAcceptable(current) {
		return g.reject(ReasonPoorAccuracy)
	}
	if !g.speedReasonable(current, previous, dt) {
		return g.reject(ReasonExcessiveSpeed)
	}
	if !g.geometricallyConsistent(current, previous, dt) {
		return g.reject(ReasonGeometricInconsistency)
	}

	g.lastReason = ReasonNone
	g.accept(current)
	return false
}

func (g *Gate) reject(r Reason) bool {
	g.lastReason = r
	g.rejects++
	g.reasons[r]++
	return true
}

func (g *Gate) accept(current *Fix) {
	c := *current
	g.prevPrev = g.prev
	g.prev = &c
}

// accuracyAcceptable rejects above the hard ceiling outright. Between the
// soft threshold and the ceiling a consecutive streak counter runs: a short
// burst of degraded fixes is tolerated, a sustained low-quality stream is
// not. A fix at or below the soft threshold clears the streak.
func (g *Gate) accuracyAcceptable(current *Fix) bool {
	acc := current.Accuracy
	if !current.HasAccuracy {
		acc = g.cfg.DefaultAccuracyM
	}

	if acc > g.cfg.MaxAccuracyM {
		return false
	}
	if acc > g.cfg.SoftAccuracyM {
		g.poorStreak++
		return g.poorStreak <= g.cfg.PoorAccuracyLimit
	}
	g.poorStreak = 0
	return true
}

// speedReasonable applies the hard 50-knot ceiling (strict greater-than:
// exactly the ceiling still passes) and, in the band above reasonable speed,
// rejects when the worse of the two fixes' accuracies exceeds the soft
// threshold. Fast movement reported by an imprecise fix is more likely noise
// than real motion.
func (g *Gate) speedReasonable(current, previous *Fix, dt float64) bool {
	dist := DistanceM(current.Lat, current.Lon, previous.Lat, previous.Lon)
	speed := dist / dt

	if speed > g.cfg.MaxSpeedKn*KnotsToMps {
		return false
	}
	if speed > g.cfg.ReasonableSpeedMps {
		curAcc := g.cfg.DefaultAccuracyM
		if current.HasAccuracy {
			curAcc = current.Accuracy
		}
		prevAcc := g.cfg.DefaultAccuracyM
		if previous.HasAccuracy {
			prevAcc = previous.Accuracy
		}
		if math.Max(curAcc, prevAcc) > g.cfg.SoftAccuracyM {
			return false
		}
	}
	return true
}

// geometricallyConsistent compares the implied fix-to-fix speed change
// against the acceleration ceiling, using the fix accepted two steps back as
// the velocity baseline. Without that baseline, or with an unusable time
// spacing toward it, the check cannot run and passes.
func (g *Gate) geometricallyConsistent(current, previous *Fix, dt float64) bool {
	if g.prevPrev == nil {
		return true
	}
	prevDt := float64(previous.Timestamp-g.prevPrev.Timestamp) / 1000.0
	if prevDt < g.cfg.MinTimeDeltaS || prevDt > g.cfg.MaxTimeDeltaS {
		return true
	}

	prevSpeed := DistanceM(previous.Lat, previous.Lon, g.prevPrev.Lat, g.prevPrev.Lon) / prevDt
	curSpeed := DistanceM(current.Lat, current.Lon, previous.Lat, previous.Lon) / dt
	accel := math.Abs(curSpeed-prevSpeed) / dt
	return accel <= g.cfg.MaxAccelerationMps2
}

// Stats returns the gate's diagnostic counters. Reasons that never fired are
// omitted from the histogram.
func (g *Gate) Stats() GateStats {
	by := make(map[string]int)
	for r := ReasonNullLocation; r < reasonCount; r++ {
		if g.reasons[r] > 0 {
			by[r.String()] = g.reasons[r]
		}
	}
	return GateStats{Checks: g.checks, Rejects: g.rejects, ByReason: by}
}
