package filter

// Config collects every pipeline tunable in one place so thresholds can be
// adjusted and tested independently instead of living as scattered literals.
// Zero values are replaced by the matching DefaultConfig value when a
// component is constructed.
type Config struct {
	// Outlier gate.
	MinTimeDeltaS       float64 // reject fixes closer together than this
	MaxTimeDeltaS       float64 // reject fixes further apart than this
	MaxAccuracyM        float64 // hard ceiling, reject outright above it
	SoftAccuracyM       float64 // degraded but tolerable up to the streak limit
	PoorAccuracyLimit   int     // consecutive soft-poor fixes tolerated before rejecting
	MaxSpeedKn          float64 // hard speed ceiling, knots
	ReasonableSpeedMps  float64 // above this, cross-check against accuracy
	MaxAccelerationMps2 float64 // fix-to-fix acceleration ceiling

	// Kalman estimator.
	ProcessNoise  float64 // acceleration noise spectral density, m^2/s^3
	MinAccuracyM  float64 // measurement accuracy clamp, lower bound
	AccuracyCapM  float64 // measurement accuracy clamp, upper bound
	InitialVelVar float64 // initial velocity variance, m^2/s^2
	MaxFilterGapS float64 // reinitialize after a gap longer than this

	// Weighted smoother.
	SmootherWindow int     // ring buffer capacity
	SmootherDecayS float64 // exponential age-decay time constant, seconds
	MinWeight      float64
	MaxWeight      float64

	// Input defect substitutes.
	DefaultAccuracyM float64 // used when a fix reports no accuracy
	DefaultQuality   int     // used when no signal quality is available
}

// DefaultConfig returns the thresholds the system ships with. The streak
// limit and the acceleration ceiling are deliberately conservative defaults,
// not physical constants; tune them per deployment.
func DefaultConfig() Config {
	return Config{
		MinTimeDeltaS:       0.5,
		MaxTimeDeltaS:       300.0,
		MaxAccuracyM:        50.0,
		SoftAccuracyM:       10.0,
		PoorAccuracyLimit:   3,
		MaxSpeedKn:          50.0,
		ReasonableSpeedMps:  10.0,
		MaxAccelerationMps2: 5.0,

		ProcessNoise:  1.0,
		MinAccuracyM:  1.0,
		AccuracyCapM:  100.0,
		InitialVelVar: 25.0,
		MaxFilterGapS: 30.0,

		SmootherWindow: 5,
		SmootherDecayS: 5.0,
		MinWeight:      0.1,
		MaxWeight:      10.0,

		DefaultAccuracyM: 10.0,
		DefaultQuality:   50,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinTimeDeltaS == 0 {
		c.MinTimeDeltaS = d.MinTimeDeltaS
	}
	if c.MaxTimeDeltaS == 0 {
		c.MaxTimeDeltaS = d.MaxTimeDeltaS
	}
	if c.MaxAccuracyM == 0 {
		c.MaxAccuracyM = d.MaxAccuracyM
	}
	if c.SoftAccuracyM == 0 {
		c.SoftAccuracyM = d.SoftAccuracyM
	}
	if c.PoorAccuracyLimit == 0 {
		c.PoorAccuracyLimit = d.PoorAccuracyLimit
	}
	if c.MaxSpeedKn == 0 {
		c.MaxSpeedKn = d.MaxSpeedKn
	}
	if c.ReasonableSpeedMps == 0 {
		c.ReasonableSpeedMps = d.ReasonableSpeedMps
	}
	if c.MaxAccelerationMps2 == 0 {
		c.MaxAccelerationMps2 = d.MaxAccelerationMps2
	}
	if c.ProcessNoise == 0 {
		c.ProcessNoise = d.ProcessNoise
	}
	if c.MinAccuracyM == 0 {
		c.MinAccuracyM = d.MinAccuracyM
	}
	if c.AccuracyCapM == 0 {
		c.AccuracyCapM = d.AccuracyCapM
	}
	if c.InitialVelVar == 0 {
		c.InitialVelVar = d.InitialVelVar
	}
	if c.MaxFilterGapS == 0 {
		c.MaxFilterGapS = d.MaxFilterGapS
	}
	if c.SmootherWindow == 0 {
		c.SmootherWindow = d.SmootherWindow
	}
	if c.SmootherDecayS == 0 {
		c.SmootherDecayS = d.SmootherDecayS
	}
	if c.MinWeight == 0 {
		c.MinWeight = d.MinWeight
	}
	if c.MaxWeight == 0 {
		c.MaxWeight = d.MaxWeight
	}
	if c.DefaultAccuracyM == 0 {
		c.DefaultAccuracyM = d.DefaultAccuracyM
	}
	if c.DefaultQuality == 0 {
		c.DefaultQuality = d.DefaultQuality
	}
	return c
}

const (
	// EarthRadiusM is the WGS-84 equatorial radius used by the tangent
	// plane projection and the great-circle distance.
	EarthRadiusM = 6378137.0

	// KnotsToMps converts knots to meters per second.
	KnotsToMps = 0.514444

	// singularDetFloor below which the innovation covariance is treated as
	// singular and the measurement update is skipped.
	singularDetFloor = 1e-12

	// negligibleWeight below which the smoother falls back to its input.
	negligibleWeight = 1e-3
)

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
