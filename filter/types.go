package filter

import "math"

// Fix is one raw position sample as delivered by a GNSS source. Accuracy,
// Speed and Altitude are valid only when the matching Has flag is set; a
// zero value with the flag clear means "not reported", not "zero".
type Fix struct {
	Lat         float64 // degrees
	Lon         float64 // degrees
	Accuracy    float64 // meters, 1-sigma horizontal
	HasAccuracy bool
	Speed       float64 // m/s over ground as reported by the receiver
	HasSpeed    bool
	Altitude    float64 // meters above MSL
	HasAltitude bool
	Timestamp   int64 // milliseconds, monotonic
}

// Finite reports whether every populated numeric field holds a finite value.
// A fix failing this check is indistinguishable from no fix at all.
func (f Fix) Finite() bool {
	if !finite(f.Lat) || !finite(f.Lon) {
		return false
	}
	if f.HasAccuracy && !finite(f.Accuracy) {
		return false
	}
	if f.HasSpeed && !finite(f.Speed) {
		return false
	}
	if f.HasAltitude && !finite(f.Altitude) {
		return false
	}
	return true
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FilteredLocation is one pipeline output sample: the smoothed position
// estimate together with the filter's own accuracy and speed estimates.
type FilteredLocation struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Accuracy    float64 `json:"accuracy_m"`
	Speed       float64 `json:"speed_mps"`
	Altitude    float64 `json:"altitude_m,omitempty"`
	HasAltitude bool    `json:"-"`
	Timestamp   int64   `json:"ts"` // milliseconds, from the accepted fix
}

// AlarmState is the drift watchdog state.
type AlarmState int

const (
	Quiet AlarmState = iota
	Alarmed
)

func (s AlarmState) String() string {
	switch s {
	case Quiet:
		return "quiet"
	case Alarmed:
		return "alarmed"
	default:
		return "unknown"
	}
}

// AlarmTransition records one state change of the drift watchdog.
type AlarmTransition struct {
	From      AlarmState `json:"-"`
	To        AlarmState `json:"-"`
	DistanceM float64    `json:"distance_m"` // distance to anchor that triggered the change
	Timestamp int64      `json:"ts"`
}
