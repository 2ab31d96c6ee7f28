package filter

import "math"

// Constellation identifies the GNSS system a satellite belongs to.
type Constellation int

const (
	ConstellationUnknown Constellation = iota
	ConstellationGPS
	ConstellationGLONASS
	ConstellationGalileo
	ConstellationBeiDou
	ConstellationQZSS
	ConstellationSBAS
	ConstellationNavIC
)

func (c Constellation) String() string {
	switch c {
	case ConstellationGPS:
		return "GPS"
	case ConstellationGLONASS:
		return "GLO"
	case ConstellationGalileo:
		return "GAL"
	case ConstellationBeiDou:
		return "BDS"
	case ConstellationQZSS:
		return "QZSS"
	case ConstellationSBAS:
		return "SBAS"
	case ConstellationNavIC:
		return "NavIC"
	default:
		return "UNK"
	}
}

// SatelliteObservation is one satellite line from the receiver for the
// current fix epoch.
type SatelliteObservation struct {
	Constellation Constellation
	SVID          int
	CN0DbHz       float64 // carrier-to-noise density; 0 when not tracked
	UsedInFix     bool
}

// ConstellationStats summarizes the satellites of one constellation.
type ConstellationStats struct {
	Total     int
	UsedInFix int
	AvgCN0    float64
	MaxCN0    float64
}

// SignalQuality reduces a per-fix satellite set to a single 0-100 score from
// the mean C/N0 of tracked satellites. 20 dBHz is poor, 45 dBHz and up is
// excellent; the mapping is linear between them. No satellites means 0.
func SignalQuality(sats []SatelliteObservation) int {
	var sum float64
	var n int
	for _, s := range sats {
		if s.CN0DbHz > 0 {
			sum += s.CN0DbHz
			n++
		}
	}
	if n == 0 {
		return 0
	}
	avg := sum / float64(n)
	q := int(math.Round((avg - 20.0) / 25.0 * 100.0))
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return q
}

// SummarizeConstellations groups a satellite set by constellation for
// diagnostics output. Constellations with no satellites are omitted.
func SummarizeConstellations(sats []SatelliteObservation) map[Constellation]ConstellationStats {
	out := make(map[Constellation]ConstellationStats)
	for _, s := range sats {
		st := out[s.Constellation]
		st.Total++
		if s.UsedInFix {
			st.UsedInFix++
		}
		st.AvgCN0 += s.CN0DbHz
		if s.CN0DbHz > st.MaxCN0 {
			st.MaxCN0 = s.CN0DbHz
		}
		out[s.Constellation] = st
	}
	for c, st := range out {
		st.AvgCN0 /= float64(st.Total)
		out[c] = st
	}
	return out
}
