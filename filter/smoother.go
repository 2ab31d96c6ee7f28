package filter

import "math"

type weightedSample struct {
	loc       FilteredLocation
	weight    float64
	timestamp int64 // ms, from the sample itself
}

// Smoother dampens residual short-term jitter in the Kalman output with a
// short quality-weighted moving average. Weights come from reported accuracy
// and signal quality and are decayed exponentially by sample age, so a stale
// buffer cannot drag the estimate backwards. It deliberately does not
// re-derive accuracy; jitter reduction is its only job.
//
// Ages are measured against the newest sample's timestamp rather than wall
// clock, so replayed logs smooth identically to live runs.
type Smoother struct {
	cfg Config

	buf    []weightedSample
	head   int
	size   int
	warmed bool

	updates int
}

// NewSmoother returns a smoother with a fixed-capacity ring buffer.
func NewSmoother(cfg Config) *Smoother {
	cfg = cfg.withDefaults()
	w := cfg.SmootherWindow
	if w < 1 {
		w = 1
	}
	if w > 20 {
		w = 20
	}
	return &Smoother{cfg: cfg, buf: make([]weightedSample, w)}
}

// Reset clears the buffer and the warmup state.
func (s *Smoother) Reset() {
	s.head = 0
	s.size = 0
	s.warmed = false
	s.updates = 0
}

// FillLevel returns the number of buffered samples.
func (s *Smoother) FillLevel() int { return s.size }

// Smooth appends the Kalman output to the window and returns the weighted
// mean position. Until the window holds min(3, capacity) samples the input
// passes through unchanged; averaging over a near-empty window would bias
// early estimates toward whatever happened to arrive first.
func (s *Smoother) Smooth(loc FilteredLocation, signalQuality int) FilteredLocation {
	weight := s.sampleWeight(loc, signalQuality)
	s.push(weightedSample{loc: loc, weight: weight, timestamp: loc.Timestamp})
	s.updates++

	if !s.warmed {
		warmupAt := s.cfg.SmootherWindow
		if warmupAt > 3 {
			warmupAt = 3
		}
		if s.size >= warmupAt {
			s.warmed = true
		} else {
			return loc
		}
	}
	return s.weightedAverage(loc)
}

// sampleWeight combines inverse accuracy with normalized signal quality,
// clamped to the configured band.
func (s *Smoother) sampleWeight(loc FilteredLocation, signalQuality int) float64 {
	accWeight := 1.0 / math.Max(loc.Accuracy, 1.0)
	quality := clamp(float64(signalQuality)/100.0, 0.1, 1.0)
	return clamp(accWeight*quality, s.cfg.MinWeight, s.cfg.MaxWeight)
}

func (s *Smoother) push(ws weightedSample) {
	s.buf[s.head] = ws
	s.head = (s.head + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
}

// at returns the i-th buffered sample, oldest first.
func (s *Smoother) at(i int) weightedSample {
	idx := (s.head - s.size + i + len(s.buf)) % len(s.buf)
	return s.buf[idx]
}

func (s *Smoother) weightedAverage(latest FilteredLocation) FilteredLocation {
	now := latest.Timestamp

	var totalWeight, lat, lon, alt float64
	hasAltitude := false
	for i := 0; i < s.size; i++ {
		ws := s.at(i)
		age := float64(now-ws.timestamp) / 1000.0
		if age < 0 {
			age = 0
		}
		w := ws.weight * math.Exp(-age/s.cfg.SmootherDecayS)

		totalWeight += w
		lat += ws.loc.Lat * w
		lon += ws.loc.Lon * w
		if ws.loc.HasAltitude {
			alt += ws.loc.Altitude * w
			hasAltitude = true
		}
	}

	if totalWeight < negligibleWeight {
		return latest
	}

	out := latest
	out.Lat = lat / totalWeight
	out.Lon = lon / totalWeight
	if hasAltitude {
		out.Altitude = alt / totalWeight
		out.HasAltitude = true
	}
	// Accuracy stays that of the most recent sample: the smoother reduces
	// jitter, it does not re-estimate uncertainty.
	return out
}
