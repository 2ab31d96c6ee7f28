package filter

import "sync"

// Stats bundles the diagnostic counters of every pipeline stage.
type Stats struct {
	Gate         GateStats   `json:"gate"`
	Kalman       KalmanStats `json:"kalman"`
	SmootherFill int         `json:"smoother_fill"`
	AlarmState   string      `json:"alarm_state,omitempty"`
}

// Pipeline wires gate -> estimator -> smoother -> watchdog behind a single
// lock. One pipeline serves one monitoring session; fixes flow through it one
// at a time and every accepted fix runs to completion. The lock covers the
// whole per-fix path because partial interleaving across stages would let a
// gate check run against an estimator state mutated by a concurrent call.
type Pipeline struct {
	mu sync.Mutex

	cfg      Config
	gate     *Gate
	est      *Estimator
	smoother *Smoother
	watchdog *Watchdog // nil until an anchor is set
}

// NewPipeline builds a pipeline with no anchor; positions are filtered and
// emitted but no drift decisions are made until SetAnchor.
func NewPipeline(cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:      cfg,
		gate:     NewGate(cfg),
		est:      NewEstimator(cfg),
		smoother: NewSmoother(cfg),
	}
}

// Process runs one raw fix through the whole pipeline. signalQuality is the
// external 0-100 score; pass a negative value when none is available and the
// neutral default applies. A rejected fix returns (nil, nil); an accepted fix
// returns the smoothed position and, when an anchor is set and the radius was
// crossed, the alarm transition.
func (p *Pipeline) Process(fix *Fix, signalQuality int) (*FilteredLocation, *AlarmTransition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.gate.LastAccepted()
	var elapsedMs int64
	if prev != nil && fix != nil {
		elapsedMs = fix.Timestamp - prev.Timestamp
	}
	if p.gate.IsOutlier(fix, prev, elapsedMs) {
		return nil, nil
	}

	acc := p.cfg.DefaultAccuracyM
	if fix.HasAccuracy {
		acc = fix.Accuracy
	}
	estimate := p.est.Filter(*fix, acc)

	if signalQuality < 0 {
		signalQuality = p.cfg.DefaultQuality
	}
	smoothed := p.smoother.Smooth(estimate, signalQuality)

	var transition *AlarmTransition
	if p.watchdog != nil {
		transition = p.watchdog.Observe(smoothed)
	}
	return &smoothed, transition
}

// SetAnchor starts a monitoring session around the given point. Gate,
// estimator and smoother are reset together: stale state from a previous
// session must not leak into the new one.
func (p *Pipeline) SetAnchor(lat, lon, radiusM float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate.Reset()
	p.est.Reset()
	p.smoother.Reset()
	p.watchdog = NewWatchdog(lat, lon, radiusM)
}

// ClearAnchor tears the monitoring session down. The filtering stages keep
// running so positions remain available without drift decisions.
func (p *Pipeline) ClearAnchor() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchdog = nil
}

// AnchorSet reports whether a monitoring session is active.
func (p *Pipeline) AnchorSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchdog != nil
}

// SetProviderAvailable forwards the provider-availability signal to the
// watchdog, if a session is active.
func (p *Pipeline) SetProviderAvailable(available bool, timestampMs int64) *AlarmTransition {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchdog == nil {
		return nil
	}
	return p.watchdog.SetProviderAvailable(available, timestampMs)
}

// AlarmState returns the watchdog state, or Quiet when no session is active.
func (p *Pipeline) AlarmState() AlarmState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchdog == nil {
		return Quiet
	}
	return p.watchdog.State()
}

// Stats snapshots the diagnostic counters of every stage.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{
		Gate:         p.gate.Stats(),
		Kalman:       p.est.Stats(),
		SmootherFill: p.smoother.FillLevel(),
	}
	if p.watchdog != nil {
		s.AlarmState = p.watchdog.State().String()
	}
	return s
}
