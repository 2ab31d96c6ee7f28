package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"anchorwatch/filter"
	"anchorwatch/gnss"
)

// Sink receives filtered positions and alarm transitions.
type Sink interface {
	PublishPosition(filter.FilteredLocation)
	PublishAlarm(filter.AlarmTransition)
}

// AnchorInfo describes the active monitoring session.
type AnchorInfo struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radius_m"`
}

// SessionStats is the snapshot served to clients.
type SessionStats struct {
	Pipeline       filter.Stats                         `json:"pipeline"`
	Anchor         *AnchorInfo                          `json:"anchor,omitempty"`
	Last           *filter.FilteredLocation             `json:"last,omitempty"`
	Starved        bool                                 `json:"starved"`
	Reports        int64                                `json:"reports"`
	SignalQuality  int                                  `json:"signal_quality"`
	Constellations map[string]filter.ConstellationStats `json:"constellations,omitempty"`
}

// Session is one anchor watch: it feeds every GNSS report through the
// pipeline, keeps the recent track, watches for fix starvation and fans the
// results out to the registered sinks.
type Session struct {
	mu       sync.Mutex
	cfg      *Config
	pipeline *filter.Pipeline
	sinks    []Sink

	track   *trackRing
	anchor  *AnchorInfo
	last    *filter.FilteredLocation
	lastRep *gnss.Report
	reports int64

	starvation time.Duration
	starveTmr  *time.Timer
	starveGen  int
	starved    bool
}

// NewSession builds a session from the config. A pre-armed anchor from the
// config starts the watch immediately.
func NewSession(cfg *Config) *Session {
	s := &Session{
		cfg:        cfg,
		pipeline:   filter.NewPipeline(cfg.Filter.ToFilter()),
		track:      newTrackRing(cfg.Watch.TrackCapacity),
		starvation: time.Duration(cfg.Watch.StarvationS * float64(time.Second)),
	}
	if cfg.Anchor.Set {
		s.SetAnchor(cfg.Anchor.Lat, cfg.Anchor.Lon, cfg.Anchor.RadiusM)
	}
	// The clock starts at construction: a receiver that never delivers a
	// single fix must still trip the starvation alarm.
	s.mu.Lock()
	s.armStarvationTimer()
	s.mu.Unlock()
	return s
}

// AddSink registers a sink.
func (s *Session) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// HandleReport is the gnss.Handler for this session. Only an accepted fix
// feeds the starvation watchdog: a stream of pure outliers is as useless for
// anchor watching as no stream at all.
func (s *Session) HandleReport(rep gnss.Report) {
	s.mu.Lock()
	s.reports++
	s.lastRep = &rep

	loc, transition := s.pipeline.Process(&rep.Fix, rep.SignalQuality())
	if loc != nil {
		if s.starved {
			s.starved = false
			log.Printf("[session] position source resumed after starvation")
			s.pipeline.SetProviderAvailable(true, rep.Fix.Timestamp)
		}
		s.armStarvationTimer()
		s.last = loc
		s.track.push(*loc)
	}
	sinks := s.sinks
	s.mu.Unlock()

	if loc != nil {
		for _, sink := range sinks {
			sink.PublishPosition(*loc)
		}
	}
	if transition != nil {
		log.Printf("[session] alarm %s -> %s at %.1f m", transition.From, transition.To, transition.DistanceM)
		for _, sink := range sinks {
			sink.PublishAlarm(*transition)
		}
	}
}

// armStarvationTimer must be called with the lock held. The generation
// counter invalidates a timer whose callback already fired and is waiting on
// the lock; Stop alone cannot cancel such a timer.
func (s *Session) armStarvationTimer() {
	if s.starvation <= 0 {
		return
	}
	s.starveGen++
	gen := s.starveGen
	if s.starveTmr != nil {
		s.starveTmr.Stop()
	}
	s.starveTmr = time.AfterFunc(s.starvation, func() { s.onStarved(gen) })
}

func (s *Session) onStarved(gen int) {
	s.mu.Lock()
	if gen != s.starveGen {
		s.mu.Unlock()
		return
	}
	s.starved = true
	log.Printf("[session] no usable fix for %s, declaring position source unavailable", s.starvation)
	transition := s.pipeline.SetProviderAvailable(false, time.Now().UnixMilli())
	sinks := s.sinks
	s.mu.Unlock()

	if transition != nil {
		for _, sink := range sinks {
			sink.PublishAlarm(*transition)
		}
	}
}

// SetAnchor arms the watch around the given point.
func (s *Session) SetAnchor(lat, lon, radiusM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchor = &AnchorInfo{Lat: lat, Lon: lon, RadiusM: radiusM}
	s.pipeline.SetAnchor(lat, lon, radiusM)
	log.Printf("[session] anchor set at (%.6f, %.6f) radius %.1f m", lat, lon, radiusM)
}

// DropAnchorHere arms the watch at the last filtered position.
func (s *Session) DropAnchorHere(radiusM float64) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return fmt.Errorf("no position yet")
	}
	s.SetAnchor(last.Lat, last.Lon, radiusM)
	return nil
}

// ClearAnchor disarms the watch.
func (s *Session) ClearAnchor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchor = nil
	s.pipeline.ClearAnchor()
	log.Printf("[session] anchor cleared")
}

// Track returns the retained track, oldest first.
func (s *Session) Track() []filter.FilteredLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track.snapshot()
}

// Stats snapshots the session for clients.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStats{
		Pipeline:      s.pipeline.Stats(),
		Anchor:        s.anchor,
		Last:          s.last,
		Starved:       s.starved,
		Reports:       s.reports,
		SignalQuality: -1,
	}
	if s.lastRep != nil {
		st.SignalQuality = s.lastRep.SignalQuality()
		if len(s.lastRep.Satellites) > 0 {
			st.Constellations = make(map[string]filter.ConstellationStats)
			for c, cs := range filter.SummarizeConstellations(s.lastRep.Satellites) {
				st.Constellations[c.String()] = cs
			}
		}
	}
	return st
}

// Close stops the starvation timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starveGen++
	if s.starveTmr != nil {
		s.starveTmr.Stop()
		s.starveTmr = nil
	}
}

// trackRing retains the most recent positions in insertion order.
type trackRing struct {
	buf  []filter.FilteredLocation
	head int
	n    int
}

func newTrackRing(capacity int) *trackRing {
	if capacity <= 0 {
		capacity = 3600
	}
	return &trackRing{buf: make([]filter.FilteredLocation, capacity)}
}

func (t *trackRing) push(loc filter.FilteredLocation) {
	t.buf[t.head] = loc
	t.head = (t.head + 1) % len(t.buf)
	if t.n < len(t.buf) {
		t.n++
	}
}

func (t *trackRing) snapshot() []filter.FilteredLocation {
	out := make([]filter.FilteredLocation, t.n)
	start := (t.head - t.n + len(t.buf)) % len(t.buf)
	for i := 0; i < t.n; i++ {
		out[i] = t.buf[(start+i)%len(t.buf)]
	}
	return out
}
