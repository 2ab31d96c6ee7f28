package filter

// Watchdog compares smoothed positions against a fixed anchor point and
// latches the alarm state across the radius boundary. There is no dead band
// beyond the radius itself: the state only changes when the distance crosses
// it, and re-evaluating on the same side is a no-op.
//
// Loss of the positioning provider is itself an unsafe condition: it forces
// Alarmed immediately and suspends the distance rule until fixes resume.
type Watchdog struct {
	anchorLat float64
	anchorLon float64
	radiusM   float64

	state        AlarmState
	providerUp   bool
	lastDistance float64
}

// NewWatchdog starts a monitoring session around the given anchor in the
// Quiet state.
func NewWatchdog(anchorLat, anchorLon, radiusM float64) *Watchdog {
	return &Watchdog{
		anchorLat:  anchorLat,
		anchorLon:  anchorLon,
		radiusM:    radiusM,
		state:      Quiet,
		providerUp: true,
	}
}

// State returns the current alarm state.
func (w *Watchdog) State() AlarmState { return w.state }

// Anchor returns the session's anchor point and radius.
func (w *Watchdog) Anchor() (lat, lon, radiusM float64) {
	return w.anchorLat, w.anchorLon, w.radiusM
}

// Observe evaluates one smoothed position and returns the transition it
// caused, or nil. While the provider is down the distance rule is suspended;
// the forced alarm holds until availability returns.
func (w *Watchdog) Observe(loc FilteredLocation) *AlarmTransition {
	dist := DistanceM(loc.Lat, loc.Lon, w.anchorLat, w.anchorLon)
	w.lastDistance = dist
	if !w.providerUp {
		return nil
	}

	switch {
	case dist > w.radiusM && w.state == Quiet:
		w.state = Alarmed
		return &AlarmTransition{From: Quiet, To: Alarmed, DistanceM: dist, Timestamp: loc.Timestamp}
	case dist <= w.radiusM && w.state == Alarmed:
		w.state = Quiet
		return &AlarmTransition{From: Alarmed, To: Quiet, DistanceM: dist, Timestamp: loc.Timestamp}
	default:
		return nil
	}
}

// SetProviderAvailable feeds the external provider-availability signal.
// Going unavailable forces Alarmed regardless of the last known distance.
// Becoming available again does not clear the alarm by itself; the next
// in-radius observation does.
func (w *Watchdog) SetProviderAvailable(available bool, timestampMs int64) *AlarmTransition {
	if !available {
		w.providerUp = false
		if w.state == Quiet {
			w.state = Alarmed
			return &AlarmTransition{From: Quiet, To: Alarmed, DistanceM: w.lastDistance, Timestamp: timestampMs}
		}
		return nil
	}
	w.providerUp = true
	return nil
}
