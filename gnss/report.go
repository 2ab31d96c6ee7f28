// Package gnss turns NMEA 0183 sentence streams, live from a serial receiver
// or replayed from a recorded log, into per-fix reports for the filtering
// pipeline.
package gnss

import "anchorwatch/filter"

// Report is one assembled fix epoch: the raw fix plus the satellite
// observations visible at that epoch. Satellites may be empty when the
// receiver emits no GSV sentences; signal quality is then unavailable.
type Report struct {
	Fix        filter.Fix
	Satellites []filter.SatelliteObservation
}

// SignalQuality returns the 0-100 quality score for this report, or -1 when
// no satellite observations are available.
func (r Report) SignalQuality() int {
	if len(r.Satellites) == 0 {
		return -1
	}
	return filter.SignalQuality(r.Satellites)
}

// Handler consumes assembled reports.
type Handler func(Report)
