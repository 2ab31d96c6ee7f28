package gnss

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"anchorwatch/filter"
)

// UEREMeters is the nominal user-equivalent range error used to turn HDOP
// into a horizontal accuracy estimate: accuracy ~= HDOP * UERE.
const UEREMeters = 5.0

// Assembler folds an NMEA sentence stream into per-fix reports. GGA supplies
// HDOP (accuracy) and altitude, GSV supplies per-satellite C/N0, GSA marks
// which satellites contribute to the solution, and a valid RMC closes the
// epoch and emits the report.
type Assembler struct {
	hdop        float64
	hasHDOP     bool
	altitude    float64
	hasAltitude bool

	// GSV sequences arrive split over several sentences per talker; a
	// partial group replaces the finished one only once complete.
	building map[string][]filter.SatelliteObservation
	finished map[string][]filter.SatelliteObservation
	usedSVs  map[string]map[int]bool
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		building: make(map[string][]filter.SatelliteObservation),
		finished: make(map[string][]filter.SatelliteObservation),
		usedSVs:  make(map[string]map[int]bool),
	}
}

// Push parses one sentence and returns a report when the sentence completes
// a fix epoch, nil otherwise. Parse failures on noisy lines are returned for
// the caller to count or ignore; they never corrupt assembler state.
func (a *Assembler) Push(line string, tsMs int64) (*Report, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil, err
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.HDOP > 0 {
			a.hdop = s.HDOP
			a.hasHDOP = true
		}
		a.altitude = s.Altitude
		a.hasAltitude = true
		return nil, nil
	case nmea.GSV:
		a.pushGSV(s)
		return nil, nil
	case nmea.GSA:
		a.pushGSA(s)
		return nil, nil
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return nil, nil
		}
		return a.emit(s, tsMs), nil
	default:
		return nil, nil
	}
}

func (a *Assembler) pushGSV(s nmea.GSV) {
	talker := s.TalkerID()
	if s.MessageNumber == 1 {
		a.building[talker] = a.building[talker][:0]
	}
	c := constellationForTalker(talker)
	for _, info := range s.Info {
		a.building[talker] = append(a.building[talker], filter.SatelliteObservation{
			Constellation: c,
			SVID:          int(info.SVPRNNumber),
			CN0DbHz:       float64(info.SNR),
		})
	}
	if s.MessageNumber == s.TotalMessages {
		group := make([]filter.SatelliteObservation, len(a.building[talker]))
		copy(group, a.building[talker])
		a.finished[talker] = group
	}
}

func (a *Assembler) pushGSA(s nmea.GSA) {
	talker := s.TalkerID()
	used := make(map[int]bool, len(s.SV))
	for _, sv := range s.SV {
		if id := atoiSafe(sv); id > 0 {
			used[id] = true
		}
	}
	a.usedSVs[talker] = used
}

func (a *Assembler) emit(s nmea.RMC, tsMs int64) *Report {
	fix := filter.Fix{
		Lat:       s.Latitude,
		Lon:       s.Longitude,
		Speed:     s.Speed * filter.KnotsToMps,
		HasSpeed:  true,
		Timestamp: tsMs,
	}
	if a.hasHDOP {
		fix.Accuracy = a.hdop * UEREMeters
		fix.HasAccuracy = true
	}
	if a.hasAltitude {
		fix.Altitude = a.altitude
		fix.HasAltitude = true
	}

	var sats []filter.SatelliteObservation
	for talker, group := range a.finished {
		used := a.usedSVs[talker]
		if used == nil {
			// A mixed-constellation receiver reports GSA under GN.
			used = a.usedSVs["GN"]
		}
		for _, obs := range group {
			obs.UsedInFix = used[obs.SVID]
			sats = append(sats, obs)
		}
	}
	return &Report{Fix: fix, Satellites: sats}
}

func constellationForTalker(talker string) filter.Constellation {
	switch talker {
	case "GP":
		return filter.ConstellationGPS
	case "GL":
		return filter.ConstellationGLONASS
	case "GA":
		return filter.ConstellationGalileo
	case "GB", "BD":
		return filter.ConstellationBeiDou
	case "GQ", "QZ":
		return filter.ConstellationQZSS
	case "GI":
		return filter.ConstellationNavIC
	default:
		return filter.ConstellationUnknown
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
