package gnss

import (
	"fmt"
	"math"
	"testing"

	"anchorwatch/filter"
)

// sentence frames an NMEA body with the "$" lead-in and its checksum.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

func TestAssemblerFullEpoch(t *testing.T) {
	a := NewAssembler()
	lines := []string{
		sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"),
		sentence("GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45"),
		sentence("GPGSV,2,2,08,19,13,291,38,22,21,175,40,24,35,110,42,32,51,050,44"),
		sentence("GPGSA,A,3,01,02,12,14,19,,,,,,,,1.5,0.9,1.1"),
	}
	for _, l := range lines {
		rep, err := a.Push(l, 1000)
		if err != nil {
			t.Fatalf("push %q: %v", l, err)
		}
		if rep != nil {
			t.Fatalf("report before RMC from %q", l)
		}
	}

	rep, err := a.Push(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"), 1000)
	if err != nil {
		t.Fatalf("push rmc: %v", err)
	}
	if rep == nil {
		t.Fatal("no report after valid RMC")
	}

	if math.Abs(rep.Fix.Lat-48.1173) > 1e-4 || math.Abs(rep.Fix.Lon-11.516667) > 1e-4 {
		t.Errorf("position = (%v, %v)", rep.Fix.Lat, rep.Fix.Lon)
	}
	if !rep.Fix.HasAccuracy || math.Abs(rep.Fix.Accuracy-4.5) > 1e-9 {
		t.Errorf("accuracy = %v (has=%v), want 4.5", rep.Fix.Accuracy, rep.Fix.HasAccuracy)
	}
	if !rep.Fix.HasAltitude || rep.Fix.Altitude != 545.4 {
		t.Errorf("altitude = %v (has=%v), want 545.4", rep.Fix.Altitude, rep.Fix.HasAltitude)
	}
	if !rep.Fix.HasSpeed || math.Abs(rep.Fix.Speed-22.4*filter.KnotsToMps) > 1e-9 {
		t.Errorf("speed = %v, want %v", rep.Fix.Speed, 22.4*filter.KnotsToMps)
	}
	if rep.Fix.Timestamp != 1000 {
		t.Errorf("timestamp = %d, want 1000", rep.Fix.Timestamp)
	}

	if len(rep.Satellites) != 8 {
		t.Fatalf("satellites = %d, want 8", len(rep.Satellites))
	}
	used := map[int]bool{}
	for _, s := range rep.Satellites {
		if s.Constellation != filter.ConstellationGPS {
			t.Errorf("constellation for SV %d = %v", s.SVID, s.Constellation)
		}
		used[s.SVID] = s.UsedInFix
	}
	for _, id := range []int{1, 2, 12, 14, 19} {
		if !used[id] {
			t.Errorf("SV %d not marked used in fix", id)
		}
	}
	for _, id := range []int{22, 24, 32} {
		if used[id] {
			t.Errorf("SV %d marked used in fix", id)
		}
	}

	if q := rep.SignalQuality(); q != 88 {
		t.Errorf("signal quality = %d, want 88", q)
	}
}

func TestAssemblerInvalidRMC(t *testing.T) {
	a := NewAssembler()
	rep, err := a.Push(sentence("GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"), 0)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if rep != nil {
		t.Errorf("report from void RMC: %+v", rep)
	}
}

func TestAssemblerNoiseDoesNotCorruptState(t *testing.T) {
	a := NewAssembler()
	if _, err := a.Push(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"), 0); err != nil {
		t.Fatalf("push gga: %v", err)
	}
	if _, err := a.Push("$GPRMC,garbled*00", 0); err == nil {
		t.Error("garbled line accepted")
	}
	rep, err := a.Push(sentence("GPRMC,123520,A,4807.038,N,01131.000,E,000.0,084.4,230394,003.1,W"), 1000)
	if err != nil || rep == nil {
		t.Fatalf("report after noise = %v, %v", rep, err)
	}
	if !rep.Fix.HasAccuracy {
		t.Error("accuracy lost after noise line")
	}
}

func TestAssemblerMultiConstellation(t *testing.T) {
	a := NewAssembler()
	lines := []string{
		sentence("GPGSV,1,1,02,01,40,083,46,02,17,308,41"),
		sentence("GLGSV,1,1,02,65,30,100,38,66,45,200,42"),
		sentence("GNGSA,A,3,01,65,,,,,,,,,,,1.5,0.9,1.1"),
	}
	for _, l := range lines {
		if _, err := a.Push(l, 0); err != nil {
			t.Fatalf("push %q: %v", l, err)
		}
	}
	rep, err := a.Push(sentence("GNRMC,123519,A,4807.038,N,01131.000,E,000.0,084.4,230394,003.1,W"), 0)
	if err != nil || rep == nil {
		t.Fatalf("report = %v, %v", rep, err)
	}

	st := filter.SummarizeConstellations(rep.Satellites)
	if st[filter.ConstellationGPS].Total != 2 || st[filter.ConstellationGLONASS].Total != 2 {
		t.Errorf("constellation totals = %+v", st)
	}
	// Mixed-talker GSA applies across constellations.
	for _, s := range rep.Satellites {
		want := s.SVID == 1 || s.SVID == 65
		if s.UsedInFix != want {
			t.Errorf("SV %d used = %v, want %v", s.SVID, s.UsedInFix, want)
		}
	}
}

func TestSignalQualityAbsentWithoutGSV(t *testing.T) {
	a := NewAssembler()
	rep, err := a.Push(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,000.0,084.4,230394,003.1,W"), 0)
	if err != nil || rep == nil {
		t.Fatalf("report = %v, %v", rep, err)
	}
	if q := rep.SignalQuality(); q != -1 {
		t.Errorf("quality = %d, want -1 when no GSV seen", q)
	}
}
