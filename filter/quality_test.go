package filter

import "testing"

func sats(cn0s ...float64) []SatelliteObservation {
	out := make([]SatelliteObservation, len(cn0s))
	for i, c := range cn0s {
		out[i] = SatelliteObservation{Constellation: ConstellationGPS, SVID: i + 1, CN0DbHz: c}
	}
	return out
}

func TestSignalQualityMapping(t *testing.T) {
	cases := []struct {
		name string
		sats []SatelliteObservation
		want int
	}{
		{"no satellites", nil, 0},
		{"poor 20 dBHz", sats(20, 20, 20), 0},
		{"below floor", sats(10, 15), 0},
		{"midpoint 32.5 dBHz", sats(32.5, 32.5), 50},
		{"excellent 45 dBHz", sats(45, 45, 45, 45), 100},
		{"clamped above", sats(55, 55), 100},
		{"untracked ignored", sats(0, 0, 40), 80},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SignalQuality(c.sats); got != c.want {
				t.Errorf("quality = %d, want %d", got, c.want)
			}
		})
	}
}

func TestSummarizeConstellations(t *testing.T) {
	obs := []SatelliteObservation{
		{Constellation: ConstellationGPS, SVID: 1, CN0DbHz: 40, UsedInFix: true},
		{Constellation: ConstellationGPS, SVID: 2, CN0DbHz: 30},
		{Constellation: ConstellationGalileo, SVID: 5, CN0DbHz: 44, UsedInFix: true},
	}
	st := SummarizeConstellations(obs)
	gps := st[ConstellationGPS]
	if gps.Total != 2 || gps.UsedInFix != 1 {
		t.Errorf("GPS stats = %+v", gps)
	}
	if gps.AvgCN0 != 35 || gps.MaxCN0 != 40 {
		t.Errorf("GPS cn0 stats = %+v", gps)
	}
	if _, ok := st[ConstellationGLONASS]; ok {
		t.Error("empty constellation present in summary")
	}
	if st[ConstellationGalileo].Total != 1 {
		t.Errorf("Galileo stats = %+v", st[ConstellationGalileo])
	}
}
