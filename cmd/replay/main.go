package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"anchorwatch/filter"
	"anchorwatch/gnss"
)

// Offline run of a recorded NMEA log through the full pipeline: prints every
// alarm transition and writes the filtered track as CSV.
func main() {
	logPath := flag.String("log", "", "Input NMEA log file")
	anchorStr := flag.String("anchor", "", "Anchor position as lat,lon (default: first filtered position)")
	radius := flag.Float64("radius", 30.0, "Watch radius in meters")
	outPath := flag.String("out", "track.csv", "Output CSV path")
	flag.Parse()

	if *logPath == "" {
		fmt.Println("--log required")
		os.Exit(1)
	}

	pipeline := filter.NewPipeline(filter.DefaultConfig())

	var anchorLat, anchorLon float64
	anchorGiven := false
	if *anchorStr != "" {
		parts := strings.Split(*anchorStr, ",")
		if len(parts) != 2 {
			fmt.Println("--anchor must be lat,lon")
			os.Exit(1)
		}
		var err1, err2 error
		anchorLat, err1 = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		anchorLon, err2 = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			fmt.Println("--anchor must be lat,lon")
			os.Exit(1)
		}
		pipeline.SetAnchor(anchorLat, anchorLon, *radius)
		anchorGiven = true
	}

	out, err := os.Create(*outPath)
	if err != nil {
		fmt.Printf("create output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()
	w := csv.NewWriter(out)
	defer w.Flush()
	w.Write([]string{"ts_ms", "lat", "lon", "accuracy_m", "speed_mps"})

	transitions := 0
	positions := 0
	r := &gnss.Replayer{Path: *logPath, Speed: 0}
	err = r.Run(context.Background(), func(rep gnss.Report) {
		loc, tr := pipeline.Process(&rep.Fix, rep.SignalQuality())
		if loc == nil {
			return
		}
		positions++
		if !anchorGiven {
			// Anchor at the first filtered position.
			anchorLat, anchorLon = loc.Lat, loc.Lon
			pipeline.SetAnchor(anchorLat, anchorLon, *radius)
			anchorGiven = true
		}
		w.Write([]string{
			strconv.FormatInt(loc.Timestamp, 10),
			strconv.FormatFloat(loc.Lat, 'f', 7, 64),
			strconv.FormatFloat(loc.Lon, 'f', 7, 64),
			strconv.FormatFloat(loc.Accuracy, 'f', 2, 64),
			strconv.FormatFloat(loc.Speed, 'f', 2, 64),
		})
		if tr != nil {
			transitions++
			fmt.Printf("t=%8dms  %s -> %s  distance %.1f m\n",
				tr.Timestamp, tr.From, tr.To, tr.DistanceM)
		}
	})
	if err != nil {
		fmt.Printf("replay failed: %v\n", err)
		os.Exit(1)
	}

	stats := pipeline.Stats()
	fmt.Printf("fixes: %d checked, %d rejected, %d filtered positions, %d transitions\n",
		stats.Gate.Checks, stats.Gate.Rejects, positions, transitions)
	for reason, n := range stats.Gate.ByReason {
		fmt.Printf("  rejected %-24s %d\n", reason, n)
	}
	fmt.Printf("track written to %s\n", *outPath)
}
