package gnss

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Replayer feeds a recorded NMEA log back through an assembler. Pacing is
// derived from the RMC time-of-day fields in the log itself, scaled by
// Speed, so a one-hour recording replays in real time at Speed 1 and
// instantly at Speed 0.
type Replayer struct {
	Path  string
	Speed float64
}

// Run replays the log and invokes the handler for every assembled report.
// Report timestamps form a synthetic millisecond clock starting at zero,
// advancing by the recorded fix intervals regardless of replay speed.
func (r *Replayer) Run(ctx context.Context, handler Handler) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return fmt.Errorf("open replay log: %w", err)
	}
	defer f.Close()

	asm := NewAssembler()
	clock := int64(0)
	prevDay := -1.0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()

		if day, ok := rmcTimeOfDayMs(line); ok {
			if prevDay >= 0 {
				delta := day - prevDay
				if delta < 0 {
					// Midnight rollover.
					delta += 24 * 3600 * 1000
				}
				if delta <= 0 || delta > 60_000 {
					delta = 1000
				}
				clock += int64(delta)
				if r.Speed > 0 {
					wait := time.Duration(delta/r.Speed) * time.Millisecond
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(wait):
					}
				}
			}
			prevDay = day
		}

		rep, err := asm.Push(line, clock)
		if err != nil {
			continue
		}
		if rep != nil {
			handler(*rep)
		}
	}
	return scanner.Err()
}

// rmcTimeOfDayMs extracts the hhmmss.sss field from an RMC sentence as
// milliseconds since midnight.
func rmcTimeOfDayMs(line string) (float64, bool) {
	if !strings.Contains(line, "RMC,") {
		return 0, false
	}
	fields := strings.Split(line, ",")
	if len(fields) < 2 || len(fields[1]) < 6 {
		return 0, false
	}
	hh, err1 := strconv.Atoi(fields[1][0:2])
	mm, err2 := strconv.Atoi(fields[1][2:4])
	ss, err3 := strconv.ParseFloat(fields[1][4:], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return float64(hh*3600+mm*60)*1000 + ss*1000, true
}
