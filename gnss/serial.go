package gnss

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"
)

// SerialConfig describes the receiver connection.
type SerialConfig struct {
	Port string
	Baud int
}

// SerialReader streams sentences from a serial-attached GNSS receiver and
// pushes them through an assembler. Reports are stamped with wall-clock
// arrival time.
type SerialReader struct {
	cfg      SerialConfig
	port     serial.Port
	asm      *Assembler
	recorder *Recorder

	parseErrors int64
}

// NewSerialReader returns a reader for the given port. The recorder is
// optional; when set every raw line is appended to it.
func NewSerialReader(cfg SerialConfig, recorder *Recorder) *SerialReader {
	if cfg.Baud == 0 {
		cfg.Baud = 4800
	}
	return &SerialReader{cfg: cfg, asm: NewAssembler(), recorder: recorder}
}

// Connect opens the serial port.
func (r *SerialReader) Connect() error {
	mode := &serial.Mode{BaudRate: r.cfg.Baud}
	port, err := serial.Open(r.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.cfg.Port, err)
	}
	r.port = port
	log.Printf("[gnss] connected to %s @ %d baud", r.cfg.Port, r.cfg.Baud)
	return nil
}

// Run reads sentences until the context is cancelled or the port fails,
// invoking the handler for every assembled report.
func (r *SerialReader) Run(ctx context.Context, handler Handler) error {
	if r.port == nil {
		return fmt.Errorf("serial reader not connected")
	}
	scanner := bufio.NewScanner(r.port)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if r.recorder != nil {
			r.recorder.WriteSentence(line)
		}
		rep, err := r.asm.Push(line, time.Now().UnixMilli())
		if err != nil {
			r.parseErrors++
			continue
		}
		if rep != nil {
			handler(*rep)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serial read: %w", err)
	}
	return nil
}

// ParseErrors reports the count of sentences that failed to parse.
func (r *SerialReader) ParseErrors() int64 { return r.parseErrors }

// Close releases the serial port.
func (r *SerialReader) Close() error {
	if r.port == nil {
		return nil
	}
	err := r.port.Close()
	r.port = nil
	return err
}
