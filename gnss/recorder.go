package gnss

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// Recorder appends raw NMEA sentences to a log file that Replayer can feed
// back. Sentences are stored verbatim, one per line.
type Recorder struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	n    int64
	path string
}

// NewRecorder opens (or creates) the log file for appending.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return &Recorder{f: f, w: bufio.NewWriter(f), path: path}, nil
}

// WriteSentence appends one sentence. Write errors are silently dropped so a
// full disk never takes down the live pipeline; Close reports the flush error.
func (r *Recorder) WriteSentence(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return
	}
	if _, err := r.w.WriteString(line + "\n"); err == nil {
		r.n++
	}
}

// Sentences reports the number of sentences written so far.
func (r *Recorder) Sentences() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Close flushes and closes the log.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	r.w = nil
	r.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
