// Package recording keeps an append-only event log of one task run inside
// its sandbox, so a run can be inspected after the process is gone.
package recording

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event types.
const (
	TypeMeta   = "meta"
	TypePrompt = "prompt"
	TypeStdout = "stdout"
	TypeStderr = "stderr"
)

const eventsFile = "events.jsonl"

// Event is one line of the log.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	Data      string    `json:"data"`
}

// Dir returns the recording directory for a run inside sandbox.
func Dir(sandbox, runID string) string {
	return filepath.Join(sandbox, ".cli-worker", "runs", runID)
}

// Recorder appends events to <dir>/events.jsonl as they happen. Write
// errors do not interrupt recording; the first one is returned by Close.
type Recorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	events []Event
	err    error
	now    func() time.Time
}

// New creates dir and opens its event log for appending.
func New(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recording dir: %w", err)
	}
	path := filepath.Join(dir, eventsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	return &Recorder{path: path, file: f, now: time.Now}, nil
}

// Path returns the event log location.
func (r *Recorder) Path() string { return r.path }

// RecordMeta records key=value.
func (r *Recorder) RecordMeta(key, value string) {
	r.record(TypeMeta, key+"="+value)
}

func (r *Recorder) RecordPrompt(prompt string) { r.record(TypePrompt, prompt) }

func (r *Recorder) RecordStdout(line string) { r.record(TypeStdout, line) }

// RecordStderr records captured stderr. Empty input is skipped.
func (r *Recorder) RecordStderr(data string) {
	if data == "" {
		return
	}
	r.record(TypeStderr, data)
}

func (r *Recorder) record(typ, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := Event{Timestamp: r.now().UTC(), Type: typ, Data: data}
	r.events = append(r.events, ev)
	if r.file == nil || r.err != nil {
		return
	}
	line, err := json.Marshal(ev)
	if err == nil {
		_, err = r.file.Write(append(line, '\n'))
	}
	if err != nil {
		r.err = fmt.Errorf("writing %s: %w", r.path, err)
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Event, len(r.events))
	copy(cp, r.events)
	return cp
}

// Close closes the log and returns the first write error, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	cerr := r.file.Close()
	r.file = nil
	return errors.Join(r.err, cerr)
}

// Load reads an event log written by a Recorder. Lines that do not decode
// are skipped, so a log cut short by a crash still loads.
func Load(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	br := bufio.NewReader(f)
	for {
		line, rerr := br.ReadBytes('\n')
		if len(line) > 0 {
			var ev Event
			if json.Unmarshal(line, &ev) == nil {
				events = append(events, ev)
			}
		}
		if rerr != nil {
			break
		}
	}
	return events, nil
}
