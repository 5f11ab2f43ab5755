// Package capture records sent replication frames to a zstd-compressed
// JSON lines file for offline bandwidth analysis.
package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record is one captured send.
type Record struct {
	Time      time.Time `json:"time"`
	Name      string    `json:"name"`
	Delivery  string    `json:"delivery"`
	To        []uint64  `json:"to,omitempty"`
	Broadcast bool      `json:"broadcast,omitempty"`
	Except    []uint64  `json:"except,omitempty"`
	Size      int       `json:"size"`
	Payload   []byte    `json:"payload"`
}

// Writer appends records to a compressed stream. It is safe for
// concurrent use.
type Writer struct {
	mu   sync.Mutex
	file io.Closer
	zw   *zstd.Encoder
	enc  *json.Encoder
	n    int
}

// Create opens a new capture file in dir, named after the current time.
func Create(dir string) (*Writer, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating capture dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl.zst", time.Now().UTC().Format("20060102T150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("creating capture file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	w.file = f
	return w, path, nil
}

// NewWriter compresses records into out. Close does not close out.
func NewWriter(out io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &Writer{zw: zw, enc: json.NewEncoder(zw)}, nil
}

func (w *Writer) Record(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return errors.New("capture closed")
	}
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("encoding capture record: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close flushes the stream and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	w.enc = nil
	err := w.zw.Close()
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadAll decodes every record in a capture stream.
func ReadAll(in io.Reader) ([]Record, error) {
	zr, err := zstd.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer zr.Close()

	var out []Record
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return out, fmt.Errorf("decoding capture record %d: %w", len(out)+1, err)
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("reading capture: %w", err)
	}
	return out, nil
}

// Summary aggregates records by message name.
type Summary struct {
	Frames int
	Bytes  int
}

// Summarize totals frames and bytes per name.
func Summarize(records []Record) map[string]Summary {
	out := make(map[string]Summary)
	for _, r := range records {
		s := out[r.Name]
		targets := len(r.To)
		if targets == 0 {
			targets = 1
		}
		s.Frames += targets
		s.Bytes += r.Size * targets
		out[r.Name] = s
	}
	return out
}
