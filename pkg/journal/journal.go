package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/weiway668/my-stock-system-sub002/pkg/backtest"
)

// Format selects the on-disk encoding of run records.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat maps a config value to a Format; blank means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack, "msgp", "mp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("journal: unknown format %q", s)
}

func (f Format) ext() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".json"
}

// Writer archives finished backtest runs to a directory, one file per run.
type Writer struct {
	dir    string
	format Format

	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer, creating dir if needed.
func NewWriter(dir string, format Format) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if format == "" {
		format = FormatJSON
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{dir: dir, format: format, nowFn: time.Now}, nil
}

// Dir returns the archive directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRun writes res to a timestamped file and returns its path.
func (w *Writer) WriteRun(res *backtest.Result) (string, error) {
	if res == nil {
		return "", fmt.Errorf("journal: nil result")
	}
	data, err := Encode(res, w.format)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	w.seq++
	seq := w.seq
	now := w.nowFn()
	w.mu.Unlock()

	name := fmt.Sprintf("run_%s_%s_%05d%s", now.UTC().Format("20060102_150405"), fileSafe(res.Request.Symbol), seq, w.format.ext())
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", name, err)
	}
	return path, nil
}

// Encode serializes res in the given format.
func Encode(res *backtest.Result, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("journal: encode json: %w", err)
		}
		return data, nil
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(res); err != nil {
			return nil, fmt.Errorf("journal: encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("journal: unknown format %q", format)
}

// Decode is the inverse of Encode.
func Decode(data []byte, format Format) (*backtest.Result, error) {
	var res backtest.Result
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("journal: decode json: %w", err)
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&res); err != nil {
			return nil, fmt.Errorf("journal: decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("journal: unknown format %q", format)
	}
	return &res, nil
}

// ReadRun loads a record written by WriteRun, picking the format from the
// file extension.
func ReadRun(path string) (*backtest.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("journal: read: %w", err)
	}
	format := FormatJSON
	if filepath.Ext(path) == FormatMsgpack.ext() {
		format = FormatMsgpack
	}
	return Decode(data, format)
}

func fileSafe(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, s)
}
