// Package capture writes and reads the JSON-lines market data files used to
// replay a live session as a backtest.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"stonkminer/internal/domain"
)

// File name suffixes. A capture written for prefix "<symbol>-<name>" is read
// back as the scenario of the same name.
const (
	TicksSuffix   = "-ticks.jsonl"
	HistorySuffix = "-history.jsonl"
)

// Recorder buffers observed ticks and appends them to the ticks file on
// Flush. Candles are appended to the history file as they are recorded.
type Recorder struct {
	mu          sync.Mutex
	ticksPath   string
	historyPath string
	pending     []domain.Tick
	logger      *zap.Logger
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Dir    string // default "output"
	Symbol string
	Name   string
	Logger *zap.Logger
}

// NewRecorder creates the capture directory and a recorder writing
// <dir>/<symbol>-<name>-ticks.jsonl and -history.jsonl.
func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "output"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}

	prefix := filepath.Join(dir, opts.Symbol+"-"+opts.Name)
	return &Recorder{
		ticksPath:   prefix + TicksSuffix,
		historyPath: prefix + HistorySuffix,
		logger:      logger,
	}, nil
}

// CaptureTick buffers t until the next Flush.
func (r *Recorder) CaptureTick(t domain.Tick) {
	r.mu.Lock()
	r.pending = append(r.pending, t)
	r.mu.Unlock()
}

// RecordCandle appends c to the history file.
func (r *Recorder) RecordCandle(c domain.Candle) error {
	line, err := sonic.Marshal(fromCandle(c))
	if err != nil {
		return fmt.Errorf("encode candle: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return appendLines(r.historyPath, [][]byte{line})
}

// Flush appends the buffered ticks to the ticks file. The buffer is kept
// when the write fails so a later flush can retry.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return nil
	}

	lines := make([][]byte, 0, len(r.pending))
	for _, t := range r.pending {
		line, err := sonic.Marshal(fromTick(t))
		if err != nil {
			return fmt.Errorf("encode tick: %w", err)
		}
		lines = append(lines, line)
	}

	if err := appendLines(r.ticksPath, lines); err != nil {
		return err
	}
	r.logger.Debug("flushed ticks", zap.Int("count", len(lines)), zap.String("path", r.ticksPath))
	r.pending = r.pending[:0]
	return nil
}

// Pending returns the number of buffered ticks.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Paths returns the ticks and history file paths.
func (r *Recorder) Paths() (ticks, history string) {
	return r.ticksPath, r.historyPath
}

func appendLines(path string, lines [][]byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	size := 0
	for _, l := range lines {
		size += len(l) + 1
	}
	buf := make([]byte, 0, size)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}

	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
