package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Log file names, one per trade mode.
const (
	SimulationLogName = "simulation_trades.log"
	RealLogName       = "real_trades.log"
)

var (
	_ Appender = (*FileSink)(nil)
	_ Loader   = (*FileSink)(nil)
)

// FileSink appends one JSON object per line to a per-mode log file.
type FileSink struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, logger: logger.With(slog.String("component", "journal_file"))}, nil
}

// Path returns the log file used for mode.
func (s *FileSink) Path(mode domain.TradeMode) string {
	if mode == domain.TradeModeReal {
		return filepath.Join(s.dir, RealLogName)
	}
	return filepath.Join(s.dir, SimulationLogName)
}

// Append writes rec as one line.
func (s *FileSink) Append(_ context.Context, rec domain.TradeRecord) error {
	line, err := Encode(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.Path(rec.Mode), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("journal: write log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("journal: close log: %w", err)
	}
	return nil
}

// Load reads both log files and returns every record ordered by time.
// Malformed lines are skipped with a warning.
func (s *FileSink) Load(ctx context.Context) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TradeRecord
	for _, mode := range []domain.TradeMode{domain.TradeModeSimulation, domain.TradeModeReal} {
		recs, err := s.loadFile(ctx, s.Path(mode))
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *FileSink) loadFile(ctx context.Context, path string) ([]domain.TradeRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer f.Close()

	var out []domain.TradeRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		rec, err := Decode(sc.Bytes())
		if err != nil {
			s.logger.Warn("skipping malformed trade line",
				slog.String("path", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read %s: %w", path, err)
	}
	return out, nil
}
