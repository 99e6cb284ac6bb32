package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"stonkminer/internal/domain"
)

// ErrMissingBacktestData is returned when either file of a scenario is absent.
var ErrMissingBacktestData = errors.New("missing backtest data")

// Scenario is a recorded session: the candle history and the ticks observed
// after it, both in recorded order.
type Scenario struct {
	Name    string
	History []domain.Candle
	Ticks   []domain.Tick
}

// ScenarioPaths returns the history and ticks files of scenario in dataDir.
func ScenarioPaths(dataDir, scenario string) (history, ticks string) {
	prefix := filepath.Join(dataDir, scenario)
	return prefix + HistorySuffix, prefix + TicksSuffix
}

// LoadScenario reads <dataDir>/<scenario>-history.jsonl and -ticks.jsonl.
// Both files must exist.
func LoadScenario(ctx context.Context, dataDir, scenario string) (*Scenario, error) {
	historyPath, ticksPath := ScenarioPaths(dataDir, scenario)
	for _, p := range []string{historyPath, ticksPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingBacktestData, p)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	sc := &Scenario{Name: scenario}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return readLines(gctx, historyPath, func(line []byte) error {
			var row candleRow
			if err := sonic.Unmarshal(line, &row); err != nil {
				return err
			}
			sc.History = append(sc.History, row.candle())
			return nil
		})
	})

	g.Go(func() error {
		return readLines(gctx, ticksPath, func(line []byte) error {
			var row tickRow
			if err := sonic.Unmarshal(line, &row); err != nil {
				return err
			}
			sc.Ticks = append(sc.Ticks, row.tick())
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sc, nil
}

func readLines(ctx context.Context, path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	n := 0
	for sc.Scan() {
		n++
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("%s line %d: %w", path, n, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
