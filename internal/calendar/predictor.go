package calendar

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// historyWindow is how many recent confirmed lengths the heuristic looks at.
const historyWindow = 6

// ProjectionCache stores projected month lengths.
// Both *database.DB and *database.Tx satisfy it. Get returns
// database.ErrNotFound for a missing entry.
type ProjectionCache interface {
	GetProjectedLength(ctx context.Context, year, month int) (int, error)
	SetProjectedLength(ctx context.Context, year, month, length int) error
	DeleteProjectedLength(ctx context.Context, year, month int) error
}

// Predictor estimates the length of months that have no confirming anchor.
//
// Once a month's length is estimated it is cached and returned unchanged on
// later calls, so a projected month does not shift under the user while the
// history around it moves.
type Predictor struct {
	cache  ProjectionCache
	logger *slog.Logger
}

// NewPredictor creates a predictor backed by cache.
func NewPredictor(cache ProjectionCache, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{cache: cache, logger: logger}
}

// Predict returns the projected length of key.
//
// An override wins and is persisted. Otherwise a cached value is returned
// as is. Otherwise the heuristic runs over history (oldest first) and its
// answer is cached.
func (p *Predictor) Predict(ctx context.Context, key MonthKey, history []int, override *int) (int, error) {
	if override != nil {
		if !validLength(*override) {
			return 0, fmt.Errorf("%w: got %d", ErrInvalidLength, *override)
		}
		if err := p.cache.SetProjectedLength(ctx, key.Year, key.Month, *override); err != nil {
			return 0, fmt.Errorf("store override for %s: %w", key, err)
		}
		return *override, nil
	}

	cached, err := p.cache.GetProjectedLength(ctx, key.Year, key.Month)
	switch {
	case err == nil && validLength(cached):
		return cached, nil
	case err != nil && !database.IsNotFound(err):
		return 0, fmt.Errorf("read projection for %s: %w", key, err)
	}

	length := HeuristicLength(key, history)
	if err := p.cache.SetProjectedLength(ctx, key.Year, key.Month, length); err != nil {
		return 0, fmt.Errorf("store projection for %s: %w", key, err)
	}

	p.logger.Debug("projected month length",
		slog.String("month", key.String()),
		slog.Int("length", length),
		slog.Int("history", len(history)),
	)
	return length, nil
}

// HeuristicLength estimates a month length from recent confirmed lengths,
// oldest first. Only the last six are considered.
func HeuristicLength(key MonthKey, history []int) int {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	if len(history) == 0 {
		if key.Month%2 == 1 {
			return 30
		}
		return 29
	}

	last := history[len(history)-1]

	// Alternation, and the a,a,b repeat-then-switch shape, both end in a
	// switch: continue away from the last value.
	if len(history) >= 2 && history[len(history)-2] != last {
		return alternate(last)
	}

	lengths := make([]float64, len(history))
	for i, l := range history {
		lengths[i] = float64(l)
	}
	mean := stat.Mean(lengths, nil)

	switch {
	case mean < 29.4:
		return 29
	case mean > 29.6:
		return 30
	default:
		return alternate(last)
	}
}

// CascadeFrom rewrites the cache from start forward with a strict 29/30
// alternation, starting with the opposite of seed.
//
// next is the successor rule to walk with. The walk stops before the first
// month after start that owns an anchor, or after CascadeHorizon months.
// Returns the number of entries written.
func (p *Predictor) CascadeFrom(ctx context.Context, start MonthKey, seed int, next func(MonthKey) MonthKey, anchored func(MonthKey) bool) (int, error) {
	key := start
	length := alternate(seed)
	written := 0

	for written < CascadeHorizon {
		if written > 0 && anchored(key) {
			break
		}
		if err := p.cache.SetProjectedLength(ctx, key.Year, key.Month, length); err != nil {
			return written, fmt.Errorf("cascade %s: %w", key, err)
		}
		written++
		length = alternate(length)
		key = next(key)
	}

	p.logger.Info("cascaded projections",
		slog.String("from", start.String()),
		slog.Int("seed", seed),
		slog.Int("months", written),
	)
	return written, nil
}

// Forget drops the cache entry for a month that just became confirmed.
func (p *Predictor) Forget(ctx context.Context, key MonthKey) error {
	if err := p.cache.DeleteProjectedLength(ctx, key.Year, key.Month); err != nil {
		return fmt.Errorf("clear projection for %s: %w", key, err)
	}
	return nil
}

func alternate(length int) int {
	if length == 30 {
		return 29
	}
	return 30
}

func validLength(length int) bool {
	return length == 29 || length == 30
}
