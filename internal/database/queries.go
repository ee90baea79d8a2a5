package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every ledger query. DB and Tx both embed it, so the same
// calls work inside and outside a transaction.
type Queries struct {
	q dbtx
}

// =============================================================================
// Helper Functions
// =============================================================================

// parseTimestamp parses a timestamp from SQLite TEXT format.
// Tries multiple formats and returns nil if parsing fails.
func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return &t
		}
	}
	return nil
}

// parseDate parses a stored civil date.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// =============================================================================
// Month Anchors
// =============================================================================

// UpsertAnchor inserts or replaces the anchor for (year, month).
//
// A second call for the same key replaces the start date. A start date that
// already belongs to a different key violates the UNIQUE constraint and
// returns ErrDuplicate.
func (q *Queries) UpsertAnchor(ctx context.Context, anchor *MonthAnchor) error {
	query := `
		INSERT INTO month_anchors (year_number, month_number, start_date, confirmed, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(year_number, month_number) DO UPDATE SET
			start_date = excluded.start_date,
			confirmed = excluded.confirmed,
			updated_at = datetime('now')
	`

	_, err := q.q.ExecContext(ctx, query,
		anchor.YearNumber,
		anchor.MonthNumber,
		formatDate(anchor.StartDate),
		anchor.Confirmed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("anchor %d/%d on %s: %w",
				anchor.YearNumber, anchor.MonthNumber, formatDate(anchor.StartDate), ErrDuplicate)
		}
		return fmt.Errorf("upsert anchor: %w", err)
	}

	return nil
}

// GetAnchor returns the anchor for (year, month) or ErrNotFound.
func (q *Queries) GetAnchor(ctx context.Context, year, month int) (*MonthAnchor, error) {
	query := `
		SELECT year_number, month_number, start_date, confirmed, created_at, updated_at
		FROM month_anchors
		WHERE year_number = ? AND month_number = ?
	`

	anchor, err := scanAnchor(q.q.QueryRowContext(ctx, query, year, month))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query anchor: %w", err)
	}
	return anchor, nil
}

// ListAnchors returns every anchor ordered by start date ascending.
// Returns an empty slice if the ledger is empty.
func (q *Queries) ListAnchors(ctx context.Context) ([]MonthAnchor, error) {
	query := `
		SELECT year_number, month_number, start_date, confirmed, created_at, updated_at
		FROM month_anchors
		ORDER BY start_date ASC
	`

	rows, err := q.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}
	defer rows.Close()

	anchors := []MonthAnchor{}
	for rows.Next() {
		anchor, err := scanAnchor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan anchor row: %w", err)
		}
		anchors = append(anchors, *anchor)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anchor rows: %w", err)
	}

	return anchors, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnchor(row rowScanner) (*MonthAnchor, error) {
	var anchor MonthAnchor
	var startDate string
	var createdAtStr, updatedAtStr sql.NullString

	err := row.Scan(
		&anchor.YearNumber,
		&anchor.MonthNumber,
		&startDate,
		&anchor.Confirmed,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if anchor.StartDate, err = parseDate(startDate); err != nil {
		return nil, err
	}
	if t := parseTimestamp(createdAtStr); t != nil {
		anchor.CreatedAt = *t
	}
	if t := parseTimestamp(updatedAtStr); t != nil {
		anchor.UpdatedAt = *t
	}
	return &anchor, nil
}

// =============================================================================
// Leap Decisions
// =============================================================================

// SetLeapDecision inserts or replaces the decision for a year.
func (q *Queries) SetLeapDecision(ctx context.Context, decision *YearLeapDecision) error {
	query := `
		INSERT INTO year_leap_decisions (year_number, is_aviv, decided_on, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(year_number) DO UPDATE SET
			is_aviv = excluded.is_aviv,
			decided_on = excluded.decided_on,
			updated_at = datetime('now')
	`

	var isAviv sql.NullBool
	if decision.IsAviv != nil {
		isAviv = sql.NullBool{Bool: *decision.IsAviv, Valid: true}
	}
	var decidedOn sql.NullString
	if decision.DecidedOn != nil {
		decidedOn = sql.NullString{String: formatDate(*decision.DecidedOn), Valid: true}
	}

	if _, err := q.q.ExecContext(ctx, query, decision.YearNumber, isAviv, decidedOn); err != nil {
		return fmt.Errorf("set leap decision: %w", err)
	}
	return nil
}

// GetLeapDecision returns the decision for a year or ErrNotFound.
func (q *Queries) GetLeapDecision(ctx context.Context, year int) (*YearLeapDecision, error) {
	query := `
		SELECT year_number, is_aviv, decided_on, updated_at
		FROM year_leap_decisions
		WHERE year_number = ?
	`

	decision, err := scanLeapDecision(q.q.QueryRowContext(ctx, query, year))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query leap decision: %w", err)
	}
	return decision, nil
}

// ListLeapDecisions returns every recorded decision ordered by year.
func (q *Queries) ListLeapDecisions(ctx context.Context) ([]YearLeapDecision, error) {
	query := `
		SELECT year_number, is_aviv, decided_on, updated_at
		FROM year_leap_decisions
		ORDER BY year_number ASC
	`

	rows, err := q.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query leap decisions: %w", err)
	}
	defer rows.Close()

	decisions := []YearLeapDecision{}
	for rows.Next() {
		decision, err := scanLeapDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leap decision row: %w", err)
		}
		decisions = append(decisions, *decision)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leap decision rows: %w", err)
	}
	return decisions, nil
}

func scanLeapDecision(row rowScanner) (*YearLeapDecision, error) {
	var decision YearLeapDecision
	var isAviv sql.NullBool
	var decidedOn, updatedAtStr sql.NullString

	if err := row.Scan(&decision.YearNumber, &isAviv, &decidedOn, &updatedAtStr); err != nil {
		return nil, err
	}

	if isAviv.Valid {
		v := isAviv.Bool
		decision.IsAviv = &v
	}
	if decidedOn.Valid && decidedOn.String != "" {
		t, err := parseDate(decidedOn.String)
		if err != nil {
			return nil, err
		}
		decision.DecidedOn = &t
	}
	if t := parseTimestamp(updatedAtStr); t != nil {
		decision.UpdatedAt = *t
	}
	return &decision, nil
}

// =============================================================================
// Projected Length Cache
// =============================================================================

// GetProjectedLength returns the cached length for (year, month) or ErrNotFound.
func (q *Queries) GetProjectedLength(ctx context.Context, year, month int) (int, error) {
	var length int
	err := q.q.QueryRowContext(ctx,
		`SELECT length_days FROM projected_lengths WHERE year_number = ? AND month_number = ?`,
		year, month,
	).Scan(&length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("query projected length: %w", err)
	}
	return length, nil
}

// SetProjectedLength writes the cached length for (year, month).
func (q *Queries) SetProjectedLength(ctx context.Context, year, month, length int) error {
	query := `
		INSERT INTO projected_lengths (year_number, month_number, length_days, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(year_number, month_number) DO UPDATE SET
			length_days = excluded.length_days,
			updated_at = datetime('now')
	`
	if _, err := q.q.ExecContext(ctx, query, year, month, length); err != nil {
		return fmt.Errorf("set projected length: %w", err)
	}
	return nil
}

// DeleteProjectedLength removes the cached length. Missing entries are not
// an error.
func (q *Queries) DeleteProjectedLength(ctx context.Context, year, month int) error {
	_, err := q.q.ExecContext(ctx,
		`DELETE FROM projected_lengths WHERE year_number = ? AND month_number = ?`,
		year, month,
	)
	if err != nil {
		return fmt.Errorf("delete projected length: %w", err)
	}
	return nil
}

// ListProjectedLengths returns every cache entry ordered by key.
func (q *Queries) ListProjectedLengths(ctx context.Context) ([]ProjectedLength, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT year_number, month_number, length_days, updated_at
		FROM projected_lengths
		ORDER BY year_number ASC, month_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projected lengths: %w", err)
	}
	defer rows.Close()

	entries := []ProjectedLength{}
	for rows.Next() {
		var entry ProjectedLength
		var updatedAtStr sql.NullString
		if err := rows.Scan(&entry.YearNumber, &entry.MonthNumber, &entry.LengthDays, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scan projected length row: %w", err)
		}
		if t := parseTimestamp(updatedAtStr); t != nil {
			entry.UpdatedAt = *t
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projected length rows: %w", err)
	}
	return entries, nil
}

// =============================================================================
// Cached Location
// =============================================================================

// SaveCachedLocation replaces the single cached location.
func (q *Queries) SaveCachedLocation(ctx context.Context, loc *CachedLocation) error {
	query := `
		INSERT INTO cached_location (id, latitude, longitude, cached_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			cached_at = excluded.cached_at
	`
	_, err := q.q.ExecContext(ctx, query, loc.Latitude, loc.Longitude, loc.CachedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save cached location: %w", err)
	}
	return nil
}

// GetCachedLocation returns the cached location or ErrNotFound.
func (q *Queries) GetCachedLocation(ctx context.Context) (*CachedLocation, error) {
	var loc CachedLocation
	var cachedAt sql.NullString

	err := q.q.QueryRowContext(ctx,
		`SELECT latitude, longitude, cached_at FROM cached_location WHERE id = 1`,
	).Scan(&loc.Latitude, &loc.Longitude, &cachedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query cached location: %w", err)
	}
	if t := parseTimestamp(cachedAt); t != nil {
		loc.CachedAt = *t
	}
	return &loc, nil
}

// =============================================================================
// Preferences
// =============================================================================

// GetPreferences returns the saved preferences, or DefaultPreferences if
// none were saved.
func (q *Queries) GetPreferences(ctx context.Context) (*Preferences, error) {
	var p Preferences
	var updatedAtStr sql.NullString

	err := q.q.QueryRowContext(ctx, `
		SELECT month_naming_mode, firstfruits_rule, include_hanukkah,
			include_purim, project_extra_month, updated_at
		FROM user_preferences
		WHERE id = 1
	`).Scan(
		&p.MonthNamingMode,
		&p.FirstfruitsRule,
		&p.IncludeHanukkah,
		&p.IncludePurim,
		&p.ProjectExtraMonth,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := DefaultPreferences()
			return &defaults, nil
		}
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	if t := parseTimestamp(updatedAtStr); t != nil {
		p.UpdatedAt = *t
	}
	return &p, nil
}

// SavePreferences replaces the single preferences row.
func (q *Queries) SavePreferences(ctx context.Context, p *Preferences) error {
	query := `
		INSERT INTO user_preferences (
			id, month_naming_mode, firstfruits_rule, include_hanukkah,
			include_purim, project_extra_month, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			month_naming_mode = excluded.month_naming_mode,
			firstfruits_rule = excluded.firstfruits_rule,
			include_hanukkah = excluded.include_hanukkah,
			include_purim = excluded.include_purim,
			project_extra_month = excluded.project_extra_month,
			updated_at = datetime('now')
	`
	_, err := q.q.ExecContext(ctx, query,
		p.MonthNamingMode,
		p.FirstfruitsRule,
		p.IncludeHanukkah,
		p.IncludePurim,
		p.ProjectExtraMonth,
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// =============================================================================
// Stats
// =============================================================================

// GetLedgerStats returns counts and the date span of the ledger.
//
// Used by the health check and the coverage report.
func (q *Queries) GetLedgerStats(ctx context.Context) (*LedgerStats, error) {
	var stats LedgerStats
	var earliest, latest sql.NullString

	err := q.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM month_anchors),
			(SELECT MIN(start_date) FROM month_anchors),
			(SELECT MAX(start_date) FROM month_anchors),
			(SELECT COUNT(*) FROM year_leap_decisions),
			(SELECT COUNT(*) FROM projected_lengths)
	`).Scan(&stats.TotalAnchors, &earliest, &latest, &stats.LeapDecisions, &stats.Projections)
	if err != nil {
		return nil, fmt.Errorf("query ledger stats: %w", err)
	}

	if earliest.Valid {
		t, err := parseDate(earliest.String)
		if err != nil {
			return nil, err
		}
		stats.EarliestStart = &t
	}
	if latest.Valid {
		t, err := parseDate(latest.String)
		if err != nil {
			return nil, err
		}
		stats.LatestStart = &t
	}
	return &stats, nil
}
