package calendar

import (
	"context"
	"time"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// Gap is a pair of adjacent anchors that cannot be read as one month.
type Gap struct {
	From      MonthKey  `json:"from"`
	FromStart time.Time `json:"from_start"`
	To        MonthKey  `json:"to"`
	ToStart   time.Time `json:"to_start"`
	Days      int       `json:"days"`
}

// CoverageReport summarizes how much of the calendar the ledger confirms.
type CoverageReport struct {
	TotalAnchors    int                   `json:"total_anchors"`
	ConfirmedMonths int                   `json:"confirmed_months"`
	Gaps            []Gap                 `json:"gaps"`
	Earliest        *database.MonthAnchor `json:"earliest,omitempty"`
	Latest          *database.MonthAnchor `json:"latest,omitempty"`
	LeapDecisions   map[int]string        `json:"leap_decisions"`

	// ProjectedThrough is the last day the resolver will answer for, or nil
	// when the ledger is empty or unreadable past its latest anchor.
	ProjectedThrough *time.Time `json:"projected_through,omitempty"`
}

// Healthy is true when the ledger has anchors and no gaps.
func (c *CoverageReport) Healthy() bool {
	return c.TotalAnchors > 0 && len(c.Gaps) == 0
}

// Coverage inspects the ledger.
func (e *Engine) Coverage(ctx context.Context) (*CoverageReport, error) {
	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	ledger := r.Ledger()
	anchors := ledger.Anchors()

	report := &CoverageReport{
		TotalAnchors:  len(anchors),
		Gaps:          []Gap{},
		LeapDecisions: make(map[int]string, len(ledger.leaps)),
	}
	for year, d := range ledger.leaps {
		report.LeapDecisions[year] = d.String()
	}
	if len(anchors) == 0 {
		return report, nil
	}

	first, last := anchors[0], anchors[len(anchors)-1]
	report.Earliest, report.Latest = &first, &last

	for i := 1; i < len(anchors); i++ {
		delta := daysBetween(anchors[i-1].StartDate, anchors[i].StartDate)
		if delta >= 1 && delta <= MaxMonthLength {
			report.ConfirmedMonths++
			continue
		}
		report.Gaps = append(report.Gaps, Gap{
			From:      anchorKey(anchors[i-1]),
			FromStart: anchors[i-1].StartDate,
			To:        anchorKey(anchors[i]),
			ToStart:   anchors[i].StartDate,
			Days:      delta,
		})
	}

	// Walk the ceiling forward from the latest anchor.
	key, start := anchorKey(last), last.StartDate
	for i := 0; i < ResolveCeiling; i++ {
		length, _, err := r.lengthAndStatus(ctx, key, start)
		if err != nil {
			return report, nil
		}
		start = start.AddDate(0, 0, length)
		key = r.advance(key, start)
	}
	through := start.AddDate(0, 0, -1)
	report.ProjectedThrough = &through

	return report, nil
}
