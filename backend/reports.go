package backend

import (
	"context"
	"net/http"
)

// ReportService serves the server-computed reports under /reports/. All
// aggregation (aging buckets, roll totals, dashboard figures) happens
// server-side; the client renders and exports what it gets.
type ReportService struct {
	c *Client
}

// AgedAnalysis is the aged receivables report. A zero asOf means today.
func (s *ReportService) AgedAnalysis(ctx context.Context, asOf Date) (AgedAnalysisReport, error) {
	var params map[string]string
	if !asOf.IsZero() {
		params = map[string]string{"as_of": asOf.String()}
	}
	var out AgedAnalysisReport
	err := s.c.do(ctx, http.MethodGet, "/reports/aged-analysis/", params, nil, &out)
	return out, err
}

// RentRoll lists every active lease with its rent.
func (s *ReportService) RentRoll(ctx context.Context) (RentRollReport, error) {
	var out RentRollReport
	err := s.c.do(ctx, http.MethodGet, "/reports/rent-roll/", nil, nil, &out)
	return out, err
}

// DashboardSummary returns the landing-page figures.
func (s *ReportService) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := s.c.do(ctx, http.MethodGet, "/reports/dashboard/", nil, nil, &out)
	return out, err
}
