package http

import (
	"net/http"

	"tracker/internal/core"
)

// handleMonthlyChart returns the trailing twelve month series, optionally
// narrowed by ?kind= and ?category=.
func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	q, err := parseChartQuery(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if q.CategoryID != "" {
		if _, err := s.ledger.Category(q.CategoryID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	points := s.ledger.MonthlySeries(q)
	if points == nil {
		points = []core.ChartPoint{}
	}
	NewJSONResponse().Body(points).Write(w)
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	kind, err := requireKindParam(r.URL.Query())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shares := s.ledger.CategoryBreakdown(kind)
	if shares == nil {
		shares = []core.CategoryShare{}
	}
	NewJSONResponse().Body(shares).Write(w)
}
