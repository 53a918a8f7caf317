package http

import (
	"net/http"

	"harambee/internal/log"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.services.Dashboard.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	dashboard.Phases = listOf(dashboard.Phases)
	dashboard.Departments = listOf(dashboard.Departments)
	s.respond().JSON(w, dashboard)
}

// handleLedger returns income and expenses merged, newest first.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.services.Dashboard.Ledger(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(entries))
}
