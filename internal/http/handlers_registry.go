package http

import (
	"net/http"

	"harambee/internal/core"
	"harambee/internal/log"
)

// Expenses

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.services.Expenses.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(expenses))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(w, r)
	if err := body.Parse(); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	amount, err := body.GetMoney("amount")
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	at, err := body.GetTime("timestamp", s.location)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	expense, err := s.services.Expenses.Record(r.Context(), core.Expense{
		Description: body.Get("description"),
		Amount:      amount,
		Category:    body.Get("category"),
		Timestamp:   at,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.respond().Status(http.StatusCreated).JSON(w, expense)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Expenses.Delete(r.Context(), pathID(r)); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.respond().NoContent(w)
}

// Phases

type createPhaseRequest struct {
	Name              string                `json:"name"`
	DueDate           string                `json:"due_date"`
	DepartmentTargets map[string]core.Money `json:"department_targets"`
}

func (s *Server) handleListPhases(w http.ResponseWriter, r *http.Request) {
	phases, err := s.services.Phases.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(phases))
}

func (s *Server) handleCreatePhase(w http.ResponseWriter, r *http.Request) {
	var req createPhaseRequest
	if err := NewRequestBodyParser(w, r).Decode(&req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	due, err := parseTimestamp(req.DueDate, s.location)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	phase, err := s.services.Phases.Create(r.Context(), sanitizeInput(req.Name), due, req.DepartmentTargets)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.respond().Status(http.StatusCreated).JSON(w, phase)
}

func (s *Server) handleDeletePhase(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Phases.Delete(r.Context(), pathID(r)); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.respond().NoContent(w)
}

// Departments

type registerDepartmentResponse struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.services.Departments.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(departments))
}

// handleRegisterDepartment answers 201 when the department is new and 200
// when one with the same name ignoring case already exists.
func (s *Server) handleRegisterDepartment(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(w, r)
	if err := body.Parse(); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	name := body.Get("name")
	created, err := s.services.Departments.Register(r.Context(), name)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respond().Status(status).JSON(w, registerDepartmentResponse{Name: name, Created: created})
}

func (s *Server) handleResetDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.services.Departments.Reset(r.Context())
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.respond().JSON(w, listOf(departments))
}
