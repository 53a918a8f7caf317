package http

import (
	"net/http"

	"harambee/internal/core"
	"harambee/internal/log"
	"harambee/internal/services"
)

type deletePledgeResponse struct {
	ID              string `json:"id"`
	PaymentsRemoved int    `json:"payments_removed"`
}

func (s *Server) handleListPledges(w http.ResponseWriter, r *http.Request) {
	pledges, err := s.services.Pledges.List(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(pledges))
}

func (s *Server) handleGetPledge(w http.ResponseWriter, r *http.Request) {
	pledge, err := s.services.Pledges.Get(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, pledge)
}

// pledgeFields reads name, department and amount from the body.
func pledgeFields(w http.ResponseWriter, r *http.Request) (core.Pledge, error) {
	body := NewRequestBodyParser(w, r)
	if err := body.Parse(); err != nil {
		return core.Pledge{}, err
	}
	amount, err := body.GetMoney("amount")
	if err != nil {
		return core.Pledge{}, err
	}
	return core.Pledge{
		Name:       body.Get("name"),
		Department: body.Get("department"),
		Amount:     amount,
	}, nil
}

func (s *Server) handleCreatePledge(w http.ResponseWriter, r *http.Request) {
	fields, err := pledgeFields(w, r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	pledge, err := s.services.Pledges.Create(r.Context(), fields.Name, fields.Department, fields.Amount)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.respond().Status(http.StatusCreated).JSON(w, pledge)
}

func (s *Server) handleUpdatePledge(w http.ResponseWriter, r *http.Request) {
	fields, err := pledgeFields(w, r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	fields.ID = pathID(r)
	pledge, err := s.services.Pledges.Update(r.Context(), fields)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.respond().JSON(w, pledge)
}

// handleDeletePledge refuses with 409 while the pledge has payments unless
// ?confirm=true is passed.
func (s *Server) handleDeletePledge(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	removed, err := s.services.Pledges.Delete(r.Context(), id, queryBool(r, "confirm"))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.respond().JSON(w, deletePledgeResponse{ID: id, PaymentsRemoved: removed})
}

func (s *Server) handlePledgePayment(w http.ResponseWriter, r *http.Request) {
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

	tx, err := s.services.Pledges.RecordCashForPledge(r.Context(), pathID(r), amount, body.Get("reference"), at)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.respond().Status(http.StatusCreated).JSON(w, tx)
}

func (s *Server) handleCashPayment(w http.ResponseWriter, r *http.Request) {
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

	tx, err := s.services.Pledges.RecordCash(r.Context(), services.CashPayment{
		Name:       body.Get("name"),
		Department: body.Get("department"),
		Amount:     amount,
		Reference:  body.Get("reference"),
		Timestamp:  at,
	})
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.respond().Status(http.StatusCreated).JSON(w, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.services.Pledges.Transactions(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond().JSON(w, listOf(txs))
}
