package http

import (
	"mime"
	"net/http"

	"harambee/internal/log"
	"harambee/internal/mpesa"
	"harambee/internal/services"
)

type commitRequest struct {
	Items []services.StagedPayment `json:"items"`
}

// handleParseNotifications stages pasted notification text. The text comes
// from a "text" field (JSON or form) or, for text/plain, the whole body.
func (s *Server) handleParseNotifications(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(w, r)

	var text string
	if mediaType, _, _ := mime.ParseMediaType(body.ContentType()); mediaType == "text/plain" {
		text = string(body.GetRaw())
	} else {
		if err := body.Parse(); err != nil {
			s.fail(w, r, log.OpParse, err)
			return
		}
		text = body.Get("text")
	}

	staged, err := s.services.Commit.Stage(r.Context(), text)
	if err != nil {
		s.fail(w, r, log.OpParse, err)
		return
	}

	switch staged.Outcome {
	case mpesa.NoInput:
		s.respond().Status(http.StatusBadRequest).Error(w, "nothing to parse")
	case mpesa.NoMatches:
		s.respond().Status(http.StatusUnprocessableEntity).Error(w, "no valid messages found")
	default:
		s.respond().JSON(w, staged)
	}
}

func (s *Server) handleCommitNotifications(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := NewRequestBodyParser(w, r).Decode(&req); err != nil {
		s.fail(w, r, log.OpCommit, err)
		return
	}

	report, err := s.services.Commit.Commit(r.Context(), req.Items)
	if err != nil {
		if len(report.Committed) > 0 || len(report.Skipped) > 0 {
			s.failWithDetails(w, r, log.OpCommit, err, report)
			return
		}
		s.fail(w, r, log.OpCommit, err)
		return
	}

	status := http.StatusOK
	if len(report.Committed) > 0 {
		status = http.StatusCreated
	}
	s.respond().Status(status).JSON(w, report)
}
