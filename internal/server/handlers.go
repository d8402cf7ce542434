// ABOUTME: HTTP handlers for the agent, reset, HR and health endpoints
// ABOUTME: Request bodies are validated and errors use the {"detail": ...} shape

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/secure-agent/internal/agent"
	"github.com/2389/secure-agent/internal/auth"
	"github.com/2389/secure-agent/internal/hr"
	"github.com/2389/secure-agent/internal/store"
)

// ResetMessage acknowledges a successful reset.
const ResetMessage = "Conversation has been reset."

const maxBodyBytes = 1 << 20

type queryRequest struct {
	Query *string `json:"query"`
}

type daysOffForRequest struct {
	PersonName *string `json:"person_name"`
}

type agentResponse struct {
	Response string `json:"response"`
}

// fieldError is one entry of a 422 validation detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMissingField(w http.ResponseWriter, field string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []fieldError{{Loc: []string{"body", field}, Msg: "Field required", Type: "missing"}},
	})
}

// decodeBody reads a JSON body into v. Returns false after writing an
// error response.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		auth.WriteDetail(w, http.StatusBadRequest, "could not read request body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []fieldError{{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"}},
		})
		return false
	}
	return true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == nil {
		writeMissingField(w, "query")
		return
	}

	user := auth.FromContext(r.Context())
	ctx := r.Context()

	history, err := s.history.ListExchanges(ctx, user.Username, historyLimit)
	if err != nil {
		s.logger.Error("loading history", "username", user.Username, "error", err)
		auth.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reply, err := s.responder.Respond(ctx, agent.Request{
		Username: user.Username,
		Query:    *req.Query,
		History:  history,
	})
	if err != nil {
		s.logger.Error("agent failed", "username", user.Username, "error", err)
		auth.WriteDetail(w, http.StatusBadGateway, "Agent failed to respond")
		return
	}

	if err := s.history.AppendExchange(ctx, &store.Exchange{
		Username: user.Username,
		Query:    *req.Query,
		Response: reply,
	}); err != nil {
		// The user still gets the reply; only the replayed context suffers.
		s.logger.Warn("saving exchange", "username", user.Username, "error", err)
	}

	s.logger.Info("answered query", "username", user.Username, "history", len(history))
	writeJSON(w, http.StatusOK, agentResponse{Response: reply})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())

	n, err := s.history.ClearExchanges(r.Context(), user.Username)
	if err != nil {
		s.logger.Error("clearing history", "username", user.Username, "error", err)
		auth.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("conversation reset", "username", user.Username, "removed", n)
	writeJSON(w, http.StatusOK, agentResponse{Response: ResetMessage})
}

func (s *Server) handleDaysOff(w http.ResponseWriter, r *http.Request) {
	user := auth.FromContext(r.Context())
	s.logger.Info("received request to get days off", "username", user.Username)

	days, err := s.directory.DaysOff(user.Username)
	if errors.Is(err, hr.ErrUnknownPerson) {
		auth.WriteDetail(w, http.StatusBadRequest, "User not found in database.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"days_off_available": days})
}

func (s *Server) handleDaysOffFor(w http.ResponseWriter, r *http.Request) {
	var req daysOffForRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PersonName == nil {
		writeMissingField(w, "person_name")
		return
	}

	user := auth.FromContext(r.Context())
	name := *req.PersonName

	days, err := s.directory.DaysOff(name)
	if errors.Is(err, hr.ErrUnknownPerson) {
		auth.WriteDetail(w, http.StatusBadRequest, fmt.Sprintf("%s not found in database.", name))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days_off_available": days,
		"person_name":        name,
		"asked_by":           user.Username,
	})
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
