package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/orchestrator"
)

// opStatus is the per-flow slice of the status payload.
type opStatus struct {
	State      string `json:"state"`
	LastTxHash string `json:"last_tx_hash,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// statusResponse is the full session status.
type statusResponse struct {
	ChainInfo
	UpdatedAt  time.Time           `json:"updated_at,omitempty"`
	Operations map[string]opStatus `json:"operations,omitempty"`
}

// opRequest is the body of POST /v1/op/{kind}. Claim takes no amount.
type opRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleView serves the derived display view. The optional stake query
// parameter drives the approval requirement.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.orch == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chain not supported: no contract deployment configured")
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.View(r.URL.Query().Get("stake")))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statusResponse{ChainInfo: s.info}
	if s.orch != nil {
		resp.UpdatedAt = s.orch.Snapshot().UpdatedAt
		resp.Operations = make(map[string]opStatus, len(orchestrator.AllOpKinds))
		for _, kind := range orchestrator.AllOpKinds {
			state, hash, lastErr := s.orch.OpStatus(kind)
			st := opStatus{State: state.String(), LastTxHash: hash}
			if lastErr != nil {
				st.LastError = lastErr.Error()
			}
			resp.Operations[kind.String()] = st
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleOp submits one transaction flow: POST /v1/op/{mint|approve|stake|unstake|claim}.
func (s *Server) handleOp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.orch == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chain not supported: actions disabled")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/op/")
	kind, err := orchestrator.ParseOpKind(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	var req opRequest
	if r.Body != nil {
		// An empty body is fine for claim
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	switch kind {
	case orchestrator.OpMint:
		err = s.orch.Mint(ctx, req.Amount)
	case orchestrator.OpApprove:
		err = s.orch.Approve(ctx, req.Amount)
	case orchestrator.OpStake:
		err = s.orch.Stake(ctx, req.Amount)
	case orchestrator.OpUnstake:
		err = s.orch.Unstake(ctx, req.Amount)
	case orchestrator.OpClaim:
		err = s.orch.Claim(ctx)
	}

	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "submitted",
			"kind":   kind.String(),
		})
	case errors.Is(err, orchestrator.ErrInvalidAmount),
		errors.Is(err, orchestrator.ErrNothingToClaim):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrOpPending):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", logging.Err(err), logging.Component("api"))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
