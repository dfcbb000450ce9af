package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/orchestrator"
)

// Orchestrator is the narrow capability the ingest handler depends on.
type Orchestrator interface {
	Process(ctx context.Context, appt contracts.Appointment) orchestrator.Result
}

// IngestResponse is the body of a successful 202 /ingest response.
type IngestResponse struct {
	ProposalID    string              `json:"proposal_id"`
	RiskLevel     contracts.RiskLevel `json:"risk_level"`
	RiskScore     float64             `json:"risk_score"`
	ActionsCount  int                 `json:"actions_count"`
	PRURL         *string             `json:"pr_url,omitempty"`
	Compliant     bool                `json:"compliant"`
	Violations    []string            `json:"violations"`
	Message       string              `json:"message"`
}

// IngestHandler handles POST /ingest.
type IngestHandler struct {
	Orchestrator Orchestrator
	Metrics      *Metrics // nil disables metric recording
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(o Orchestrator) *IngestHandler {
	return &IngestHandler{Orchestrator: o}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := CorrelationID(r.Context())
	if r.Method != http.MethodPost {
		WriteError(w, requestID, http.StatusMethodNotAllowed, ErrInvalidRequest, "method not allowed", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var appt contracts.Appointment
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		WriteInvalidRequest(w, requestID, "malformed JSON body", nil)
		return
	}

	if missing := appt.Validate(); len(missing) > 0 {
		WriteInvalidRequest(w, requestID, "missing required fields", map[string]any{"missing_fields": missing})
		return
	}

	result := h.Orchestrator.Process(r.Context(), appt)

	if h.Metrics != nil {
		h.Metrics.IngestTotal.WithLabelValues(boolLabel(result.Compliant)).Inc()
		h.Metrics.RiskScore.Observe(result.RiskScore)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(IngestResponse{
		ProposalID:   result.ProposalID,
		RiskLevel:    result.RiskLevel,
		RiskScore:    result.RiskScore,
		ActionsCount: len(result.Actions),
		PRURL:        result.PRURL,
		Compliant:    result.Compliant,
		Violations:   result.Violations,
		Message:      ingestMessage(result.Compliant),
	})
}

func ingestMessage(compliant bool) string {
	if compliant {
		return "proposal created"
	}
	return "proposal rejected by compliance checks"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
