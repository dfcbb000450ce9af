package pdp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOPATimeout = 5 * time.Second
	defaultOPAPath    = "/v1/data/cacp/compliance"
	decisionAllow     = "ALLOW"
)

// OPAConfig configures the OPA adapter.
type OPAConfig struct {
	// URL is the base URL of the OPA server (e.g. "http://localhost:8181").
	URL string
	// PolicyPath overrides the default decision path.
	PolicyPath string
	// Timeout bounds the HTTP call. Default: 5s.
	Timeout time.Duration
	// PolicyVersion is a human-readable identifier for the active bundle.
	// It is held on the config only; no request, response or audit record
	// carries it.
	PolicyVersion string
}

// OPAPDP implements PolicyDecisionPoint against a remote OPA HTTP API.
// Strict fail-closed semantics: any error, timeout, or non-200 response
// results in a deny, never a propagated error that a caller might ignore.
type OPAPDP struct {
	config OPAConfig
	client *http.Client
}

// NewOPAPDP creates an OPA-backed PDP.
func NewOPAPDP(cfg OPAConfig) *OPAPDP {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOPATimeout
	}
	if cfg.PolicyPath == "" {
		cfg.PolicyPath = defaultOPAPath
	}
	return &OPAPDP{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type opaRequest struct {
	Input *DecisionRequest `json:"input"`
}

type opaResponse struct {
	Result *opaResult `json:"result"`
}

type opaResult struct {
	Decision   string   `json:"decision"`
	Violations []string `json:"violations,omitempty"`
}

// Evaluate implements PolicyDecisionPoint. Fail-closed on all error paths:
// every return here carries Decision != "ALLOW" unless OPA explicitly allowed.
func (o *OPAPDP) Evaluate(ctx context.Context, req *DecisionRequest) (*DecisionResponse, error) {
	if req == nil {
		return o.deny("DENY_NIL_REQUEST"), nil
	}

	payload, err := json.Marshal(opaRequest{Input: req})
	if err != nil {
		return o.deny("DENY_MARSHAL_ERROR"), nil
	}

	url := o.config.URL + o.config.PolicyPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return o.deny("DENY_REQUEST_ERROR"), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		// Timeout, connection refused, DNS failure: deny, don't propagate.
		return o.deny("DENY_OPA_UNREACHABLE"), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.deny(fmt.Sprintf("DENY_OPA_HTTP_%d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return o.deny("DENY_OPA_READ_ERROR"), nil
	}

	var parsed opaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return o.deny("DENY_OPA_PARSE_ERROR"), nil
	}
	if parsed.Result == nil {
		return o.deny("DENY_OPA_NO_RESULT"), nil
	}

	decision := parsed.Result.Decision
	if decision == "" {
		decision = "DENY_POLICY"
	}
	violations := parsed.Result.Violations
	if decision != decisionAllow && len(violations) == 0 {
		violations = []string{"OPA_Deny"}
	}

	return &DecisionResponse{
		Decision:   decision,
		Violations: violations,
	}, nil
}

func (o *OPAPDP) deny(reason string) *DecisionResponse {
	return &DecisionResponse{
		Decision:   "DENY",
		Violations: []string{reason},
	}
}
