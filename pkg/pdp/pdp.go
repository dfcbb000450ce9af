// Package pdp defines the policy decision point abstraction used by the
// Compliance Agent. Every implementation MUST be fail-closed: deny on error,
// timeout, non-200 response, or unreachable backend.
package pdp

import "context"

// DecisionRequest is the canonical input to a policy evaluation for a
// single proposed action.
type DecisionRequest struct {
	Action    string `json:"action"`
	Role      string `json:"role"`
	Mode      string `json:"mode"`
	PatientID string `json:"patient_id"`
	ClinicID  string `json:"clinic_id"`
	Channel   string `json:"channel"`
}

// DecisionResponse is the canonical output of a policy evaluation.
type DecisionResponse struct {
	Decision   string   `json:"decision"`
	Violations []string `json:"violations"`
}

// PolicyDecisionPoint evaluates whether a single proposed action may
// proceed.
type PolicyDecisionPoint interface {
	// Evaluate runs the policy check. MUST be fail-closed: any error returned
	// is accompanied by a DecisionResponse with Decision != "ALLOW".
	Evaluate(ctx context.Context, req *DecisionRequest) (*DecisionResponse, error)
}
