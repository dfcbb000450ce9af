package agents

import (
	"context"
	"fmt"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/pdp"
)

// ComplianceResult is the Compliance Agent's verdict on a proposed action
// list.
type ComplianceResult struct {
	Compliant  bool     `json:"compliant"`
	Violations []string `json:"violations"`
}

// ComplianceAgent evaluates a proposed action list against a local
// messaging-frequency cap and, if configured, a remote policy oracle.
// Remote evaluation is fail-closed: any error reaching or reading the
// oracle is itself recorded as a violation.
type ComplianceAgent struct {
	pdp pdp.PolicyDecisionPoint
}

// NewComplianceAgent constructs a ComplianceAgent. A nil pdp disables the
// remote check; only local checks apply.
func NewComplianceAgent(decisionPoint pdp.PolicyDecisionPoint) *ComplianceAgent {
	return &ComplianceAgent{pdp: decisionPoint}
}

// Evaluate runs the local and (if configured) remote compliance checks for
// a proposed action list.
func (c *ComplianceAgent) Evaluate(ctx context.Context, actions []contracts.Action, role, mode string, profile contracts.ClinicProfile, riskLevel contracts.RiskLevel) ComplianceResult {
	var violations []string

	maxPerDay := profile.Messaging.MaxMessagesPerPatientPerDay
	if maxPerDay <= 0 {
		maxPerDay = 3
	}
	if len(actions) > maxPerDay {
		violations = append(violations, fmt.Sprintf("exceeds max_messages_per_patient_per_day: %d > %d", len(actions), maxPerDay))
	}

	if c.pdp != nil {
		for _, a := range actions {
			req := &pdp.DecisionRequest{
				Action:    a.ActionType,
				Role:      role,
				Mode:      mode,
				PatientID: a.PatientID,
				ClinicID:  profile.ClinicID,
				Channel:   a.Channel,
			}
			resp, err := c.pdp.Evaluate(ctx, req)
			if err != nil {
				violations = append(violations, "OPA_Unavailable")
				continue
			}
			if resp.Decision != "ALLOW" {
				if len(resp.Violations) > 0 {
					violations = append(violations, resp.Violations...)
				} else {
					violations = append(violations, "OPA_Deny")
				}
			}
		}
	}

	return ComplianceResult{
		Compliant:  len(violations) == 0,
		Violations: violations,
	}
}
