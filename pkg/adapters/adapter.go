// Package adapters implements the channel-specific action executors the
// Worker dispatches into. The Adapter interface is modeled on the teacher's
// executor.ToolDriver (pkg/executor/driver.go): a single narrow Execute
// method so the worker can treat native and remote-provider adapters
// identically.
package adapters

import "context"

// Result is the normalized outcome of an adapter execution, matching
// spec.md's execute(action) return shape exactly.
type Result struct {
	Adapter            string `json:"adapter"`
	ActionType         string `json:"action_type"`
	Status             string `json:"status"`
	Provider           string `json:"provider,omitempty"`
	ProviderMessageID  string `json:"provider_message_id,omitempty"`
	ErrorCode          string `json:"error_code,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

const (
	StatusExecuted = "executed"
	StatusFailed   = "failed"
)

// Adapter performs the provider-specific side effect for a queued action
// envelope. A returned error signals a transient failure the worker should
// retry; a Result with Status == StatusFailed and a populated ErrorCode
// signals a permanent, non-retryable rejection (e.g. malformed input).
type Adapter interface {
	Name() string
	Execute(ctx context.Context, action map[string]any) (Result, error)
}

// Registry resolves an Adapter by action_type. Missing registrations are
// the caller's "no_adapter" case (spec.md §4.11 step 1) and are reported by
// Resolve returning ok == false rather than a default adapter, so the
// worker can emit action_failed{reason:"no_adapter"} precisely.
type Registry struct {
	byActionType map[string]Adapter
}

// NewRegistry builds a Registry from explicit action_type -> Adapter
// bindings.
func NewRegistry(bindings map[string]Adapter) *Registry {
	byActionType := make(map[string]Adapter, len(bindings))
	for actionType, adapter := range bindings {
		byActionType[actionType] = adapter
	}
	return &Registry{byActionType: byActionType}
}

// Resolve looks up the adapter bound to actionType.
func (r *Registry) Resolve(actionType string) (Adapter, bool) {
	adapter, ok := r.byActionType[actionType]
	return adapter, ok
}

// NoopAdapter is the built-in adapter for action types that require no
// outbound side effect (e.g. local-only bookkeeping actions, or test
// fixtures). It always succeeds.
type NoopAdapter struct{}

// Name implements Adapter.
func (NoopAdapter) Name() string { return "noop" }

// Execute implements Adapter.
func (NoopAdapter) Execute(ctx context.Context, action map[string]any) (Result, error) {
	actionType, _ := action["action_type"].(string)
	return Result{
		Adapter:    "noop",
		ActionType: actionType,
		Status:     StatusExecuted,
	}, nil
}
