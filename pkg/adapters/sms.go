package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// ErrorCodeMissingParams is returned, without attempting a provider
	// call, when a required field is absent from the action envelope.
	ErrorCodeMissingParams = "MISSING_PARAMS"
	// ErrorCodeProviderError is returned when the provider responds with a
	// non-2xx status. Transport-level failures are returned as errors instead.
	ErrorCodeProviderError = "PROVIDER_ERROR"

	defaultSMSTimeout   = 10 * time.Second
	defaultSMSAPIBase   = "https://api.twilio.com"
	smsMessagesPathTmpl = "/2010-04-01/Accounts/%s/Messages.json"
)

// SMSConfig configures the SMS provider adapter. No Twilio SDK appears
// anywhere in the retrieved corpus, so this follows the same bare
// *http.Client idiom the teacher uses for its own external integrations
// (see pkg/pdp's OPA adapter and pkg/gitops's submitter).
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	APIBase    string
	Timeout    time.Duration
}

// SMSAdapter sends a text message via the configured provider's REST API.
type SMSAdapter struct {
	cfg    SMSConfig
	client *http.Client
}

// NewSMSAdapter constructs an SMSAdapter with defaults applied.
func NewSMSAdapter(cfg SMSConfig) *SMSAdapter {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultSMSAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMSTimeout
	}
	return &SMSAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Adapter.
func (a *SMSAdapter) Name() string { return "sms" }

// Execute implements Adapter. Required fields are validated before any
// provider call is attempted: a missing to_number or message is a
// structured, non-retryable failure (spec.md §4.12), not an error return.
func (a *SMSAdapter) Execute(ctx context.Context, action map[string]any) (Result, error) {
	actionType, _ := action["action_type"].(string)
	toNumber, _ := action["to_number"].(string)
	message, _ := action["message"].(string)

	if toNumber == "" || message == "" {
		return Result{
			Adapter:      "sms",
			ActionType:   actionType,
			Status:       StatusFailed,
			Provider:     "twilio",
			ErrorCode:    ErrorCodeMissingParams,
			ErrorMessage: "sms adapter requires to_number and message",
		}, nil
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", a.cfg.FromNumber)
	form.Set("Body", message)

	endpoint := a.cfg.APIBase + fmt.Sprintf(smsMessagesPathTmpl, a.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("sms adapter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.cfg.AccountSID, a.cfg.AuthToken)

	resp, err := a.client.Do(req)
	if err != nil {
		// Transport-level failure: transient, eligible for worker retry.
		return Result{}, fmt.Errorf("sms adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{
			Adapter:      "sms",
			ActionType:   actionType,
			Status:       StatusFailed,
			Provider:     "twilio",
			ErrorCode:    ErrorCodeProviderError,
			ErrorMessage: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}
	if readErr != nil {
		return Result{}, fmt.Errorf("sms adapter: read response: %w", readErr)
	}

	var decoded struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("sms adapter: decode response: %w", err)
	}

	return Result{
		Adapter:           "sms",
		ActionType:        actionType,
		Status:            StatusExecuted,
		Provider:          "twilio",
		ProviderMessageID: decoded.SID,
	}, nil
}
