package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

const webhookDeliveryTTL = 24 * time.Hour

// WebhookQueue is the narrow queue capability the webhook handlers need:
// idempotency marking and enqueueing the follow-up job.
type WebhookQueue interface {
	MarkWebhookDelivery(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)
	Push(ctx context.Context, envelope map[string]any) error
}

// GitHubWebhookHandler handles POST /webhook/github (spec.md §6, §4.8).
type GitHubWebhookHandler struct {
	Secret       string
	RepoFullName string // "owner/repo"; empty disables the repo filter
	Environment  string // stamped onto every enqueued execute_plan job
	Queue        WebhookQueue
	AuditLog     *audit.Logger
	Metrics      *Metrics // nil disables metric recording
}

func (h *GitHubWebhookHandler) countResult(result string) {
	if h.Metrics != nil {
		h.Metrics.WebhookRequests.WithLabelValues("github", result).Inc()
	}
}

type githubPullRequestEvent struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	PullRequest struct {
		Number         int    `json:"number"`
		Title          string `json:"title"`
		MergeCommitSHA string `json:"merge_commit_sha"`
		Merged         bool   `json:"merged"`
		Body           string `json:"body"`
	} `json:"pull_request"`
}

var appointmentIDInBody = regexp.MustCompile(`appointment[_-]id["' :=]+([a-zA-Z0-9_-]+)`)

const titleAppointmentSeparator = "—"

func (h *GitHubWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := CorrelationID(r.Context())

	if h.Secret == "" {
		h.countResult("no_secret")
		WriteServiceUnavailable(w, requestID, "webhook secret not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.countResult("bad_body")
		WriteError(w, requestID, http.StatusBadRequest, ErrInvalidRequest, "failed to read body", nil)
		return
	}

	if !validateHMACSHA256([]byte(h.Secret), body, r.Header.Get("X-Hub-Signature-256")) {
		h.countResult("signature_invalid")
		WriteSignatureInvalid(w, requestID, "invalid webhook signature")
		return
	}

	var event githubPullRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.countResult("invalid_json")
		WriteError(w, requestID, http.StatusBadRequest, ErrInvalidRequest, "invalid JSON payload", nil)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	isNew, err := h.Queue.MarkWebhookDelivery(r.Context(), deliveryID, webhookDeliveryTTL)
	if err != nil {
		WriteInternal(w, requestID, err)
		return
	}
	if !isNew {
		h.countResult("duplicate")
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	if r.Header.Get("X-GitHub-Event") != "pull_request" ||
		event.Action != "closed" ||
		!event.PullRequest.Merged ||
		(h.RepoFullName != "" && event.Repository.FullName != h.RepoFullName) {
		h.countResult("ignored")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}

	appointmentID := extractAppointmentID(event.PullRequest.Body, event.PullRequest.Title)

	h.AuditLog.RecordWithIdempotencyKey(r.Context(), appointmentID, contracts.EventPRMerged, deliveryID, map[string]any{
		"pr_number":        event.PullRequest.Number,
		"merge_commit_sha": event.PullRequest.MergeCommitSHA,
		"appointment_id":   appointmentID,
		"repo":             event.Repository.FullName,
	})

	if err := h.Queue.Push(r.Context(), map[string]any{
		"action_type":      "execute_plan",
		"appointment_id":   appointmentID,
		"pr_number":        event.PullRequest.Number,
		"merge_commit_sha": event.PullRequest.MergeCommitSHA,
		"environment":      h.Environment,
	}); err != nil {
		WriteInternal(w, requestID, err)
		return
	}

	h.countResult("accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// extractAppointmentID tolerates free-form PR bodies (spec.md's open
// question (a) notes production usage should move to a structured PR
// field). Falls back to the title segment after an em-dash, else empty.
func extractAppointmentID(body, title string) string {
	if m := appointmentIDInBody.FindStringSubmatch(body); len(m) == 2 {
		return m[1]
	}
	if idx := strings.Index(title, titleAppointmentSeparator); idx >= 0 {
		return strings.TrimSpace(title[idx+len(titleAppointmentSeparator):])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
