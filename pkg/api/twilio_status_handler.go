package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/audit"
	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

var trackableSMSStatus = map[string]string{
	"queued":      contracts.EventSMSQueued,
	"sent":        contracts.EventSMSSent,
	"delivered":   contracts.EventSMSDelivered,
	"undelivered": contracts.EventSMSUndelivered,
	"failed":      contracts.EventSMSFailed,
}

// TwilioStatusHandler handles POST /webhook/twilio-status (spec.md §4.9).
// Signature verification is skipped entirely when AuthToken is unset: the
// provider token is optional infrastructure, not a required secret.
type TwilioStatusHandler struct {
	AuthToken string
	PublicURL string // the URL Twilio was configured to call; required to validate the signature
	AuditLog  *audit.Logger
	Metrics   *Metrics // nil disables metric recording
}

func (h *TwilioStatusHandler) countResult(result string) {
	if h.Metrics != nil {
		h.Metrics.WebhookRequests.WithLabelValues("twilio_status", result).Inc()
	}
}

func (h *TwilioStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := CorrelationID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		h.countResult("bad_body")
		WriteError(w, requestID, http.StatusBadRequest, ErrInvalidRequest, "failed to parse form body", nil)
		return
	}

	if h.AuthToken != "" {
		signedPayload := []byte(twilioSignedPayload(h.PublicURL, r.PostForm))
		if !validateHMACSHA1Base64([]byte(h.AuthToken), signedPayload, r.Header.Get("X-Twilio-Signature")) {
			h.countResult("signature_invalid")
			WriteSignatureInvalid(w, requestID, "invalid provider signature")
			return
		}
	}

	status := r.PostForm.Get("MessageStatus")
	messageSID := r.PostForm.Get("MessageSid")

	eventType, trackable := trackableSMSStatus[status]
	if !trackable || messageSID == "" {
		h.countResult("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	h.AuditLog.Record(r.Context(), messageSID, eventType, map[string]any{
		"message_sid":      messageSID,
		"to_number_digest": hashPhoneNumber(r.PostForm.Get("To")),
	})

	h.countResult("accepted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// twilioSignedPayload reproduces Twilio's signature base string: the full
// URL Twilio invoked, followed by every POST parameter's key and value
// concatenated in key-sorted order (no separators).
func twilioSignedPayload(url string, form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form[k][0])
	}
	return b.String()
}

// hashPhoneNumber returns the first 16 hex characters of the SHA-256 digest
// of a phone number. Phone numbers are never stored in plaintext (spec.md
// §4.9).
func hashPhoneNumber(phoneNumber string) string {
	sum := sha256.Sum256([]byte(phoneNumber))
	return hex.EncodeToString(sum[:])[:16]
}
