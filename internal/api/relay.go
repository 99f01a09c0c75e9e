package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/petalworks/blossom/internal/infra/metrics"
)

// Relay forwards chat-completion requests to the vendor with the
// server-held credential, so the client never sees the key. It is
// stateless and holds no entitlement authority; spending decisions stay
// with the gate on the caller's side.
type Relay struct {
	// VendorURL is the vendor's chat-completion endpoint.
	VendorURL string
	// APIKey is the vendor credential, injected from config.
	APIKey string
	// DefaultModel is used when the request names none.
	DefaultModel string

	client *http.Client
}

// NewRelay creates a relay with a 5 minute vendor budget.
func NewRelay(vendorURL, apiKey, defaultModel string) *Relay {
	return &Relay{
		VendorURL:    vendorURL,
		APIKey:       apiKey,
		DefaultModel: defaultModel,
		client:       &http.Client{Timeout: 5 * time.Minute},
	}
}

type relayBody struct {
	Action   string          `json:"action"`
	Messages json.RawMessage `json:"messages"`
	Model    string          `json:"model"`
}

type vendorRequest struct {
	Model               string          `json:"model"`
	Messages            json.RawMessage `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens"`
}

// ServeHTTP implements the relay contract: POST only, action and messages
// required, vendor errors passed through with their status and retry:true.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.RelayRequests.WithLabelValues("bad_request").Inc()
		writeRelayError(w, http.StatusMethodNotAllowed, "only POST is allowed", "", false)
		return
	}

	var body relayBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.RelayRequests.WithLabelValues("bad_request").Inc()
		writeRelayError(w, http.StatusBadRequest, "invalid JSON body", err.Error(), false)
		return
	}
	if body.Action == "" || len(body.Messages) == 0 {
		metrics.RelayRequests.WithLabelValues("bad_request").Inc()
		writeRelayError(w, http.StatusBadRequest, "missing required parameters", "action and messages are required", false)
		return
	}
	if rl.APIKey == "" {
		metrics.RelayRequests.WithLabelValues("internal_error").Inc()
		writeRelayError(w, http.StatusInternalServerError, "relay misconfigured", "no vendor credential", true)
		return
	}

	model := body.Model
	if model == "" {
		model = rl.DefaultModel
	}
	log.Printf("[relay] action=%s model=%s", body.Action, model)

	payload, err := json.Marshal(vendorRequest{
		Model:               model,
		Messages:            body.Messages,
		MaxCompletionTokens: 65535,
	})
	if err != nil {
		metrics.RelayRequests.WithLabelValues("internal_error").Inc()
		writeRelayError(w, http.StatusInternalServerError, "internal error", err.Error(), true)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, rl.VendorURL, bytes.NewReader(payload))
	if err != nil {
		metrics.RelayRequests.WithLabelValues("internal_error").Inc()
		writeRelayError(w, http.StatusInternalServerError, "internal error", err.Error(), true)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+rl.APIKey)

	resp, err := rl.client.Do(req)
	if err != nil {
		metrics.RelayRequests.WithLabelValues("internal_error").Inc()
		writeRelayError(w, http.StatusInternalServerError, "internal error", err.Error(), true)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[relay] vendor error status=%d body=%s", resp.StatusCode, raw)
		metrics.RelayRequests.WithLabelValues("vendor_error").Inc()
		writeRelayError(w, resp.StatusCode, "AI service temporarily unavailable", fmt.Sprintf("HTTP %d", resp.StatusCode), true)
		return
	}

	metrics.RelayRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, resp.Body)
}

// writeRelayError answers in the relay's own error shape, which differs
// from the wallet API's: a flat object with an optional retry hint.
func writeRelayError(w http.ResponseWriter, status int, msg, details string, retry bool) {
	out := map[string]interface{}{"error": msg}
	if details != "" {
		out["details"] = details
	}
	if retry {
		out["retry"] = true
	}
	writeJSON(w, status, out)
}
