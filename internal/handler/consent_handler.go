// internal/handler/consent_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/crypto"
	"github.com/bramblehq/mailvine-backend/internal/repository"
)

// emptyWebhookAck is the minimal success body the SMS provider expects in
// reply to an inbound message webhook.
const emptyWebhookAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// ConsentHandler serves the token-verified opt-out links embedded in every
// sent message, plus the inbound STOP webhook.
type ConsentHandler struct {
	Subscribers repository.SubscriberRepositoryInterface
	Tokens      *crypto.ConsentTokenizer
	Log         *zap.Logger
}

// Unsubscribe handles GET /unsubscribe?email=...&token=....
// "Unknown email" and "bad token" are reported distinctly: 404 for the
// former, 403 for the latter.
func (h *ConsentHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if email == "" || token == "" {
		writeJSONError(w, http.StatusBadRequest, "missing required parameters")
		return
	}

	sub, err := h.Subscribers.FindByEmail(email)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if sub == nil {
		writeJSONError(w, http.StatusNotFound, "email address not found in our system")
		return
	}
	if !h.Tokens.VerifyUnsubscribeToken(sub.ID, email, token) {
		h.Log.Warn("rejected unsubscribe with invalid token", zap.Int("subscriber_id", sub.ID))
		writeJSONError(w, http.StatusForbidden, "invalid unsubscribe link")
		return
	}

	now := time.Now()
	sub.EmailSubscribed = false
	sub.EmailOptOutAt = &now
	if err := h.Subscribers.Update(sub); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not update subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "You have been successfully unsubscribed from our mailing list.",
	})
}

// SMSOptOut handles GET /sms-optout?phone=...&token=..., the web analog of
// replying STOP.
func (h *ConsentHandler) SMSOptOut(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	token := r.URL.Query().Get("token")
	if phone == "" || token == "" {
		writeJSONError(w, http.StatusBadRequest, "missing required parameters")
		return
	}

	sub, err := h.Subscribers.FindByPhone(phone)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if sub == nil {
		writeJSONError(w, http.StatusNotFound, "phone number not found in our system")
		return
	}
	if !h.Tokens.VerifySMSOptOutToken(sub.ID, phone, token) {
		h.Log.Warn("rejected sms opt-out with invalid token", zap.Int("subscriber_id", sub.ID))
		writeJSONError(w, http.StatusForbidden, "invalid opt-out link")
		return
	}

	now := time.Now()
	sub.SMSSubscribed = false
	sub.SMSOptOutAt = &now
	if err := h.Subscribers.Update(sub); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not update subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "You have been successfully unsubscribed from SMS messages.",
	})
}

// SMSWebhook handles the provider's inbound-message POST. A body containing
// STOP or UNSUBSCRIBE (any case) clears the sender's SMS consent. The
// webhook is acknowledged with the empty success response whether or not a
// subscriber matched, so the provider never retries.
func (h *ConsentHandler) SMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		fromPhone := r.PostFormValue("From")
		body := strings.ToUpper(r.PostFormValue("Body"))

		if strings.Contains(body, "STOP") || strings.Contains(body, "UNSUBSCRIBE") {
			sub, err := h.Subscribers.FindByPhone(fromPhone)
			if err != nil {
				h.Log.Error("sms webhook lookup failed", zap.Error(err))
			} else if sub != nil {
				now := time.Now()
				sub.SMSSubscribed = false
				sub.SMSOptOutAt = &now
				if err := h.Subscribers.Update(sub); err != nil {
					h.Log.Error("sms webhook opt-out failed",
						zap.Int("subscriber_id", sub.ID), zap.Error(err))
				} else {
					h.Log.Info("subscriber opted out via sms reply", zap.Int("subscriber_id", sub.ID))
				}
			}
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyWebhookAck))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
