// internal/handler/subscriber_handler.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/importer"
	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"
	"github.com/bramblehq/mailvine-backend/internal/transport"
)

const maxUploadBytes = 16 << 20 // 16MB

// SubscriberHandler holds the dependencies for subscriber-facing routes:
// signup, CSV import, listings and dashboard counts.
type SubscriberHandler struct {
	Subscribers repository.SubscriberRepositoryInterface
	Importer    *importer.Importer
	UploadDir   string
	Log         *zap.Logger
}

type signupRequest struct {
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Name           string `json:"name"`
	SubscribeEmail bool   `json:"subscribe_email"`
	SubscribeSMS   bool   `json:"subscribe_sms"`
}

// Signup handles POST /signup. A re-submission for a known email merges:
// existing non-empty fields are kept, consent flags only ever turn on here
// (opting out goes through the consent links).
func (h *SubscriberHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeJSONError(w, http.StatusBadRequest, "email address is required")
		return
	}

	normalizedPhone := ""
	if strings.TrimSpace(req.Phone) != "" {
		normalizedPhone = transport.FormatPhoneNumber(req.Phone)
		if normalizedPhone == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid phone number format")
			return
		}
	}

	existing, err := h.Subscribers.FindByEmail(req.Email)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	now := time.Now()
	if existing != nil {
		if req.Name != "" {
			existing.DisplayName = req.Name
		}
		if normalizedPhone != "" {
			if err := h.Subscribers.SetPhone(existing, normalizedPhone); err != nil {
				writeJSONError(w, http.StatusInternalServerError, "could not store phone")
				return
			}
		}
		if req.SubscribeEmail {
			existing.EmailSubscribed = true
			existing.EmailOptInAt = &now
		}
		if req.SubscribeSMS && normalizedPhone != "" {
			existing.SMSSubscribed = true
			existing.SMSOptInAt = &now
		}
		if err := h.Subscribers.Update(existing); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "could not update subscription")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Thank you! Your subscription has been updated.",
		})
		return
	}

	sub := &model.Subscriber{
		DisplayName:     req.Name,
		EmailSubscribed: req.SubscribeEmail,
		SMSSubscribed:   req.SubscribeSMS && normalizedPhone != "",
	}
	if err := h.Subscribers.SetEmail(sub, req.Email); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not store email")
		return
	}
	if normalizedPhone != "" {
		if err := h.Subscribers.SetPhone(sub, normalizedPhone); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "could not store phone")
			return
		}
	}
	if sub.EmailSubscribed {
		sub.EmailOptInAt = &now
	}
	if sub.SMSSubscribed {
		sub.SMSOptInAt = &now
	}
	if err := h.Subscribers.Create(sub); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not create subscriber")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Thank you for signing up!",
	})
}

// ImportContacts handles POST /import (multipart, field "csvfile" plus an
// optional "segment" tag). The upload is staged to disk under a generated
// name and removed after the import runs.
func (h *SubscriberHandler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := r.FormFile("csvfile")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeJSONError(w, http.StatusBadRequest, "please upload a CSV file")
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	staged := filepath.Join(h.UploadDir, uuid.NewString()+".csv")
	dst, err := os.Create(staged)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(staged)
		writeJSONError(w, http.StatusInternalServerError, "could not stage upload")
		return
	}
	dst.Close()
	defer os.Remove(staged)

	f, err := os.Open(staged)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not read upload")
		return
	}
	defer f.Close()

	segment := strings.TrimSpace(r.FormValue("segment"))
	stats, err := h.Importer.ImportCSV(f, segment)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "import failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Dashboard handles GET / and returns subscriber and segment counts.
func (h *SubscriberHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Subscribers.Counts()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not load counts")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListSubscribers handles GET /contacts. PII stays encrypted in the
// response model; only non-sensitive fields serialize.
func (h *SubscriberHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subscribers.ListAll()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "could not list subscribers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": subs})
}
