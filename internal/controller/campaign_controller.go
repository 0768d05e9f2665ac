// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	SendPipeline    *service.SendPipeline
	Log             *zap.Logger
}

type campaignBody struct {
	Name                 string `json:"name"`
	Subject              string `json:"subject"`
	Channel              string `json:"channel"`
	TemplateRef          string `json:"template_ref"`
	HTMLContent          string `json:"html_content"`
	IncludesDynamicAsset bool   `json:"includes_dynamic_asset"`
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body campaignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(service.CreateCampaignInput{
		Name:                 body.Name,
		Subject:              body.Subject,
		Channel:              body.Channel,
		TemplateRef:          body.TemplateRef,
		HTMLContent:          body.HTMLContent,
		IncludesDynamicAsset: body.IncludesDynamicAsset,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body campaignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(id, service.CreateCampaignInput{
		Name:                 body.Name,
		Subject:              body.Subject,
		TemplateRef:          body.TemplateRef,
		HTMLContent:          body.HTMLContent,
		IncludesDynamicAsset: body.IncludesDynamicAsset,
	})
	if err != nil {
		writeCampaignError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	channel := r.URL.Query().Get("channel")
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, channel, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.GetCampaign(id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.DeleteCampaign(id); err != nil {
		writeCampaignError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewCampaign returns the rendered draft body as HTML for a sample
// recipient. Sent campaigns can still be previewed, but are never
// re-rendered from a changed template.
func (c *CampaignController) PreviewCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	html, err := c.CampaignService.PreviewCampaign(id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

type sendRequest struct {
	Segment   string `json:"segment"`
	TestMode  bool   `json:"test_mode"`
	TestEmail string `json:"test_email"`
	TestPhone string `json:"test_phone"`
}

// SendCampaign handles POST /campaigns/{id}/send. In test mode a single
// message goes to the given address and campaign state is untouched;
// otherwise the full segment is dispatched synchronously and the aggregate
// counts are returned.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body sendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Segment == "" {
		body.Segment = "all"
	}

	if body.TestMode {
		if err := c.SendPipeline.SendTest(r.Context(), id, body.TestEmail, body.TestPhone); err != nil {
			writeCampaignError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "test message sent"})
		return
	}

	result, err := c.SendPipeline.Send(r.Context(), id, body.Segment)
	if err != nil {
		writeCampaignError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// writeCampaignError maps the error taxonomy onto status codes so the
// route layer keeps precondition failures distinct from internal faults.
func writeCampaignError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var emptySegment *appErrors.ErrEmptySegment
	var unknownSegment *appErrors.ErrUnknownSegment

	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &emptySegment), errors.As(err, &unknownSegment):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
