// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/imaging"
	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"
)

// CampaignService owns the draft lifecycle: create, edit, preview, list,
// delete. Sending is the SendPipeline's job.
type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Images       *imaging.Resolver
	Log          *zap.Logger
}

type CreateCampaignInput struct {
	Name                 string
	Subject              string
	Channel              string
	TemplateRef          string
	HTMLContent          string
	IncludesDynamicAsset bool
}

func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("campaign name cannot be empty")
	}
	if strings.TrimSpace(in.HTMLContent) == "" {
		return nil, fmt.Errorf("campaign body cannot be empty")
	}
	channel := in.Channel
	if channel == "" {
		channel = model.ChannelEmail
	}
	if channel != model.ChannelEmail && channel != model.ChannelSMS {
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}

	c := &model.Campaign{
		Name:                 in.Name,
		Subject:              in.Subject,
		Channel:              channel,
		TemplateRef:          in.TemplateRef,
		HTMLContent:          in.HTMLContent,
		IncludesDynamicAsset: in.IncludesDynamicAsset,
		Status:               model.CampaignDraft,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateCampaign edits a draft. Sent campaigns are immutable except for
// deletion.
func (s *CampaignService) UpdateCampaign(id int, in CreateCampaignInput) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CampaignSent {
		return nil, fmt.Errorf("campaign %d has been sent and can no longer be edited", id)
	}

	if in.Name != "" {
		c.Name = in.Name
	}
	if in.Subject != "" {
		c.Subject = in.Subject
	}
	if in.TemplateRef != "" && in.TemplateRef != c.TemplateRef {
		c.TemplateRef = in.TemplateRef
	}
	if in.HTMLContent != "" {
		c.HTMLContent = in.HTMLContent
	}
	c.IncludesDynamicAsset = in.IncludesDynamicAsset

	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) DeleteCampaign(id int) error {
	return s.CampaignRepo.Delete(id)
}

func (s *CampaignService) GetCampaign(id int) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

// PreviewCampaign renders the draft body for a sample recipient with the
// deployment's image handling applied. The stored body is not modified;
// in particular the consent-link placeholder stays unresolved until send.
func (s *CampaignService) PreviewCampaign(id int) (string, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return "", err
	}
	asset := ""
	if c.IncludesDynamicAsset {
		asset = s.Images.AssetURL(dynamicAssetFile(c))
	}
	html := RenderSample(c.HTMLContent, asset, c.IncludesDynamicAsset)
	if c.Channel == model.ChannelEmail {
		html = s.Images.Embed(html)
	}
	return html, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, channel, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, channel, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// dynamicAssetFile names the per-campaign asset image. Campaigns reference
// it by template, so the template ref doubles as the asset namespace.
func dynamicAssetFile(c *model.Campaign) string {
	ref := c.TemplateRef
	if ref == "" {
		ref = "campaign"
	}
	return strings.TrimSuffix(ref, ".html") + "_asset.png"
}
