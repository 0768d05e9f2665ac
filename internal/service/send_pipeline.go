// internal/service/send_pipeline.go
package service

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/crypto"
	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/imaging"
	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"
	"github.com/bramblehq/mailvine-backend/internal/transport"
)

// SendResult aggregates per-recipient outcomes of one dispatch.
type SendResult struct {
	CampaignID  int `json:"campaign_id"`
	SentCount   int `json:"sent_count"`
	FailedCount int `json:"failed_count"`
}

// SendPipeline performs the synchronous batch dispatch: resolve the
// recipient segment from live store state, personalize and send one
// recipient at a time in creation order, count failures instead of
// aborting on them, then mark the campaign sent in a single write.
//
// Nothing here retries and nothing is queued; a send attempt is
// best-effort and its per-recipient result is recorded synchronously.
// Concurrent sends of the same campaign are not mutually excluded; the
// MarkSent guard only keeps the first sent_at stamp.
type SendPipeline struct {
	Subscribers  repository.SubscriberRepositoryInterface
	Campaigns    repository.CampaignRepositoryInterface
	Tokens       *crypto.ConsentTokenizer
	Images       *imaging.Resolver
	Email        transport.EmailTransport
	SMS          transport.SmsTransport
	BaseURL      string
	BusinessName string
	Log          *zap.Logger
}

// Send dispatches a campaign to every subscriber in the segment. A missing
// campaign or an empty segment aborts before any recipient is attempted
// and leaves no partial state.
func (p *SendPipeline) Send(ctx context.Context, campaignID int, segment string) (*SendResult, error) {
	campaign, err := p.Campaigns.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	recipients, err := p.Subscribers.ListSegment(segment)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.NewEmptySegment(segment)
	}

	asset := ""
	if campaign.IncludesDynamicAsset {
		asset = p.Images.AssetURL(dynamicAssetFile(campaign))
	}

	result := &SendResult{CampaignID: campaignID}
	for i := range recipients {
		if err := p.dispatchOne(ctx, campaign, &recipients[i], asset); err != nil {
			p.Log.Warn("recipient dispatch failed",
				zap.Int("campaign_id", campaignID),
				zap.Int("subscriber_id", recipients[i].ID),
				zap.Error(err),
			)
			result.FailedCount++
			continue
		}
		result.SentCount++
	}

	if err := p.Campaigns.MarkSent(campaignID); err != nil {
		return result, err
	}

	p.Log.Info("campaign dispatched",
		zap.Int("campaign_id", campaignID),
		zap.String("segment", segment),
		zap.Int("sent", result.SentCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}

// dispatchOne handles a single recipient end to end. Errors are contained
// by the caller; one failure never affects the rest of the segment.
func (p *SendPipeline) dispatchOne(ctx context.Context, campaign *model.Campaign, sub *model.Subscriber, asset string) error {
	name := sub.DisplayName

	switch campaign.Channel {
	case model.ChannelSMS:
		phone := p.Subscribers.DecryptedPhone(sub)
		if phone == "" {
			return fmt.Errorf("subscriber %d has no usable phone number", sub.ID)
		}
		// Token and link are computed fresh for every recipient.
		link := p.smsOptOutLink(sub.ID, phone)
		body := Personalize(campaign.HTMLContent, name, link, "", false)
		body = transport.ComposeWithOptOut(body, p.BusinessName)
		_, err := p.SMS.Send(ctx, phone, body)
		return err

	default: // email
		email := p.Subscribers.DecryptedEmail(sub)
		if email == "" {
			return fmt.Errorf("subscriber %d has no usable email address", sub.ID)
		}
		link := p.unsubscribeLink(sub.ID, email)
		html := Personalize(campaign.HTMLContent, name, link, asset, campaign.IncludesDynamicAsset)
		html = p.Images.Embed(html)
		_, err := p.Email.Send(ctx, email, displayName(name), campaign.Subject, html)
		return err
	}
}

// SendTest dispatches a single message to the given address without ever
// touching campaign state. When the test address belongs to a real
// subscriber the consent link is fully functional; otherwise it points at
// the bare opt-out page.
func (p *SendPipeline) SendTest(ctx context.Context, campaignID int, testEmail, testPhone string) error {
	campaign, err := p.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}

	if campaign.Channel == model.ChannelSMS {
		if testPhone == "" {
			return fmt.Errorf("test phone number is required for an sms campaign")
		}
		testPhone = transport.FormatPhoneNumber(testPhone)
		if testPhone == "" {
			return fmt.Errorf("test phone number is not a valid phone number")
		}
		link := p.BaseURL + "/sms-optout"
		if sub, err := p.Subscribers.FindByPhone(testPhone); err == nil && sub != nil {
			link = p.smsOptOutLink(sub.ID, testPhone)
		}
		body := Personalize(campaign.HTMLContent, "Test Customer", link, "", false)
		body = transport.ComposeWithOptOut(body, p.BusinessName)
		_, err = p.SMS.Send(ctx, testPhone, body)
		return err
	}

	if testEmail == "" {
		return fmt.Errorf("test email address is required")
	}
	link := p.BaseURL + "/unsubscribe"
	if sub, err := p.Subscribers.FindByEmail(testEmail); err == nil && sub != nil {
		link = p.unsubscribeLink(sub.ID, testEmail)
	}

	asset := ""
	if campaign.IncludesDynamicAsset {
		asset = p.Images.AssetURL(dynamicAssetFile(campaign))
	}
	html := Personalize(campaign.HTMLContent, "Test Customer", link, asset, campaign.IncludesDynamicAsset)
	html = p.Images.Embed(html)
	_, err = p.Email.Send(ctx, testEmail, "Test Customer", campaign.Subject, html)
	return err
}

func (p *SendPipeline) unsubscribeLink(subscriberID int, email string) string {
	token := p.Tokens.UnsubscribeToken(subscriberID, email)
	return fmt.Sprintf("%s/unsubscribe?email=%s&token=%s", p.BaseURL, url.QueryEscape(email), token)
}

func (p *SendPipeline) smsOptOutLink(subscriberID int, phone string) string {
	token := p.Tokens.SMSOptOutToken(subscriberID, phone)
	return fmt.Sprintf("%s/sms-optout?phone=%s&token=%s", p.BaseURL, url.QueryEscape(phone), token)
}

func displayName(name string) string {
	if name == "" {
		return DefaultRecipientName
	}
	return name
}
