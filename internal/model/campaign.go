// internal/model/campaign.go
package model

import "time"

// Campaign statuses. Dispatch is synchronous, so no mid-flight state is
// ever persisted.
const (
	CampaignDraft = "draft"
	CampaignSent  = "sent"
)

// Campaign channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Campaign struct {
	ID          int    `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Subject     string `db:"subject" json:"subject"`
	Channel     string `db:"channel" json:"channel"`
	TemplateRef string `db:"template_ref" json:"template_ref"`

	// HTMLContent is the authored body with personalization placeholders
	// still in place. {unsubscribe_link} in particular survives the whole
	// draft lifecycle and is only resolved per recipient at send time.
	HTMLContent string `db:"html_content" json:"html_content"`

	IncludesDynamicAsset bool       `db:"includes_dynamic_asset" json:"includes_dynamic_asset"`
	Status               string     `db:"status" json:"status"`
	SentAt               *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
