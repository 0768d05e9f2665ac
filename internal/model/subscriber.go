// internal/model/subscriber.go
package model

import (
	"strings"
	"time"
)

// Subscriber is the persisted subscriber row. Email and phone are stored as
// nonce-randomized ciphertext; the companion lookup columns hold a keyed
// hash of the plaintext so exact-match queries stay possible. Plaintext
// identifiers never reach the database.
type Subscriber struct {
	ID              int        `db:"id" json:"id"`
	EmailCiphertext string     `db:"email_ciphertext" json:"-"`
	EmailLookup     string     `db:"email_lookup" json:"-"`
	PhoneCiphertext *string    `db:"phone_ciphertext" json:"-"`
	PhoneLookup     *string    `db:"phone_lookup" json:"-"`
	DisplayName     string     `db:"display_name" json:"display_name"`
	EmailSubscribed bool       `db:"email_subscribed" json:"email_subscribed"`
	SMSSubscribed   bool       `db:"sms_subscribed" json:"sms_subscribed"`
	EmailOptInAt    *time.Time `db:"email_opt_in_at" json:"email_opt_in_at,omitempty"`
	EmailOptOutAt   *time.Time `db:"email_opt_out_at" json:"email_opt_out_at,omitempty"`
	SMSOptInAt      *time.Time `db:"sms_opt_in_at" json:"sms_opt_in_at,omitempty"`
	SMSOptOutAt     *time.Time `db:"sms_opt_out_at" json:"sms_opt_out_at,omitempty"`
	SegmentTags     string     `db:"segment_tags" json:"segment_tags"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AddSegmentTag accumulates a tag into the comma-joined set. Existing tags
// are never dropped.
func (s *Subscriber) AddSegmentTag(tag string) {
	if tag == "" {
		return
	}
	for _, existing := range splitTags(s.SegmentTags) {
		if existing == tag {
			return
		}
	}
	if s.SegmentTags == "" {
		s.SegmentTags = tag
		return
	}
	s.SegmentTags = s.SegmentTags + "," + tag
}

func splitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(joined, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
