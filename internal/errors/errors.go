package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrSubscriberNotFound signals that no subscriber matched the presented
// identifier. Distinct from ErrInvalidConsentToken so the route layer can
// render "not found" and "bad link" differently.
type ErrSubscriberNotFound struct {
	Channel string // email | sms
}

func (e *ErrSubscriberNotFound) Error() string {
	return fmt.Sprintf("no subscriber matches the presented %s identifier", e.Channel)
}

func NewSubscriberNotFound(channel string) error {
	return &ErrSubscriberNotFound{Channel: channel}
}

// ErrInvalidConsentToken is a security-relevant rejection: the identifier
// matched a subscriber but the token did not.
type ErrInvalidConsentToken struct{}

func (e *ErrInvalidConsentToken) Error() string {
	return "invalid consent token"
}

func NewInvalidConsentToken() error {
	return &ErrInvalidConsentToken{}
}

// ErrEmptySegment aborts a send before any dispatch happens.
type ErrEmptySegment struct {
	Segment string
}

func (e *ErrEmptySegment) Error() string {
	return fmt.Sprintf("segment %q resolved to zero recipients", e.Segment)
}

func NewEmptySegment(segment string) error {
	return &ErrEmptySegment{Segment: segment}
}

// ErrUnknownSegment rejects a selector outside all/email_only/sms_only/both.
type ErrUnknownSegment struct {
	Segment string
}

func (e *ErrUnknownSegment) Error() string {
	return fmt.Sprintf("unknown segment selector %q", e.Segment)
}

func NewUnknownSegment(segment string) error {
	return &ErrUnknownSegment{Segment: segment}
}
