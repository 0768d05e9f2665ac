package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/crypto"
	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/imaging"
	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"
	"github.com/bramblehq/mailvine-backend/internal/transport"
)

// ---------- mocks ----------

type mockSubscriberRepo struct {
	segments map[string][]model.Subscriber
	emails   map[int]string
	phones   map[int]string
	updates  int
}

func (m *mockSubscriberRepo) Create(s *model.Subscriber) error { return nil }
func (m *mockSubscriberRepo) Update(s *model.Subscriber) error { m.updates++; return nil }
func (m *mockSubscriberRepo) GetByID(id int) (*model.Subscriber, error) {
	return nil, nil
}
func (m *mockSubscriberRepo) FindByEmail(email string) (*model.Subscriber, error) {
	for id, e := range m.emails {
		if e == email {
			return &model.Subscriber{ID: id}, nil
		}
	}
	return nil, nil
}
func (m *mockSubscriberRepo) FindByPhone(phone string) (*model.Subscriber, error) {
	for id, p := range m.phones {
		if p == phone {
			return &model.Subscriber{ID: id}, nil
		}
	}
	return nil, nil
}
func (m *mockSubscriberRepo) ListSegment(segment string) ([]model.Subscriber, error) {
	subs, ok := m.segments[segment]
	if !ok {
		return nil, appErrors.NewUnknownSegment(segment)
	}
	return subs, nil
}
func (m *mockSubscriberRepo) ListAll() ([]model.Subscriber, error) { return nil, nil }
func (m *mockSubscriberRepo) Counts() (map[string]int, error)      { return nil, nil }
func (m *mockSubscriberRepo) SetEmail(s *model.Subscriber, plaintext string) error {
	return nil
}
func (m *mockSubscriberRepo) SetPhone(s *model.Subscriber, plaintext string) error {
	return nil
}
func (m *mockSubscriberRepo) DecryptedEmail(s *model.Subscriber) string { return m.emails[s.ID] }
func (m *mockSubscriberRepo) DecryptedPhone(s *model.Subscriber) string { return m.phones[s.ID] }

var _ repository.SubscriberRepositoryInterface = (*mockSubscriberRepo)(nil)

type mockCampaignRepo struct {
	campaigns map[int]*model.Campaign
	sent      []int
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error { return nil }
func (m *mockCampaignRepo) Update(c *model.Campaign) error { return nil }
func (m *mockCampaignRepo) Delete(id int) error            { return nil }
func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}
func (m *mockCampaignRepo) ListCampaigns(offset, limit int, channel, status string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}
func (m *mockCampaignRepo) MarkSent(id int) error {
	m.sent = append(m.sent, id)
	return nil
}

var _ repository.CampaignRepositoryInterface = (*mockCampaignRepo)(nil)

type sentEmail struct {
	to, name, subject, html string
}

type mockEmailTransport struct {
	sent    []sentEmail
	failFor map[string]bool
}

func (m *mockEmailTransport) Send(ctx context.Context, toAddress, toName, subject, html string) (transport.EmailResult, error) {
	if m.failFor[toAddress] {
		return transport.EmailResult{}, fmt.Errorf("provider rejected %s", toAddress)
	}
	m.sent = append(m.sent, sentEmail{toAddress, toName, subject, html})
	return transport.EmailResult{StatusCode: 200}, nil
}

type sentSMS struct {
	to, body string
}

type mockSMSTransport struct {
	sent []sentSMS
}

func (m *mockSMSTransport) Send(ctx context.Context, toPhone, body string) (transport.SmsResult, error) {
	m.sent = append(m.sent, sentSMS{toPhone, body})
	return transport.SmsResult{MessageID: "SM1"}, nil
}

// ---------- fixtures ----------

const testBody = `<h1>Hi {customer_name}</h1><p><a href="{unsubscribe_link}">Unsubscribe</a></p>`

func newTestPipeline(t *testing.T, subs *mockSubscriberRepo, camps *mockCampaignRepo, email *mockEmailTransport, sms *mockSMSTransport) *SendPipeline {
	t.Helper()
	key, err := crypto.GenerateMasterKey()
	require.NoError(t, err)
	tokens, err := crypto.NewConsentTokenizer(key)
	require.NoError(t, err)

	return &SendPipeline{
		Subscribers: subs,
		Campaigns:   camps,
		Tokens:      tokens,
		Images: &imaging.Resolver{
			Mode:      imaging.ModeExternal,
			BaseURL:   "https://mail.test",
			StaticURL: "https://mail.test/static",
			Log:       zap.NewNop(),
		},
		Email:        email,
		SMS:          sms,
		BaseURL:      "https://mail.test",
		BusinessName: "Bramble Goods",
		Log:          zap.NewNop(),
	}
}

func emailSegment(ids ...int) []model.Subscriber {
	subs := make([]model.Subscriber, len(ids))
	for i, id := range ids {
		subs[i] = model.Subscriber{ID: id, DisplayName: fmt.Sprintf("Customer %d", id), EmailSubscribed: true}
	}
	return subs
}

// ---------- tests ----------

func TestSendTalliesPartialFailures(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{"all": emailSegment(1, 2, 3)},
		emails:   map[int]string{1: "a@x.com", 2: "b@x.com", 3: "c@x.com"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Name: "July", Subject: "Hello", Channel: model.ChannelEmail, HTMLContent: testBody},
	}}
	email := &mockEmailTransport{failFor: map[string]bool{"b@x.com": true}}

	p := newTestPipeline(t, subs, camps, email, &mockSMSTransport{})
	result, err := p.Send(context.Background(), 7, "all")
	require.NoError(t, err)

	assert.Equal(t, 2, result.SentCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, email.sent, 2)
	// one bad recipient does not stop the campaign from being marked sent
	assert.Equal(t, []int{7}, camps.sent)
}

func TestSendEmptySegmentAbortsBeforeDispatch(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{"sms_only": {}},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Channel: model.ChannelEmail, HTMLContent: testBody},
	}}
	email := &mockEmailTransport{}

	p := newTestPipeline(t, subs, camps, email, &mockSMSTransport{})
	_, err := p.Send(context.Background(), 7, "sms_only")

	var emptyErr *appErrors.ErrEmptySegment
	require.True(t, errors.As(err, &emptyErr))
	assert.Empty(t, email.sent)
	assert.Empty(t, camps.sent)
}

func TestSendUnknownCampaign(t *testing.T) {
	p := newTestPipeline(t, &mockSubscriberRepo{}, &mockCampaignRepo{campaigns: map[int]*model.Campaign{}}, &mockEmailTransport{}, &mockSMSTransport{})
	_, err := p.Send(context.Background(), 99, "all")

	var notFound *appErrors.ErrCampaignNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 99, notFound.CampaignID)
}

func TestSendIssuesFreshTokenPerRecipient(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{"all": emailSegment(1, 2)},
		emails:   map[int]string{1: "a@x.com", 2: "b@x.com"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Channel: model.ChannelEmail, HTMLContent: testBody},
	}}
	email := &mockEmailTransport{}

	p := newTestPipeline(t, subs, camps, email, &mockSMSTransport{})
	_, err := p.Send(context.Background(), 7, "all")
	require.NoError(t, err)
	require.Len(t, email.sent, 2)

	tokenPattern := regexp.MustCompile(`token=([0-9a-f]+)`)
	m1 := tokenPattern.FindStringSubmatch(email.sent[0].html)
	m2 := tokenPattern.FindStringSubmatch(email.sent[1].html)
	require.NotNil(t, m1)
	require.NotNil(t, m2)

	assert.NotEqual(t, m1[1], m2[1])
	assert.Equal(t, p.Tokens.UnsubscribeToken(1, "a@x.com"), m1[1])
	assert.Equal(t, p.Tokens.UnsubscribeToken(2, "b@x.com"), m2[1])

	// the stored draft still carries its placeholders
	assert.Contains(t, camps.campaigns[7].HTMLContent, PlaceholderLink)
}

func TestSendSMSChannel(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{"sms_only": {
			{ID: 5, DisplayName: "Dana", SMSSubscribed: true},
		}},
		phones: map[int]string{5: "+15550100005"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		3: {ID: 3, Channel: model.ChannelSMS, HTMLContent: "Hi {customer_name}, sale ends tonight. {unsubscribe_link}"},
	}}
	sms := &mockSMSTransport{}

	p := newTestPipeline(t, subs, camps, &mockEmailTransport{}, sms)
	result, err := p.Send(context.Background(), 3, "sms_only")
	require.NoError(t, err)

	assert.Equal(t, 1, result.SentCount)
	require.Len(t, sms.sent, 1)
	msg := sms.sent[0]
	assert.Equal(t, "+15550100005", msg.to)
	assert.Contains(t, msg.body, "Hi Dana")
	assert.Contains(t, msg.body, "Reply STOP to unsubscribe. - Bramble Goods")
	assert.LessOrEqual(t, len(msg.body), 160)
}

func TestSendSMSRecipientWithoutPhoneCountsAsFailed(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{"sms_only": {
			{ID: 5, SMSSubscribed: true},
			{ID: 6, SMSSubscribed: true},
		}},
		phones: map[int]string{6: "+15550100006"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		3: {ID: 3, Channel: model.ChannelSMS, HTMLContent: "Sale on now {unsubscribe_link}"},
	}}
	sms := &mockSMSTransport{}

	p := newTestPipeline(t, subs, camps, &mockEmailTransport{}, sms)
	result, err := p.Send(context.Background(), 3, "sms_only")
	require.NoError(t, err)

	assert.Equal(t, 1, result.SentCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, sms.sent, 1)
}

func TestSendTestNeverMarksSent(t *testing.T) {
	subs := &mockSubscriberRepo{
		segments: map[string][]model.Subscriber{},
		emails:   map[int]string{1: "a@x.com"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Subject: "Hello", Channel: model.ChannelEmail, HTMLContent: testBody},
	}}
	email := &mockEmailTransport{}

	p := newTestPipeline(t, subs, camps, email, &mockSMSTransport{})
	require.NoError(t, p.SendTest(context.Background(), 7, "a@x.com", ""))

	assert.Empty(t, camps.sent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Test Customer", email.sent[0].name)
	// a known subscriber gets a working consent link in the test message
	assert.Contains(t, email.sent[0].html, p.Tokens.UnsubscribeToken(1, "a@x.com"))
}

func TestSendTestUnknownAddressGetsBareOptOutLink(t *testing.T) {
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Channel: model.ChannelEmail, HTMLContent: testBody},
	}}
	email := &mockEmailTransport{}

	p := newTestPipeline(t, &mockSubscriberRepo{}, camps, email, &mockSMSTransport{})
	require.NoError(t, p.SendTest(context.Background(), 7, "stranger@x.com", ""))

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].html, `href="https://mail.test/unsubscribe"`)
	assert.NotContains(t, email.sent[0].html, "token=")
}

func TestSendTestNormalizesPhoneBeforeLookup(t *testing.T) {
	subs := &mockSubscriberRepo{
		phones: map[int]string{9: "+15550100009"},
	}
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		8: {ID: 8, Channel: model.ChannelSMS, HTMLContent: "Hi {customer_name} {unsubscribe_link}"},
	}}
	sms := &mockSMSTransport{}

	p := newTestPipeline(t, subs, camps, &mockEmailTransport{}, sms)
	// a human-formatted number still reaches the stored E.164 subscriber
	require.NoError(t, p.SendTest(context.Background(), 8, "", "555-010-0009"))

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+15550100009", sms.sent[0].to)
	// a tokened per-subscriber link, not the bare opt-out page
	assert.Contains(t, sms.sent[0].body, "/sms-optout?phone=%2B15550100009")

	assert.Error(t, p.SendTest(context.Background(), 8, "", "not-a-phone"))
}

func TestSendTestRequiresAddress(t *testing.T) {
	camps := &mockCampaignRepo{campaigns: map[int]*model.Campaign{
		7: {ID: 7, Channel: model.ChannelEmail, HTMLContent: testBody},
		8: {ID: 8, Channel: model.ChannelSMS, HTMLContent: "hi"},
	}}

	p := newTestPipeline(t, &mockSubscriberRepo{}, camps, &mockEmailTransport{}, &mockSMSTransport{})
	assert.Error(t, p.SendTest(context.Background(), 7, "", ""))
	assert.Error(t, p.SendTest(context.Background(), 8, "", ""))
}
