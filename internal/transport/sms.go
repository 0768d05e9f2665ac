// internal/transport/sms.go
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// maxSMSLength is the single-segment SMS limit; body plus opt-out suffix
// must never exceed it.
const maxSMSLength = 160

// SmsResult carries the provider's message identifier.
type SmsResult struct {
	MessageID string
}

// SmsTransport is the outbound SMS capability the send pipeline depends
// on. The recipient phone must already be in E.164 form and the body must
// already carry the opt-out suffix (see ComposeWithOptOut).
type SmsTransport interface {
	Send(ctx context.Context, toPhone, body string) (SmsResult, error)
}

// TwilioTransport posts to the Twilio Messages API.
type TwilioTransport struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	client     *http.Client
}

func NewTwilioTransport(accountSID, authToken, fromNumber, baseURL string) *TwilioTransport {
	return &TwilioTransport{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TwilioTransport) Send(ctx context.Context, toPhone, body string) (SmsResult, error) {
	form := url.Values{}
	form.Set("To", toPhone)
	form.Set("From", t.FromNumber)
	form.Set("Body", body)

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, t.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return SmsResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return SmsResult{}, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SmsResult{}, fmt.Errorf("sms api error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SmsResult{}, fmt.Errorf("unexpected sms api response: %w", err)
	}
	return SmsResult{MessageID: parsed.Sid}, nil
}

// ComposeWithOptOut appends the legally required opt-out suffix and keeps
// the total message within a single SMS segment. The body, never the
// suffix, is truncated, with a trailing ellipsis marker. The cut always
// lands on a rune boundary so personalized bodies with multibyte names
// stay valid UTF-8.
func ComposeWithOptOut(body, businessName string) string {
	suffix := "\n\nReply STOP to unsubscribe. - " + businessName
	budget := maxSMSLength - len(suffix)
	if len(body) > budget {
		cut := budget - len("...")
		if cut < 0 {
			cut = 0
		}
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return body + suffix
}

var _ SmsTransport = (*TwilioTransport)(nil)
