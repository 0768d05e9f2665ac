// internal/crypto/token.go
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ConsentTokenizer derives the tokens embedded in unsubscribe and SMS
// opt-out links. A token is a deterministic keyed digest over
// (subscriber id, decrypted channel identifier), so it is bound to both and
// cannot be replayed against another subscriber. Tokens carry no expiry;
// the only revocation is the opt-out flag itself.
type ConsentTokenizer struct {
	key []byte
}

// NewConsentTokenizer derives the token key from the same base64-encoded
// master key the FieldCipher uses.
func NewConsentTokenizer(masterKey string) (*ConsentTokenizer, error) {
	keyBytes, err := decodeMasterKey(masterKey)
	if err != nil {
		return nil, err
	}
	return &ConsentTokenizer{key: deriveKey(keyBytes, "consent-token")}, nil
}

// UnsubscribeToken returns the email-channel consent token.
func (t *ConsentTokenizer) UnsubscribeToken(subscriberID int, email string) string {
	return t.digest(subscriberID, email)
}

// SMSOptOutToken returns the SMS-channel consent token.
func (t *ConsentTokenizer) SMSOptOutToken(subscriberID int, phone string) string {
	return t.digest(subscriberID, phone)
}

// VerifyUnsubscribeToken recomputes the token for the identified subscriber
// and compares in constant time.
func (t *ConsentTokenizer) VerifyUnsubscribeToken(subscriberID int, email, token string) bool {
	return hmac.Equal([]byte(t.UnsubscribeToken(subscriberID, email)), []byte(token))
}

// VerifySMSOptOutToken recomputes the token for the identified subscriber
// and compares in constant time.
func (t *ConsentTokenizer) VerifySMSOptOutToken(subscriberID int, phone, token string) bool {
	return hmac.Equal([]byte(t.SMSOptOutToken(subscriberID, phone)), []byte(token))
}

func (t *ConsentTokenizer) digest(subscriberID int, identifier string) string {
	mac := hmac.New(sha256.New, t.key)
	fmt.Fprintf(mac, "%d:%s", subscriberID, identifier)
	return hex.EncodeToString(mac.Sum(nil))
}
