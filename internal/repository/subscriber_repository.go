package repository

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/crypto"
	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/model"
)

// Segment selectors partition subscribers by channel subscription.
const (
	SegmentAll       = "all"        // email-subscribed
	SegmentEmailOnly = "email_only" // email-subscribed, not sms-subscribed
	SegmentSMSOnly   = "sms_only"   // sms-subscribed, not email-subscribed
	SegmentBoth      = "both"       // both flags set
)

// SubscriberRepositoryInterface is the store boundary the services depend
// on. Encryption stays visible at every call site: identifiers go in and
// out through the SetEmail/SetPhone and DecryptedEmail/DecryptedPhone
// mappers, never through transparent field access.
type SubscriberRepositoryInterface interface {
	Create(s *model.Subscriber) error
	Update(s *model.Subscriber) error
	GetByID(id int) (*model.Subscriber, error)
	FindByEmail(email string) (*model.Subscriber, error)
	FindByPhone(phone string) (*model.Subscriber, error)
	ListSegment(segment string) ([]model.Subscriber, error)
	ListAll() ([]model.Subscriber, error)
	Counts() (map[string]int, error)

	SetEmail(s *model.Subscriber, plaintext string) error
	SetPhone(s *model.Subscriber, plaintext string) error
	DecryptedEmail(s *model.Subscriber) string
	DecryptedPhone(s *model.Subscriber) string
}

// SubscriberRepository is the concrete Postgres implementation.
type SubscriberRepository struct {
	DB     *sql.DB
	Cipher *crypto.FieldCipher
	Log    *zap.Logger
}

const subscriberColumns = `id, email_ciphertext, email_lookup, phone_ciphertext, phone_lookup,
        display_name, email_subscribed, sms_subscribed,
        email_opt_in_at, email_opt_out_at, sms_opt_in_at, sms_opt_out_at,
        segment_tags, created_at, updated_at`

func (r *SubscriberRepository) Create(s *model.Subscriber) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	query := `
        INSERT INTO subscribers
        (email_ciphertext, email_lookup, phone_ciphertext, phone_lookup,
         display_name, email_subscribed, sms_subscribed,
         email_opt_in_at, email_opt_out_at, sms_opt_in_at, sms_opt_out_at,
         segment_tags, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		s.EmailCiphertext, s.EmailLookup, s.PhoneCiphertext, s.PhoneLookup,
		s.DisplayName, s.EmailSubscribed, s.SMSSubscribed,
		s.EmailOptInAt, s.EmailOptOutAt, s.SMSOptInAt, s.SMSOptOutAt,
		s.SegmentTags, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
}

func (r *SubscriberRepository) Update(s *model.Subscriber) error {
	s.UpdatedAt = time.Now()
	query := `
        UPDATE subscribers
        SET email_ciphertext=$1, email_lookup=$2, phone_ciphertext=$3, phone_lookup=$4,
            display_name=$5, email_subscribed=$6, sms_subscribed=$7,
            email_opt_in_at=$8, email_opt_out_at=$9, sms_opt_in_at=$10, sms_opt_out_at=$11,
            segment_tags=$12, updated_at=$13
        WHERE id=$14
    `
	_, err := r.DB.Exec(query,
		s.EmailCiphertext, s.EmailLookup, s.PhoneCiphertext, s.PhoneLookup,
		s.DisplayName, s.EmailSubscribed, s.SMSSubscribed,
		s.EmailOptInAt, s.EmailOptOutAt, s.SMSOptInAt, s.SMSOptOutAt,
		s.SegmentTags, s.UpdatedAt, s.ID,
	)
	return err
}

func (r *SubscriberRepository) GetByID(id int) (*model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE id=$1`
	return r.scanOne(r.DB.QueryRow(query, id))
}

// FindByEmail resolves a plaintext email through the blind index. The
// randomized ciphertext column is never used for matching.
func (r *SubscriberRepository) FindByEmail(email string) (*model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email_lookup=$1`
	return r.scanOne(r.DB.QueryRow(query, r.Cipher.LookupHash(email)))
}

func (r *SubscriberRepository) FindByPhone(phone string) (*model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE phone_lookup=$1`
	return r.scanOne(r.DB.QueryRow(query, r.Cipher.LookupHash(phone)))
}

// segmentClause maps a segment selector to its SQL predicate.
func segmentClause(segment string) (string, error) {
	switch segment {
	case SegmentAll:
		return "email_subscribed", nil
	case SegmentEmailOnly:
		return "email_subscribed AND NOT sms_subscribed", nil
	case SegmentSMSOnly:
		return "sms_subscribed AND NOT email_subscribed", nil
	case SegmentBoth:
		return "email_subscribed AND sms_subscribed", nil
	default:
		return "", appErrors.NewUnknownSegment(segment)
	}
}

// SegmentMatches reports whether a subscriber's consent flags place it in
// the segment. It is the in-memory mirror of segmentClause and exists so
// segment membership can be asserted without a database.
func SegmentMatches(s *model.Subscriber, segment string) (bool, error) {
	switch segment {
	case SegmentAll:
		return s.EmailSubscribed, nil
	case SegmentEmailOnly:
		return s.EmailSubscribed && !s.SMSSubscribed, nil
	case SegmentSMSOnly:
		return s.SMSSubscribed && !s.EmailSubscribed, nil
	case SegmentBoth:
		return s.EmailSubscribed && s.SMSSubscribed, nil
	default:
		return false, appErrors.NewUnknownSegment(segment)
	}
}

// ListSegment enumerates a segment in creation (id) order. Send dispatch
// order follows this ordering.
func (r *SubscriberRepository) ListSegment(segment string) ([]model.Subscriber, error) {
	where, err := segmentClause(segment)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE ` + where + ` ORDER BY id`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *SubscriberRepository) ListAll() ([]model.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY id`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// Counts returns the dashboard numbers: totals plus per-segment sizes.
func (r *SubscriberRepository) Counts() (map[string]int, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE email_subscribed),
            COUNT(*) FILTER (WHERE NOT email_subscribed),
            COUNT(*) FILTER (WHERE sms_subscribed),
            COUNT(*) FILTER (WHERE email_subscribed AND NOT sms_subscribed),
            COUNT(*) FILTER (WHERE sms_subscribed AND NOT email_subscribed),
            COUNT(*) FILTER (WHERE email_subscribed AND sms_subscribed)
        FROM subscribers
    `
	counts := map[string]int{}
	var total, subscribed, unsubscribed, sms, emailOnly, smsOnly, both int
	err := r.DB.QueryRow(query).Scan(&total, &subscribed, &unsubscribed, &sms, &emailOnly, &smsOnly, &both)
	if err != nil {
		return nil, err
	}
	counts["total"] = total
	counts["email_subscribed"] = subscribed
	counts["email_unsubscribed"] = unsubscribed
	counts["sms_subscribed"] = sms
	counts["email_only"] = emailOnly
	counts["sms_only"] = smsOnly
	counts["both"] = both
	return counts, nil
}

// SetEmail encrypts a plaintext email into the record and refreshes its
// lookup hash.
func (r *SubscriberRepository) SetEmail(s *model.Subscriber, plaintext string) error {
	ct, err := r.Cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	s.EmailCiphertext = ct
	s.EmailLookup = r.Cipher.LookupHash(plaintext)
	return nil
}

// SetPhone encrypts a plaintext phone into the record. An empty phone
// clears both columns.
func (r *SubscriberRepository) SetPhone(s *model.Subscriber, plaintext string) error {
	if plaintext == "" {
		s.PhoneCiphertext = nil
		s.PhoneLookup = nil
		return nil
	}
	ct, err := r.Cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	lookup := r.Cipher.LookupHash(plaintext)
	s.PhoneCiphertext = &ct
	s.PhoneLookup = &lookup
	return nil
}

// DecryptedEmail maps the stored value back to plaintext. Legacy rows from
// before encryption decrypt to themselves; corrupt ciphertext yields "" and
// is logged, leaving the caller to count the recipient as failed.
func (r *SubscriberRepository) DecryptedEmail(s *model.Subscriber) string {
	return r.decryptField(s.ID, "email", s.EmailCiphertext)
}

func (r *SubscriberRepository) DecryptedPhone(s *model.Subscriber) string {
	if s.PhoneCiphertext == nil {
		return ""
	}
	return r.decryptField(s.ID, "phone", *s.PhoneCiphertext)
}

func (r *SubscriberRepository) decryptField(id int, field, stored string) string {
	res := r.Cipher.Decrypt(stored)
	switch res.Status {
	case crypto.DecryptLegacyPlaintext:
		r.Log.Warn("stored value predates encryption, returning as-is",
			zap.Int("subscriber_id", id), zap.String("field", field))
	case crypto.DecryptCorrupt:
		r.Log.Error("stored ciphertext failed authentication",
			zap.Int("subscriber_id", id), zap.String("field", field))
	}
	return res.Value
}

func (r *SubscriberRepository) scanOne(row *sql.Row) (*model.Subscriber, error) {
	var s model.Subscriber
	err := row.Scan(
		&s.ID, &s.EmailCiphertext, &s.EmailLookup, &s.PhoneCiphertext, &s.PhoneLookup,
		&s.DisplayName, &s.EmailSubscribed, &s.SMSSubscribed,
		&s.EmailOptInAt, &s.EmailOptOutAt, &s.SMSOptInAt, &s.SMSOptOutAt,
		&s.SegmentTags, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubscriberRepository) scanMany(rows *sql.Rows) ([]model.Subscriber, error) {
	subscribers := []model.Subscriber{}
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(
			&s.ID, &s.EmailCiphertext, &s.EmailLookup, &s.PhoneCiphertext, &s.PhoneLookup,
			&s.DisplayName, &s.EmailSubscribed, &s.SMSSubscribed,
			&s.EmailOptInAt, &s.EmailOptOutAt, &s.SMSOptInAt, &s.SMSOptOutAt,
			&s.SegmentTags, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, rows.Err()
}

var _ SubscriberRepositoryInterface = (*SubscriberRepository)(nil)
