package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/bramblehq/mailvine-backend/internal/errors"
	"github.com/bramblehq/mailvine-backend/internal/model"
)

func TestSegmentClause(t *testing.T) {
	for segment, want := range map[string]string{
		SegmentAll:       "email_subscribed",
		SegmentEmailOnly: "email_subscribed AND NOT sms_subscribed",
		SegmentSMSOnly:   "sms_subscribed AND NOT email_subscribed",
		SegmentBoth:      "email_subscribed AND sms_subscribed",
	} {
		got, err := segmentClause(segment)
		require.NoError(t, err)
		assert.Equal(t, want, got, segment)
	}
}

func TestSegmentClauseRejectsUnknownSelector(t *testing.T) {
	_, err := segmentClause("vip")
	var unknown *appErrors.ErrUnknownSegment
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "vip", unknown.Segment)
}

// Every consent-flag combination lands in exactly one of the three
// disjoint segments, and "all" is their email-subscribed union.
func TestSegmentsPartitionSubscribers(t *testing.T) {
	cases := []struct {
		email, sms bool
	}{
		{false, false},
		{true, false},
		{false, true},
		{true, true},
	}

	for _, c := range cases {
		s := &model.Subscriber{EmailSubscribed: c.email, SMSSubscribed: c.sms}

		emailOnly, err := SegmentMatches(s, SegmentEmailOnly)
		require.NoError(t, err)
		smsOnly, err := SegmentMatches(s, SegmentSMSOnly)
		require.NoError(t, err)
		both, err := SegmentMatches(s, SegmentBoth)
		require.NoError(t, err)
		all, err := SegmentMatches(s, SegmentAll)
		require.NoError(t, err)

		assert.False(t, emailOnly && smsOnly, "email_only and sms_only overlap")
		assert.False(t, emailOnly && both, "email_only and both overlap")
		assert.False(t, smsOnly && both, "sms_only and both overlap")
		assert.Equal(t, all, emailOnly || both, "all is the email-subscribed union")
	}
}

func TestEmailOnlySignupSegmentMembership(t *testing.T) {
	// email consent only, as a plain signup would create it
	s := &model.Subscriber{EmailSubscribed: true}

	in, err := SegmentMatches(s, SegmentEmailOnly)
	require.NoError(t, err)
	assert.True(t, in)

	out, err := SegmentMatches(s, SegmentSMSOnly)
	require.NoError(t, err)
	assert.False(t, out)
}
