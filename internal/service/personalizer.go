// internal/service/personalizer.go
package service

import "strings"

// Personalization placeholders recognized in stored campaign bodies.
const (
	PlaceholderName  = "{customer_name}"
	PlaceholderLink  = "{unsubscribe_link}"
	PlaceholderAsset = "{dynamic_asset}"
)

// DefaultRecipientName substitutes for subscribers without a display name.
const DefaultRecipientName = "Valued Customer"

// RenderTemplate substitutes {key} placeholders from data.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Personalize resolves one recipient's copy of a campaign body. The
// consent link is recipient-specific, so this only ever runs inside the
// send pipeline; draft bodies keep the {unsubscribe_link} placeholder. The
// asset placeholder is filled only when the campaign carries a dynamic
// asset, and stripped otherwise so no placeholder leaks into sent output.
func Personalize(htmlContent, recipientName, consentLink, asset string, includeAsset bool) string {
	if recipientName == "" {
		recipientName = DefaultRecipientName
	}
	if !includeAsset {
		asset = ""
	}
	return RenderTemplate(htmlContent, map[string]string{
		"customer_name":    recipientName,
		"unsubscribe_link": consentLink,
		"dynamic_asset":    asset,
	})
}

// RenderSample is the authoring-time preview render: a sample recipient
// and an inert consent link. The stored draft body itself is never
// rewritten; a real consent link exists only per recipient at send time.
func RenderSample(htmlContent, asset string, includeAsset bool) string {
	return Personalize(htmlContent, "Sample Customer", "#", asset, includeAsset)
}
