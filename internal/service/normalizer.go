package service

import (
	"regexp"
	"strings"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonDigitRegex   = regexp.MustCompile(`\D+`)
)

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// digitsOnly strips separators operators paste along with card numbers.
func digitsOnly(value string) string {
	return nonDigitRegex.ReplaceAllString(value, "")
}

func normalizeBilling(b domain.BillingDetails) domain.BillingDetails {
	return domain.BillingDetails{
		FirstName:     sanitizeString(b.FirstName),
		LastName:      sanitizeString(b.LastName),
		StreetAddress: sanitizeString(b.StreetAddress),
		ZipCode:       strings.TrimSpace(b.ZipCode),
	}
}

// normalizeNewPaymentProfile cleans operator input before validation. Billing
// names feed the card fingerprint, so stray whitespace would split a card.
func normalizeNewPaymentProfile(in domain.NewPaymentProfile) domain.NewPaymentProfile {
	in.CardDetails.CardNumber = digitsOnly(in.CardDetails.CardNumber)
	in.CardDetails.CardCode = digitsOnly(in.CardDetails.CardCode)
	in.CardDetails.ExpirationDate = strings.TrimSpace(in.CardDetails.ExpirationDate)
	in.BillingDetails = normalizeBilling(in.BillingDetails)
	in.Entity = strings.TrimSpace(in.Entity)
	in.Note = strings.TrimSpace(in.Note)
	return in
}

func normalizeNewNote(in domain.NewNote) domain.NewNote {
	in.Note = strings.TrimSpace(in.Note)
	in.Author = sanitizeString(in.Author)
	return in
}
