package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

var (
	emailRe   = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	// Card numbers before phones: a 16-digit PAN would otherwise match
	// the looser phone pattern first. The leading group keeps
	// +-prefixed international numbers out of reach.
	cardRe    = regexp.MustCompile(`(^|[^+\d])((?:\d[ \-]?){12,18}\d)\b`)
	phoneRe   = regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`)
	ibanRe    = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	accountRe = regexp.MustCompile(`(?i)\b(?:account|acct|acc)\.?\s*(?:no\.?|number|#)?[:\s]\s*\d{6,}\b`)
)

// SetEnabled toggles PII redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Text redacts emails, phone numbers and financial identifiers (card
// numbers, IBANs, labelled account numbers) when enabled.
func Text(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := emailRe.ReplaceAllString(in, "[REDACTED_EMAIL]")
	out = ibanRe.ReplaceAllString(out, "[REDACTED_IBAN]")
	out = accountRe.ReplaceAllString(out, "[REDACTED_ACCOUNT]")
	out = cardRe.ReplaceAllString(out, "${1}[REDACTED_CARD]")
	out = phoneRe.ReplaceAllString(out, "[REDACTED_PHONE]")
	return out
}
