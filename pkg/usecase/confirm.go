package usecase

import "strings"

// confirmVerdict is the interpretation of a reply to a confirmation question
type confirmVerdict int

const (
	verdictUnclear confirmVerdict = iota
	verdictAffirm
	verdictDeny
)

// normalizeAnswer strips punctuation and case so vocabulary matching is
// exact on the normalized form, never fuzzy
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".,!? ")
}

// interpretConfirmation matches the message against the configured yes/no
// vocabulary. Anything that matches neither side is unclear; the caller
// decides whether to re-ask or treat the message as a new request.
func (uc *UseCases) interpretConfirmation(text string) confirmVerdict {
	normalized := normalizeAnswer(text)
	if normalized == "" {
		return verdictUnclear
	}

	for _, word := range uc.cfg.Confirmation.Affirmations {
		if normalized == normalizeAnswer(word) {
			return verdictAffirm
		}
	}
	for _, word := range uc.cfg.Confirmation.Denials {
		if normalized == normalizeAnswer(word) {
			return verdictDeny
		}
	}
	return verdictUnclear
}
