package staging

import (
	"strings"

	"github.com/rpattn/batchctl/internal/domain"
)

// Rejection reasons recorded on quarantined records.
const (
	ReasonMissingTransactionNumber = "Missing Transaction Number"
	ReasonInvalidQuantity          = "Invalid Quantity"
	ReasonInvalidPrice             = "Invalid Price"
	ReasonUnknown                  = "Unknown Error"
)

// Rule pairs a rejection predicate with the reason it records. Rules are
// evaluated in order and the first match wins.
type Rule struct {
	Match   func(domain.StagingRecord) bool
	Message string
}

// DefaultRules returns the built-in rejection rules in priority order:
// missing transaction number, then non-positive quantity, then non-positive
// unit price.
func DefaultRules() []Rule {
	return []Rule{
		{
			Match: func(r domain.StagingRecord) bool {
				return r.TransactionNumber == nil || strings.TrimSpace(*r.TransactionNumber) == ""
			},
			Message: ReasonMissingTransactionNumber,
		},
		{
			Match:   func(r domain.StagingRecord) bool { return r.Quantity <= 0 },
			Message: ReasonInvalidQuantity,
		},
		{
			Match:   func(r domain.StagingRecord) bool { return r.UnitPrice <= 0 },
			Message: ReasonInvalidPrice,
		},
	}
}

// firstMatch returns the message of the first matching rule. Caller-supplied
// rules without a message fall back to the generic unknown-error reason.
func firstMatch(rules []Rule, record domain.StagingRecord) (string, bool) {
	for _, rule := range rules {
		if rule.Match == nil || !rule.Match(record) {
			continue
		}
		if rule.Message == "" {
			return ReasonUnknown, true
		}
		return rule.Message, true
	}
	return "", false
}
