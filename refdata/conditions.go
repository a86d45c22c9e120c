// Package refdata holds the immutable reference tables driving trade
// eligibility: per-exchange condition rules and exchange code mappings.
// Both are built once at startup and treated as read-only for a run.
package refdata

import (
	"errors"
	"fmt"

	"ohlcvc-builder/market"
)

// ErrUnknownCondition is returned by Classify under the reject policy.
var ErrUnknownCondition = errors.New("unknown condition code")

// UnknownPolicy decides how condition codes absent from the table classify.
type UnknownPolicy int

const (
	// IncludeByDefault treats unknown codes as unrestricted.
	IncludeByDefault UnknownPolicy = iota
	// ExcludeByDefault treats unknown codes as excluding the trade from
	// every bar field.
	ExcludeByDefault
	// RejectUnknown fails classification with ErrUnknownCondition.
	RejectUnknown
)

// ParseUnknownPolicy converts a config string to an UnknownPolicy.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch s {
	case "", "includeByDefault":
		return IncludeByDefault, nil
	case "excludeByDefault":
		return ExcludeByDefault, nil
	case "reject":
		return RejectUnknown, nil
	default:
		return 0, fmt.Errorf("unknown condition policy %q (use includeByDefault, excludeByDefault or reject)", s)
	}
}

// ConditionRule is one reference-table row: the bar fields a condition code
// allows a trade to influence on one exchange. An empty Exchange applies to
// every exchange; an exchange-specific row takes precedence.
type ConditionRule struct {
	Exchange string
	Code     string
	Open     bool
	HighLow  bool
	Close    bool
	Volume   bool
}

type ruleKey struct {
	exchange string
	code     string
}

// RuleSet is the compiled condition table. Lookup is O(1) per code.
type RuleSet struct {
	rules  map[ruleKey]ConditionRule
	policy UnknownPolicy
}

// NewRuleSet compiles rules into a RuleSet with the given unknown-code policy.
func NewRuleSet(rules []ConditionRule, policy UnknownPolicy) *RuleSet {
	m := make(map[ruleKey]ConditionRule, len(rules))
	for _, r := range rules {
		m[ruleKey{r.Exchange, r.Code}] = r
	}
	return &RuleSet{rules: m, policy: policy}
}

// Policy returns the unknown-code policy.
func (rs *RuleSet) Policy() UnknownPolicy { return rs.policy }

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Classify derives the eligibility vector for one trade's condition codes on
// the given exchange. Flags start true and composite sets combine by
// most-restrictive-wins: once any code clears a flag it never flips back.
// An empty code set yields all-true (a regular trade).
func (rs *RuleSet) Classify(exchange string, codes []string) (market.EligibilityVector, error) {
	v := market.EligibilityVector{Open: true, HighLow: true, Close: true, Volume: true}
	for _, code := range codes {
		rule, ok := rs.lookup(exchange, code)
		if !ok {
			switch rs.policy {
			case IncludeByDefault:
				continue
			case ExcludeByDefault:
				return market.EligibilityVector{}, nil
			case RejectUnknown:
				return market.EligibilityVector{}, fmt.Errorf("%w: %q on exchange %q", ErrUnknownCondition, code, exchange)
			}
		}
		v.Open = v.Open && rule.Open
		v.HighLow = v.HighLow && rule.HighLow
		v.Close = v.Close && rule.Close
		v.Volume = v.Volume && rule.Volume
	}
	return v, nil
}

func (rs *RuleSet) lookup(exchange, code string) (ConditionRule, bool) {
	if r, ok := rs.rules[ruleKey{exchange, code}]; ok {
		return r, true
	}
	r, ok := rs.rules[ruleKey{"", code}]
	return r, ok
}
