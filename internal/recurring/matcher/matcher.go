// Package matcher links a transaction to at most one recurring bill using a
// deterministic weighted-scoring rule. No AI or semantic component is
// involved; the same inputs always produce the same link decision.
package matcher

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	ingmodels "homeledger/internal/ingestion/models"
	"homeledger/internal/recurring/models"
)

// Engine constants. Candidates whose configuration does not carry exactly
// these values are silently excluded; there is no upgrade or migration logic.
const (
	SupportedScoreVersion   = "v1"
	SupportedTieBreakPolicy = "decline"
)

// minMerchantLength is the minimum normalized merchant length considered for
// substring matching. Shorter names match too promiscuously.
const minMerchantLength = 3

var one = decimal.NewFromInt(1)

// Input carries the transaction fields the scorer consumes.
type Input struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

// Candidate pairs a recurring item with the last transaction date observed
// for it, if any. The orchestrator overlays in-batch observations so later
// items in the same batch score against the freshest baseline.
type Candidate struct {
	Item         *models.RecurringItem
	LastObserved *time.Time
}

// Evaluation is a fully scored qualifying candidate.
type Evaluation struct {
	Item          *models.RecurringItem
	DueDateScore  decimal.Decimal
	AmountScore   decimal.Decimal
	RecencyScore  decimal.Decimal
	WeightedScore decimal.Decimal
}

// Outcome classifies the match attempt.
type Outcome string

const (
	// OutcomeMatched: exactly one qualifying candidate cleared the threshold.
	OutcomeMatched Outcome = "matched"
	// OutcomeNoMatch: no candidate qualified. Not an error.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeAmbiguous: more than one candidate qualified. The engine never
	// picks a "best" among ties; an ambiguous attempt links nothing.
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Match scores every candidate and resolves ambiguity. Exactly one
// qualifying candidate yields a match; zero or more than one yields none.
func Match(in Input, candidates []Candidate) (*Evaluation, Outcome) {
	var qualifying []*Evaluation
	for _, c := range candidates {
		if eval, ok := Evaluate(in, c); ok {
			qualifying = append(qualifying, eval)
		}
	}
	switch len(qualifying) {
	case 0:
		return nil, OutcomeNoMatch
	case 1:
		return qualifying[0], OutcomeMatched
	default:
		return nil, OutcomeAmbiguous
	}
}

// Evaluate runs the filter chain and scoring for a single candidate.
// Returns false when the candidate is ineligible, outside its window or
// variance, or below its match threshold.
func Evaluate(in Input, c Candidate) (*Evaluation, bool) {
	item := c.Item
	if item == nil || !item.Active {
		return nil, false
	}
	if item.ScoreVersion != SupportedScoreVersion || item.TieBreakPolicy != SupportedTieBreakPolicy {
		return nil, false
	}
	if !merchantMatches(item.MerchantName, in.Description) {
		return nil, false
	}

	txDate := ingmodels.NormalizeDate(in.Date)
	dueDate := ingmodels.NormalizeDate(item.NextDueDate)
	windowStart := dueDate.AddDate(0, 0, -item.DueWindowBeforeDays)
	windowEnd := dueDate.AddDate(0, 0, item.DueWindowAfterDays)
	if txDate.Before(windowStart) || txDate.After(windowEnd) {
		return nil, false
	}

	amountDelta := in.Amount.Sub(item.ExpectedAmount).Abs()
	allowed := allowedVariance(item)
	if amountDelta.GreaterThan(allowed) {
		return nil, false
	}

	eval := &Evaluation{
		Item:         item,
		DueDateScore: dueDateScore(txDate, dueDate, item),
		AmountScore:  amountScore(amountDelta, allowed),
		RecencyScore: recencyScore(txDate, c.LastObserved, item.Frequency),
	}
	eval.WeightedScore = eval.DueDateScore.Mul(item.DueDateWeight).
		Add(eval.AmountScore.Mul(item.AmountWeight)).
		Add(eval.RecencyScore.Mul(item.RecencyWeight)).
		RoundBank(4)

	if eval.WeightedScore.LessThan(item.MatchThreshold) {
		return nil, false
	}
	return eval, true
}

// allowedVariance is max(|expected| * percent/100, absoluteVariance).
func allowedVariance(item *models.RecurringItem) decimal.Decimal {
	percentBand := item.ExpectedAmount.Abs().Mul(item.AmountVariancePercent).Div(decimal.NewFromInt(100))
	return decimal.Max(percentBand, item.AmountVarianceAbsolute)
}

// dueDateScore = 1 - min(1, distanceDays / max(1, max(daysBefore, daysAfter))).
func dueDateScore(txDate, dueDate time.Time, item *models.RecurringItem) decimal.Decimal {
	distance := daysBetween(dueDate, txDate)
	if distance < 0 {
		distance = -distance
	}
	window := item.DueWindowBeforeDays
	if item.DueWindowAfterDays > window {
		window = item.DueWindowAfterDays
	}
	if window < 1 {
		window = 1
	}
	return one.Sub(cappedRatio(decimal.NewFromInt(int64(distance)), decimal.NewFromInt(int64(window))))
}

// amountScore = 1 - min(1, amountDelta / allowedVariance); degenerate zero
// variance scores 1 only on an exact amount.
func amountScore(delta, allowed decimal.Decimal) decimal.Decimal {
	if allowed.IsZero() {
		if delta.IsZero() {
			return one
		}
		return decimal.Zero
	}
	return one.Sub(cappedRatio(delta, allowed))
}

// recencyScore compares the gap between the transaction and the date one
// period past the last observation. With no prior observation the score is 1.
func recencyScore(txDate time.Time, lastObserved *time.Time, freq models.Frequency) decimal.Decimal {
	if lastObserved == nil {
		return one
	}
	last := ingmodels.NormalizeDate(*lastObserved)
	anchor := freq.Advance(last)
	expectedDistance := daysBetween(last, anchor)
	if expectedDistance < 1 {
		expectedDistance = 1
	}
	observedDistance := daysBetween(anchor, txDate)
	if observedDistance < 0 {
		observedDistance = -observedDistance
	}
	return one.Sub(cappedRatio(decimal.NewFromInt(int64(observedDistance)), decimal.NewFromInt(int64(expectedDistance))))
}

func cappedRatio(numerator, denominator decimal.Decimal) decimal.Decimal {
	ratio := numerator.Div(denominator)
	if ratio.GreaterThan(one) {
		return one
	}
	return ratio
}

// merchantMatches requires the normalized merchant (minimum length 3) to be a
// substring of the normalized description or vice versa.
func merchantMatches(merchant, description string) bool {
	m := normalizeMerchant(merchant)
	d := normalizeMerchant(description)
	if len(m) < minMerchantLength || d == "" {
		return false
	}
	return strings.Contains(d, m) || strings.Contains(m, d)
}

// normalizeMerchant lower-cases and strips every non-alphanumeric rune.
func normalizeMerchant(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
