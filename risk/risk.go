// Package risk implements the rule-based invoice discount engine.
//
// Evaluate is pure: the same Input always yields the same Score, factor
// descriptions included. Callers supply the clock through Input.Now.
package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

var (
	baseDiscount = decimal.NewFromInt(2)
	minDiscount  = decimal.NewFromInt(1)
	maxDiscount  = decimal.NewFromInt(8)

	lowCeiling    = decimal.NewFromInt(3)
	mediumCeiling = decimal.NewFromInt(5)

	smallAmount = decimal.NewFromInt(1000)
	largeAmount = decimal.NewFromInt(10000)

	hundred = decimal.NewFromInt(100)
)

// History is what the store knows about a payer.
type History struct {
	TotalInvoices  int `json:"totalInvoices"`
	TotalPayments  int `json:"totalPayments"`
	OnTimePayments int `json:"onTimePayments"`
	Disputes       int `json:"disputes"`
}

// HasHistory is false until the payer has settled at least one invoice.
// Open invoices alone say nothing about payment behaviour.
func (h History) HasHistory() bool {
	return h.TotalPayments > 0 && h.TotalInvoices > 0
}

// OnTimeRatio is on-time payments over total invoices, 0 without history.
func (h History) OnTimeRatio() decimal.Decimal {
	if !h.HasHistory() {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(h.OnTimePayments)).Div(decimal.NewFromInt(int64(h.TotalInvoices)))
}

// DataPoints feeds the confidence step function.
func (h History) DataPoints() int {
	return h.TotalInvoices + h.TotalPayments + h.Disputes
}

type Input struct {
	// Amount in display units, not base units.
	Amount  decimal.Decimal
	DueDate time.Time
	Now     time.Time
	History History
}

type Factor struct {
	Name        string          `json:"name"`
	Value       string          `json:"value"`
	Adjustment  decimal.Decimal `json:"adjustment"`
	Description string          `json:"description"`
}

type Score struct {
	Level      Level
	Discount   decimal.Decimal
	Confidence int
	DaysToDue  int64
	Factors    []Factor
}

func Evaluate(in Input) Score {
	h := in.History
	factors := make([]Factor, 0, 5)
	discount := baseDiscount

	factors = append(factors, Factor{
		Name:        "Base discount",
		Value:       "2%",
		Adjustment:  baseDiscount,
		Description: "Starting base discount rate",
	})

	days := DaysUntil(in.Now, in.DueDate)
	dueFactor := dueDateFactor(days)
	discount = discount.Add(dueFactor.Adjustment)
	factors = append(factors, dueFactor)

	onTime := onTimeFactor(h)
	discount = discount.Add(onTime.Adjustment)
	factors = append(factors, onTime)

	disputes := disputeFactor(h.Disputes)
	discount = discount.Add(disputes.Adjustment)
	factors = append(factors, disputes)

	amount := amountFactor(in.Amount)
	discount = discount.Add(amount.Adjustment)
	factors = append(factors, amount)

	discount = clamp(discount).Round(2)

	return Score{
		Level:      LevelFor(discount),
		Discount:   discount,
		Confidence: Confidence(h.DataPoints()),
		DaysToDue:  days,
		Factors:    factors,
	}
}

// DaysUntil rounds partial days up, so 9 days and 1 hour counts as 10.
func DaysUntil(now, due time.Time) int64 {
	return int64(math.Ceil(due.Sub(now).Hours() / 24))
}

func LevelFor(discount decimal.Decimal) Level {
	switch {
	case discount.LessThan(lowCeiling):
		return LevelLow
	case discount.LessThanOrEqual(mediumCeiling):
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Confidence never reaches 100.
func Confidence(dataPoints int) int {
	switch {
	case dataPoints <= 0:
		return 30
	case dataPoints < 5:
		return 50
	case dataPoints < 15:
		return 70
	case dataPoints < 30:
		return 85
	default:
		return 95
	}
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(minDiscount) {
		return minDiscount
	}
	if d.GreaterThan(maxDiscount) {
		return maxDiscount
	}
	return d
}

func dueDateFactor(days int64) Factor {
	f := Factor{Name: "Due date proximity", Value: fmt.Sprintf("%d days", days)}
	switch {
	case days < 7:
		f.Adjustment = decimal.NewFromInt(2)
		f.Description = fmt.Sprintf("Due in %d days (< 7) -- high urgency increases discount", days)
	case days <= 30:
		f.Adjustment = decimal.NewFromInt(1)
		f.Description = fmt.Sprintf("Due in %d days (7-30) -- moderate urgency", days)
	case days <= 60:
		f.Adjustment = decimal.Zero
		f.Description = fmt.Sprintf("Due in %d days (31-60) -- neutral timeframe", days)
	default:
		f.Adjustment = decimal.NewFromFloat(-0.5)
		f.Description = fmt.Sprintf("Due in %d days (> 60) -- long timeframe reduces discount", days)
	}
	return f
}

func onTimeFactor(h History) Factor {
	f := Factor{Name: "Payer on-time ratio"}
	if !h.HasHistory() {
		f.Value = "n/a"
		f.Adjustment = decimal.Zero
		f.Description = "No payment history for payer -- neutral"
		return f
	}
	ratio := h.OnTimeRatio()
	percent := ratio.Mul(hundred).Round(0)
	f.Value = percent.String() + "%"
	switch {
	case ratio.GreaterThan(decimal.NewFromFloat(0.9)):
		f.Adjustment = decimal.NewFromFloat(-0.5)
		f.Description = fmt.Sprintf("Payer on-time ratio %s%% (> 90%%) -- excellent track record reduces discount", percent)
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.7)):
		f.Adjustment = decimal.Zero
		f.Description = fmt.Sprintf("Payer on-time ratio %s%% (70-90%%) -- acceptable track record", percent)
	default:
		f.Adjustment = decimal.NewFromFloat(1.5)
		f.Description = fmt.Sprintf("Payer on-time ratio %s%% (< 70%%) -- poor track record increases discount", percent)
	}
	return f
}

func disputeFactor(count int) Factor {
	f := Factor{Name: "Dispute history", Value: fmt.Sprintf("%d disputes", count)}
	switch {
	case count <= 0:
		f.Adjustment = decimal.NewFromFloat(-0.5)
		f.Description = "No disputes -- clean history reduces discount"
	case count <= 2:
		f.Adjustment = decimal.NewFromFloat(0.5)
		f.Description = fmt.Sprintf("%d dispute(s) -- minor concern", count)
	default:
		f.Adjustment = decimal.NewFromInt(2)
		f.Description = fmt.Sprintf("%d disputes -- significant concern increases discount", count)
	}
	return f
}

func amountFactor(amount decimal.Decimal) Factor {
	f := Factor{Name: "Invoice amount", Value: amount.String()}
	switch {
	case amount.LessThan(smallAmount):
		f.Adjustment = decimal.NewFromFloat(-0.3)
		f.Description = fmt.Sprintf("Amount %s (< 1,000) -- small invoice reduces discount", amount)
	case amount.LessThanOrEqual(largeAmount):
		f.Adjustment = decimal.Zero
		f.Description = fmt.Sprintf("Amount %s (1,000-10,000) -- standard size", amount)
	default:
		f.Adjustment = decimal.NewFromFloat(0.5)
		f.Description = fmt.Sprintf("Amount %s (> 10,000) -- large invoice increases discount", amount)
	}
	return f
}

// Explain renders the one-paragraph summary shown next to a score.
func Explain(payer string, s Score, h History) string {
	onTime := "n/a"
	if h.HasHistory() {
		onTime = h.OnTimeRatio().Mul(hundred).Round(0).String() + "%"
	}
	return strings.Join([]string{
		fmt.Sprintf("Risk assessment for payer %s:", payer),
		fmt.Sprintf("Suggested discount: %s%% (%s risk).", s.Discount.StringFixed(2), s.Level),
		fmt.Sprintf("Based on %d historical invoice(s), %d payment(s), and %d dispute(s).", h.TotalInvoices, h.TotalPayments, h.Disputes),
		fmt.Sprintf("On-time payment ratio: %s.", onTime),
		fmt.Sprintf("Days until due: %d.", s.DaysToDue),
		fmt.Sprintf("Confidence: %d%% (%d data points).", s.Confidence, h.DataPoints()),
	}, " ")
}
