package risk

import (
	"sort"

	"github.com/shopspring/decimal"
)

const TopPayersLimit = 5

// PayerScore is one payer's assessment, computed from a representative invoice.
type PayerScore struct {
	Address string
	Score   Score
	History History
}

type RiskyPayer struct {
	Address      string          `json:"address"`
	Discount     decimal.Decimal `json:"discount"`
	DisputeCount int             `json:"dispute_count"`
	OnTimeRatio  decimal.Decimal `json:"on_time_ratio"`
}

type Distribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type Summary struct {
	TotalAssessed     int
	Distribution      Distribution
	AverageDiscount   decimal.Decimal
	AverageConfidence decimal.Decimal
	TopRiskyPayers    []RiskyPayer
}

// Summarize reduces per-payer scores into tier counts, means and the
// riskiest payers. Ties on discount are broken by address.
func Summarize(scores []PayerScore) Summary {
	summary := Summary{
		AverageDiscount:   decimal.Zero,
		AverageConfidence: decimal.Zero,
		TopRiskyPayers:    []RiskyPayer{},
	}
	if len(scores) == 0 {
		return summary
	}

	totalDiscount := decimal.Zero
	totalConfidence := decimal.Zero
	risky := make([]RiskyPayer, 0, len(scores))
	for _, ps := range scores {
		switch ps.Score.Level {
		case LevelLow:
			summary.Distribution.Low++
		case LevelMedium:
			summary.Distribution.Medium++
		default:
			summary.Distribution.High++
		}
		totalDiscount = totalDiscount.Add(ps.Score.Discount)
		totalConfidence = totalConfidence.Add(decimal.NewFromInt(int64(ps.Score.Confidence)))
		risky = append(risky, RiskyPayer{
			Address:      ps.Address,
			Discount:     ps.Score.Discount,
			DisputeCount: ps.History.Disputes,
			OnTimeRatio:  ps.History.OnTimeRatio().Round(4),
		})
	}

	n := decimal.NewFromInt(int64(len(scores)))
	summary.TotalAssessed = len(scores)
	summary.AverageDiscount = totalDiscount.Div(n).Round(2)
	summary.AverageConfidence = totalConfidence.Div(n).Round(1)

	sort.SliceStable(risky, func(i, j int) bool {
		if !risky[i].Discount.Equal(risky[j].Discount) {
			return risky[i].Discount.GreaterThan(risky[j].Discount)
		}
		return risky[i].Address < risky[j].Address
	})
	if len(risky) > TopPayersLimit {
		risky = risky[:TopPayersLimit]
	}
	summary.TopRiskyPayers = risky
	return summary
}
