package risk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary.TotalAssessed)
	assert.True(t, summary.AverageDiscount.IsZero())
	assert.Empty(t, summary.TopRiskyPayers)
}

func TestSummarize(t *testing.T) {
	scores := []PayerScore{
		{Address: "0xaa", Score: Score{Level: LevelLow, Discount: dec("2.5"), Confidence: 85}, History: History{TotalInvoices: 4, TotalPayments: 4, OnTimePayments: 4}},
		{Address: "0xbb", Score: Score{Level: LevelMedium, Discount: dec("3.2"), Confidence: 30}},
		{Address: "0xcc", Score: Score{Level: LevelHigh, Discount: dec("6"), Confidence: 70}, History: History{TotalInvoices: 4, TotalPayments: 2, OnTimePayments: 1, Disputes: 3}},
	}
	summary := Summarize(scores)
	assert.Equal(t, 3, summary.TotalAssessed)
	assert.Equal(t, Distribution{Low: 1, Medium: 1, High: 1}, summary.Distribution)
	// (2.5 + 3.2 + 6) / 3 = 3.9
	assert.True(t, dec("3.9").Equal(summary.AverageDiscount), summary.AverageDiscount.String())
	// (85 + 30 + 70) / 3 = 61.666..
	assert.True(t, dec("61.7").Equal(summary.AverageConfidence), summary.AverageConfidence.String())

	assert.Len(t, summary.TopRiskyPayers, 3)
	assert.Equal(t, "0xcc", summary.TopRiskyPayers[0].Address)
	assert.Equal(t, 3, summary.TopRiskyPayers[0].DisputeCount)
	assert.True(t, dec("0.25").Equal(summary.TopRiskyPayers[0].OnTimeRatio))
	assert.Equal(t, "0xbb", summary.TopRiskyPayers[1].Address)
	assert.Equal(t, "0xaa", summary.TopRiskyPayers[2].Address)
}

func TestSummarizeKeepsTopFive(t *testing.T) {
	scores := []PayerScore{}
	for i := 0; i < 8; i++ {
		scores = append(scores, PayerScore{
			Address: fmt.Sprintf("0x%02d", i),
			Score:   Score{Level: LevelMedium, Discount: dec("4"), Confidence: 50},
		})
	}
	summary := Summarize(scores)
	assert.Len(t, summary.TopRiskyPayers, TopPayersLimit)
	assert.Equal(t, "0x00", summary.TopRiskyPayers[0].Address)
	assert.Equal(t, "0x04", summary.TopRiskyPayers[4].Address)
}
