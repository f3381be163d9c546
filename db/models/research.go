package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ResearchDonation : inflow to the research pool
type ResearchDonation struct {
	ID           int64           `json:"id" bun:",pk,autoincrement"`
	DonorAddress string          `json:"donor_address" bun:",notnull"`
	Amount       decimal.Decimal `json:"amount" bun:"type:numeric(78,0),notnull"`
	TxHash       string          `json:"tx_hash" bun:",unique,notnull"`
	Source       string          `json:"source" bun:",notnull,default:'direct'"`
	CreatedAt    time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}

// ResearchGrant : outflow from the research pool
type ResearchGrant struct {
	ID               int64           `json:"id" bun:",pk,autoincrement"`
	RecipientAddress string          `json:"recipient_address" bun:",notnull"`
	Amount           decimal.Decimal `json:"amount" bun:"type:numeric(78,0),notnull"`
	Purpose          string          `json:"purpose" bun:",notnull"`
	IsExecuted       bool            `json:"is_executed" bun:",notnull,default:false"`
	TxHash           string          `json:"tx_hash,omitempty" bun:",nullzero"`
	ExecutedAt       bun.NullTime    `json:"executed_at"`
	CreatedAt        time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
