package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment : escrow settlement, written once per tx hash
type Payment struct {
	ID               int64           `json:"id" bun:",pk,autoincrement"`
	InvoiceID        int64           `json:"invoice_id" bun:",notnull"`
	Invoice          *Invoice        `json:"-" bun:"rel:belongs-to,join:invoice_id=id"`
	TokenID          int64           `json:"token_id" bun:",notnull"`
	PayerAddress     string          `json:"payer_address" bun:",notnull"`
	RecipientAddress string          `json:"recipient_address" bun:",notnull"`
	Amount           decimal.Decimal `json:"amount" bun:"type:numeric(78,0),notnull"`
	Fee              decimal.Decimal `json:"fee" bun:"type:numeric(78,0),notnull,default:0"`
	TxHash           string          `json:"tx_hash" bun:",unique,notnull"`
	PaidAt           time.Time       `json:"paid_at" bun:",nullzero,notnull,default:current_timestamp"`
	ChainID          int64           `json:"chain_id" bun:",notnull,default:97"`
}
