package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Listing : marketplace offer for an invoice NFT
type Listing struct {
	ID              int64           `json:"id" bun:",pk,autoincrement"`
	InvoiceID       int64           `json:"invoice_id" bun:",notnull"`
	Invoice         *Invoice        `json:"invoice,omitempty" bun:"rel:belongs-to,join:invoice_id=id"`
	TokenID         int64           `json:"token_id" bun:",notnull"`
	SellerAddress   string          `json:"seller_address" bun:",notnull"`
	SalePrice       decimal.Decimal `json:"sale_price" bun:"type:numeric(78,0),notnull"`
	OriginalAmount  decimal.Decimal `json:"original_amount" bun:"type:numeric(78,0),notnull"`
	DiscountPercent string          `json:"discount_percent" bun:",notnull,default:'0'"`
	PaymentToken    string          `json:"payment_token" bun:",notnull"`
	Expiry          time.Time       `json:"expiry" bun:",notnull"`
	IsActive        bool            `json:"is_active" bun:",notnull,default:true"`
	BuyerAddress    string          `json:"buyer_address,omitempty" bun:",nullzero"`
	ListTxHash      string          `json:"list_tx_hash,omitempty" bun:",nullzero"`
	BuyTxHash       string          `json:"buy_tx_hash,omitempty" bun:",nullzero"`
	CreatedAt       time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt       bun.NullTime    `json:"updated_at"`
}

func (l *Listing) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		l.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Listing)(nil)
