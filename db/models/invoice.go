package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Invoice : mirrored invoice NFT
type Invoice struct {
	ID                   int64           `json:"id" bun:",pk,autoincrement"`
	TokenID              *int64          `json:"token_id" bun:",unique,nullzero"`
	InvoiceHash          string          `json:"invoice_hash" bun:",nullzero"`
	Amount               decimal.Decimal `json:"amount" bun:"type:numeric(78,0),notnull"`
	AmountDisplay        string          `json:"amount_display" bun:",nullzero"`
	TokenAddress         string          `json:"token_address" bun:",notnull"`
	TokenSymbol          string          `json:"token_symbol" bun:",nullzero"`
	SellerAddress        string          `json:"seller_address" bun:",notnull"`
	PayerAddress         string          `json:"payer_address" bun:",notnull"`
	CurrentOwnerAddress  string          `json:"current_owner_address" bun:",notnull"`
	Status               string          `json:"status" bun:",notnull,default:'draft'"`
	DueDate              time.Time       `json:"due_date" bun:",notnull"`
	Title                string          `json:"title,omitempty" bun:",nullzero"`
	Description          string          `json:"description,omitempty" bun:",nullzero"`
	PdfIpfsHash          string          `json:"pdf_ipfs_hash,omitempty" bun:",nullzero"`
	PdfUrl               string          `json:"pdf_url,omitempty" bun:",nullzero"`
	IsMilestone          bool            `json:"is_milestone" bun:",notnull,default:false"`
	MilestoneDescription string          `json:"milestone_description,omitempty" bun:",nullzero"`
	MintTxHash           string          `json:"mint_tx_hash,omitempty" bun:",nullzero"`
	ChainID              int64           `json:"chain_id" bun:",notnull,default:97"`
	CreatedAt            time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt            bun.NullTime    `json:"updated_at"`

	Listings []*Listing `json:"listings,omitempty" bun:"rel:has-many,join:id=invoice_id"`
	Payments []*Payment `json:"payments,omitempty" bun:"rel:has-many,join:id=invoice_id"`
	Disputes []*Dispute `json:"disputes,omitempty" bun:"rel:has-many,join:id=invoice_id"`
}

func (i *Invoice) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery, *bun.InsertQuery:
		i.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Invoice)(nil)
