package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Dispute struct {
	ID          int64        `json:"id" bun:",pk,autoincrement"`
	InvoiceID   int64        `json:"invoice_id" bun:",notnull"`
	Invoice     *Invoice     `json:"-" bun:"rel:belongs-to,join:invoice_id=id"`
	TokenID     int64        `json:"token_id" bun:",notnull"`
	DisputedBy  string       `json:"disputed_by" bun:",notnull"`
	Reason      string       `json:"reason,omitempty" bun:",nullzero"`
	IsResolved  bool         `json:"is_resolved" bun:",notnull,default:false"`
	Resolution  string       `json:"resolution,omitempty" bun:",nullzero"`
	ResolvedAt  bun.NullTime `json:"resolved_at"`
	CreatedAt   time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
