package models

import "time"

type Notification struct {
	ID               int64     `json:"id" bun:",pk,autoincrement"`
	RecipientAddress string    `json:"recipient_address" bun:",notnull"`
	Type             string    `json:"type" bun:",notnull"`
	Title            string    `json:"title" bun:",notnull"`
	Message          string    `json:"message" bun:",notnull"`
	InvoiceID        *int64    `json:"invoice_id,omitempty" bun:",nullzero"`
	IsRead           bool      `json:"is_read" bun:",notnull,default:false"`
	CreatedAt        time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
