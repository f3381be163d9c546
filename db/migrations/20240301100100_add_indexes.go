package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		statements := []string{
			// at most one active listing per invoice
			`CREATE UNIQUE INDEX IF NOT EXISTS listings_active_invoice_idx ON listings (invoice_id) WHERE is_active`,
			`CREATE INDEX IF NOT EXISTS invoices_payer_address_idx ON invoices (payer_address)`,
			`CREATE INDEX IF NOT EXISTS invoices_seller_address_idx ON invoices (seller_address)`,
			`CREATE INDEX IF NOT EXISTS invoices_status_idx ON invoices (status)`,
			`CREATE INDEX IF NOT EXISTS payments_invoice_id_idx ON payments (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS disputes_invoice_id_idx ON disputes (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_address, is_read)`,
		}
		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}, nil)
}
