package migrations

import (
	"context"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/uptrace/bun"
)

/* The init migration reflects the latest model fields when run on a fresh db.
Subsequent migrations that add or remove columns must use IfNotExists/IfExists.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Invoice)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Payment)(nil)).IfNotExists().
			ForeignKey(`("invoice_id") REFERENCES "invoices" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Listing)(nil)).IfNotExists().
			ForeignKey(`("invoice_id") REFERENCES "invoices" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Dispute)(nil)).IfNotExists().
			ForeignKey(`("invoice_id") REFERENCES "invoices" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.ResearchDonation)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.ResearchGrant)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Notification)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	}, nil)
}
