package migrations

import (
	"context"

	"github.com/lawoffice/billinghub/db/models"
	"github.com/uptrace/bun"
)

/* Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if _, err := db.NewCreateTable().Model((*models.Client)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Matter)(nil)).IfNotExists().
			ForeignKey(`("client_id") REFERENCES "clients" ("id")`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.BillingEntry)(nil)).IfNotExists().
			ForeignKey(`("matter_id") REFERENCES "matters" ("id")`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Invoice)(nil)).IfNotExists().
			ForeignKey(`("client_id") REFERENCES "clients" ("id")`).
			ForeignKey(`("matter_id") REFERENCES "matters" ("id")`).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.InvoiceBillingItem)(nil)).IfNotExists().
			ForeignKey(`("invoice_id") REFERENCES "client_invoices" ("id")`).
			ForeignKey(`("billing_id") REFERENCES "billing_entries" ("id")`).
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, model := range []interface{}{
			(*models.InvoiceBillingItem)(nil),
			(*models.Invoice)(nil),
			(*models.BillingEntry)(nil),
			(*models.Matter)(nil),
			(*models.Client)(nil),
		} {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
