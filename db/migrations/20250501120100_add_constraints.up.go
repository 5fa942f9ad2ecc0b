package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level check constraints can not be enabled!\n")
			return nil
		}
		sql := `
			-- a billing entry never ends before it starts (empty entries are allowed)
				ALTER TABLE billing_entries
				ADD CONSTRAINT check_billing_interval
				CHECK (billing_stop >= billing_start);

			-- lifecycle states
				ALTER TABLE billing_entries
				ADD CONSTRAINT check_billing_status
				CHECK (status IN ('unbilled', 'draft', 'committed'));

				ALTER TABLE client_invoices
				ADD CONSTRAINT check_invoice_status
				CHECK (status IN ('draft', 'submitted'));

				ALTER TABLE invoice_billing_items
				ADD CONSTRAINT check_item_status
				CHECK (status IN ('draft', 'committed'));
		`
		if _, err := db.ExecContext(ctx, sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
