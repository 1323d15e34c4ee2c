package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/models"
)

func newListCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("list").SetParent(root.flags)
	owner := fs.StringLong("user", "", "only show receipts owned by this email")

	return &ff.Command{
		Name:      "list",
		Usage:     "receipt-keeper list [FLAGS]",
		ShortHelp: "print stored receipts, newest first",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			db, err := root.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			var receipts []*models.Receipt
			if *owner != "" {
				receipts, err = db.GetReceiptsByUser(ctx, auth.NormalizeEmail(*owner))
			} else {
				receipts, err = db.ListReceipts(ctx)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(root.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tADDED\tOWNER\tSTORE\tDATE\tTOTAL\tCATEGORY")
			for _, r := range receipts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n",
					r.ID,
					time.UnixMilli(r.CreatedAt).Format(time.DateTime),
					r.UserEmail,
					r.StoreName,
					r.Date,
					r.Total.Amount.StringFixed(2),
					r.Total.Currency,
					r.Category,
				)
			}
			return tw.Flush()
		},
	}
}
