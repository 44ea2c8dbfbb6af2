package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"keuangan/internal/core"
)

func newAddCommand(opts *rootOptions) *cobra.Command {
	var c core.Candidate
	var typ string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  keuangan add --desc "Gaji" --amount 5000000 --type income
  keuangan add --date 2024-01-20 --desc "Makan siang" --amount 45000.50 --type expense`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			c.Type = core.Type(typ)
			if t, ok := core.ParseType(typ); ok {
				c.Type = t
			}
			out, err := s.ledger.Create(cmd.Context(), c)
			if err := reported(cmd, out, err); err != nil {
				return err
			}
			tx := out.Snapshot.Transactions()[0]
			fmt.Fprintln(cmd.OutOrStdout(), tx.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.Date, "date", time.Now().Format(core.DateLayout), "Transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&c.Description, "desc", "d", "", "Description")
	cmd.Flags().StringVarP(&c.Amount, "amount", "a", "", "Positive amount")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "income or expense")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		plain  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show all transactions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s.ledger.Transactions(cmd.Context()))
			}
			v := s.ledger.View(cmd.Context())
			return writeMarkdown(cmd.OutOrStdout(), markdownTable(v.Rows), plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print raw markdown")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the transactions as JSON")
	return cmd
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show income, expense and balance totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			v := s.ledger.View(cmd.Context())
			return writeMarkdown(cmd.OutOrStdout(), markdownSummary(v.Summary, v.Count), plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print raw markdown")
	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a transaction",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			confirm := newConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), yes)
			out, err := s.ledger.Delete(cmd.Context(), id, confirm)
			if err := reported(cmd, out, err); err != nil {
				return err
			}
			if out.Declined {
				fmt.Fprintln(cmd.ErrOrStderr(), "Dibatalkan.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
