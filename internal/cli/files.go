package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"keuangan/internal/core"
	"keuangan/internal/impexp"
	"keuangan/internal/notify"
	"keuangan/internal/services"
)

func newBackupCommand(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON backup of the ledger",
		Long: `Write a JSON backup of the ledger. The file is named after the current date
unless --output is given; use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()
			return download(cmd, output, s.ledger.Backup)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		output   string
		toSheets bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as CSV or to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if !toSheets {
				return download(cmd, output, s.ledger.Export)
			}
			ref, out, err := s.ledger.ExportToSheets(cmd.Context())
			if err := reported(cmd, out, err); err != nil {
				return err
			}
			if ref != "" {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout")
	cmd.Flags().BoolVar(&toSheets, "sheets", false, "Write to the configured spreadsheet instead of a file")
	return cmd
}

// download writes a produced file to output, or to a file named by the
// download itself when output is empty.
func download(cmd *cobra.Command, output string, produce func(context.Context) (services.Download, services.Outcome, error)) error {
	dl, out, err := produce(cmd.Context())
	if errors.Is(err, services.ErrNothingToExport) {
		report(cmd.ErrOrStderr(), out.Notices)
		return nil
	}
	if err != nil {
		return reported(cmd, out, err)
	}

	if output == "-" {
		if _, err := cmd.OutOrStdout().Write(dl.Data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		report(cmd.ErrOrStderr(), out.Notices)
		return nil
	}
	if output == "" {
		output = dl.Filename
	}
	if err := os.WriteFile(output, dl.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	report(cmd.ErrOrStderr(), out.Notices)
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func newRestoreCommand(opts *rootOptions) *cobra.Command {
	var (
		yes    bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "restore FILE",
		Short: "Replace the ledger with a JSON backup",
		Long: `Replace the whole ledger with the transactions in a JSON backup. The file is
checked first and nothing changes until the restore is confirmed. Use - to
read the backup from stdin (then --yes is required).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var r io.Reader
			if name == "-" {
				if !yes {
					return errors.New("restore from stdin needs --yes")
				}
				name, r = "stdin.json", cmd.InOrStdin()
			} else {
				f, err := os.Open(name)
				if err != nil {
					ferr := &core.FileReadError{Name: name, Err: err}
					out := services.Outcome{Notices: []notify.Notification{notify.FromError(ferr, notify.MsgFileReadFailed)}}
					return reported(cmd, out, ferr)
				}
				defer f.Close()
				name, r = filepath.Base(name), f
			}

			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			pending, out, err := s.ledger.PrepareRestore(cmd.Context(), name, r, impexp.ImportOptions{Strict: strict})
			if err != nil {
				return reported(cmd, out, err)
			}
			confirm := newConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr(), yes)
			out, err = s.ledger.Restore(cmd.Context(), pending, confirm)
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
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject records with missing or invalid fields")
	return cmd
}
