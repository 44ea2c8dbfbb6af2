package sheets

import "context"

// Ports for outbound adapters.
type (
	// RowWriter replaces the contents of a tabular target with rows. The first
	// row is the header.
	RowWriter interface {
		WriteRows(ctx context.Context, rows [][]string) (ref string, err error)
	}
)
