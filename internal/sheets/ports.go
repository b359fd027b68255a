package sheets

import "context"

// Ports for outbound spreadsheet adapters.
type (
	// ExportWriter replaces the contents of the export sheet with header and
	// rows and returns a reference to the written range.
	ExportWriter interface {
		WriteRows(ctx context.Context, header []string, rows [][]string) (rangeRef string, err error)
	}
)
