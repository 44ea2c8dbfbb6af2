// Package impexp converts the ledger to and from external files: the JSON
// backup, which round-trips, and the lossy tabular export meant for
// spreadsheets.
package impexp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"keuangan/internal/core"
)

const (
	backupIndent = "  "

	// BackupContentType is the media type of a backup file.
	BackupContentType = "application/json"
	// TabularContentType is the media type of a tabular export.
	TabularContentType = "text/csv; charset=utf-8"
)

// requiredFields are checked, in order, on every imported record.
var requiredFields = [...]string{"id", "date", "description", "amount", "type"}

// ImportOptions tunes how strictly a backup is checked.
type ImportOptions struct {
	// Strict also applies the entry validation rules to every record and
	// requires a known transaction type.
	Strict bool
}

// ExportBackup serializes the transactions as an indented JSON array.
func ExportBackup(txs []core.Transaction) ([]byte, error) {
	if txs == nil {
		txs = []core.Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", backupIndent)
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// ImportBackup parses a backup payload. Every record must carry a truthy id,
// date, description, amount and type; records are otherwise returned as they
// are. Nothing is applied to any ledger.
func ImportBackup(data []byte, opts ImportOptions) ([]core.Transaction, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.NewImportError(core.ErrMalformedPayload, -1, "", err)
	}
	if raw == nil {
		// JSON null
		return nil, core.NewImportError(core.ErrMalformedPayload, -1, "", nil)
	}

	txs := make([]core.Transaction, 0, len(raw))
	for i, elem := range raw {
		tx, err := decodeRecord(i, elem)
		if err != nil {
			return nil, err
		}
		if opts.Strict {
			if err := checkRecord(i, tx); err != nil {
				return nil, err
			}
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ReadBackup reads a whole user-selected file.
func ReadBackup(name string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, &core.FileReadError{Name: name, Err: err}
	}
	return buf.Bytes(), nil
}

// BackupFilename names a backup taken at now.
func BackupFilename(now time.Time) string {
	return "backup-keuangan-" + now.UTC().Format(core.DateLayout) + ".json"
}

// ExportFilename names a tabular export taken at now.
func ExportFilename(now time.Time) string {
	return "export-keuangan-" + now.UTC().Format(core.DateLayout) + ".csv"
}

type record struct {
	ID          json.Number     `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Type        core.Type       `json:"type"`
	CreatedAt   json.RawMessage `json:"createdAt"`
}

func decodeRecord(i int, elem json.RawMessage) (core.Transaction, error) {
	var fields map[string]any
	if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
		return core.Transaction{}, core.NewImportError(core.ErrMalformedPayload, i, "", err)
	}
	for _, name := range requiredFields {
		if !truthy(fields[name]) {
			return core.Transaction{}, core.NewImportError(core.ErrIncompleteRecord, i, name, nil)
		}
	}

	var rec record
	if err := json.Unmarshal(elem, &rec); err != nil {
		return core.Transaction{}, core.NewImportError(core.ErrMalformedPayload, i, "", err)
	}
	id, err := rec.ID.Int64()
	if err != nil {
		return core.Transaction{}, core.NewImportError(core.ErrMalformedPayload, i, "id", err)
	}
	return core.Transaction{
		ID:          id,
		Date:        rec.Date,
		Description: rec.Description,
		Amount:      rec.Amount,
		Type:        rec.Type,
		CreatedAt:   parseCreatedAt(rec.CreatedAt),
	}, nil
}

// parseCreatedAt accepts an RFC 3339 string; anything else becomes the zero time.
func parseCreatedAt(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func checkRecord(i int, tx core.Transaction) error {
	_, err := core.Validate(core.Candidate{
		Date:        tx.Date,
		Description: tx.Description,
		Amount:      formatAmount(tx.Amount),
		Type:        tx.Type,
	})
	if err != nil {
		field := ""
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			field = ve.Field
		}
		return core.NewImportError(core.ErrInvalidRecord, i, field, err)
	}
	if _, err := time.Parse(core.DateLayout, tx.Date); err != nil {
		return core.NewImportError(core.ErrInvalidRecord, i, "date", err)
	}
	if tx.Type != core.Income && tx.Type != core.Expense {
		return core.NewImportError(core.ErrInvalidRecord, i, "type", fmt.Errorf("unknown type %q", tx.Type))
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
