// Package exporter writes accounts that carry a bitwarden field to a CSV
// file that Bitwarden can import.
package exporter

import (
	"context"
	"encoding/csv"
	"iter"
	"os"
	"sort"

	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/logging"
	"github.com/systmms/acctexport/pkg/account"
)

const (
	// ExportField is the composite field that marks an account for export.
	ExportField = "bitwarden"

	// DefaultOutput is the file written in the working directory.
	DefaultOutput = "bitwarden.csv"

	// OutputMode is applied to the output file once it is complete.
	OutputMode os.FileMode = 0o600
)

// Bitwarden's import columns, in file order.
var columns = []string{
	"folder",
	"favorite",
	"type",
	"name",
	"notes",
	"fields",
	"login_uri",
	"login_username",
	"login_password",
	"login_totp",
}

var recognized = func() map[string]int {
	m := make(map[string]int, len(columns))
	for i, c := range columns {
		m[c] = i
	}
	return m
}()

// Columns returns the output columns in order.
func Columns() []string {
	return append([]string(nil), columns...)
}

// Stats counts what the last Export did.
type Stats struct {
	Scanned  int // accounts read from the sequence
	Written  int // rows written
	Skipped  int // accounts without the export field
	Warnings int // unrecognized export keys
}

// Exporter turns accounts into CSV rows.
type Exporter struct {
	resolve account.ResolveFunc
	logger  *logging.Logger
	stats   Stats
}

// New creates an exporter that expands values with resolve.
func New(resolve account.ResolveFunc, logger *logging.Logger) *Exporter {
	return &Exporter{resolve: resolve, logger: logger}
}

// Stats returns the counters of the last Export.
func (e *Exporter) Stats() Stats {
	return e.stats
}

// Export writes one row per account that has the export field and returns
// the number of rows written. The first failure aborts the run; the file
// may then be left partially written.
func (e *Exporter) Export(ctx context.Context, accounts iter.Seq2[account.Account, error], outputPath string) (int, error) {
	e.stats = Stats{}

	f, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, OutputMode)
	if err != nil {
		return 0, &dserrors.IOError{Op: "open", Path: outputPath, Err: err}
	}
	// O_TRUNC keeps the mode of an existing file.
	if err := f.Chmod(OutputMode); err != nil {
		_ = f.Close()
		return 0, &dserrors.IOError{Op: "chmod", Path: outputPath, Err: err}
	}
	w := csv.NewWriter(f)

	count, err := e.writeRows(ctx, w, accounts, outputPath)
	w.Flush()
	if ferr := w.Error(); ferr != nil && err == nil {
		err = &dserrors.IOError{Op: "write", Path: outputPath, Err: ferr}
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = &dserrors.IOError{Op: "close", Path: outputPath, Err: cerr}
	}
	if err != nil {
		return count, err
	}

	if err := os.Chmod(outputPath, OutputMode); err != nil {
		return count, &dserrors.IOError{Op: "chmod", Path: outputPath, Err: err}
	}
	return count, nil
}

func (e *Exporter) writeRows(ctx context.Context, w *csv.Writer, accounts iter.Seq2[account.Account, error], path string) (int, error) {
	if err := w.Write(columns); err != nil {
		return 0, &dserrors.IOError{Op: "write", Path: path, Err: err}
	}

	for acct, err := range accounts {
		if err != nil {
			return e.stats.Written, err
		}
		if err := ctx.Err(); err != nil {
			return e.stats.Written, err
		}
		e.stats.Scanned++

		row, ok, err := e.row(ctx, acct)
		if err != nil {
			return e.stats.Written, err
		}
		if !ok {
			e.stats.Skipped++
			continue
		}
		if err := w.Write(row); err != nil {
			return e.stats.Written, &dserrors.IOError{Op: "write", Path: path, Err: err}
		}
		e.stats.Written++
		if desc, ok := acct.Scalar("desc"); ok {
			e.logger.Debug("Exported %s (%s)", acct.Name(), desc)
		} else {
			e.logger.Debug("Exported %s", acct.Name())
		}
	}
	return e.stats.Written, nil
}

// row builds the CSV record of acct. ok is false when acct does not carry
// the export field.
func (e *Exporter) row(ctx context.Context, acct account.Account) ([]string, bool, error) {
	spec, ok := acct.Composite(ExportField)
	if !ok {
		return nil, false, nil
	}

	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, known := recognized[k]; !known {
			e.stats.Warnings++
			e.logger.Warn("%s: unknown field %q in %s, ignored", acct.Name(), k, ExportField)
		}
	}

	row := make([]string, len(columns))
	for _, k := range keys {
		value, err := e.resolve(ctx, spec[k], acct)
		if err != nil {
			return nil, false, &account.ResolutionError{
				Account:  acct.Name(),
				Field:    ExportField + "." + k,
				Template: spec[k],
				Err:      err,
			}
		}
		if i, known := recognized[k]; known {
			row[i] = value
		}
	}
	return row, true, nil
}
