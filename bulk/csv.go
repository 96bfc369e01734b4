// Package bulk implements the CSV bulk-invitation flow: parse rows on the
// client, send one invitation per row, and report a per-row summary. Batches
// are best effort end to end; one bad row or one failed send never aborts
// the rest.
package bulk

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one parsed invitation line. Columns are positional:
// email, first_name, last_name, role. Only email is required.
type Row struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

// ParseStats counts what the parser kept and what it dropped. Malformed
// rows are filtered silently; Skipped is the only trace they leave.
type ParseStats struct {
	Rows    int
	Skipped int
}

// ParseInvitations reads invitation rows from CSV. A leading header row is
// skipped; quoted fields are unwrapped; rows without a plausible email are
// dropped and counted. The error is non-nil only when reading r itself
// fails.
func ParseInvitations(r io.Reader) ([]Row, ParseStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		rows  []Row
		stats ParseStats
		first = true
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				stats.Skipped++
				continue
			}
			return rows, stats, err
		}
		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		row, ok := rowFromRecord(rec)
		if !ok {
			stats.Skipped++
			continue
		}
		rows = append(rows, row)
		stats.Rows++
	}
	return rows, stats, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "email")
}

func rowFromRecord(rec []string) (Row, bool) {
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	row := Row{Email: cell(0), FirstName: cell(1), LastName: cell(2), Role: cell(3)}
	if row.Email == "" || !strings.Contains(row.Email, "@") {
		return Row{}, false
	}
	return row, true
}
