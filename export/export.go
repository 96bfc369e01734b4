// Package export renders screen tables as CSV or XLSX. Builders flatten the
// API records into a Table; the writers take any io.Writer, so delivery
// (HTTP response, file, buffer) stays with the caller.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/propbooks/propbooks-go/backend"
)

// Table is one exportable grid. Cells hold the source values; each writer
// formats them for its target (money keeps cents in CSV, becomes a
// number-formatted cell in XLSX).
type Table struct {
	Name    string // sheet name in XLSX, informational otherwise
	Headers []string
	Rows    [][]any
}

// WriteCSV writes the table as comma-separated text with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
	}
	rec := make([]string, 0, len(t.Headers))
	for _, row := range t.Rows {
		rec = rec[:0]
		for _, v := range row {
			rec = append(rec, CellText(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the table as a single-sheet workbook: bold header row,
// money cells as numbers with a #,##0.00 format.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if t.Name != "" {
		if err := f.SetSheetName(sheet, t.Name); err != nil {
			return err
		}
		sheet = t.Name
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}

	for ci, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(ci+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if n := len(t.Headers); n > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(n, 1)
		if err := f.SetCellStyle(sheet, first, last, headerStyle); err != nil {
			return err
		}
	}

	for ri, row := range t.Rows {
		for ci, v := range row {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return err
			}
			if d, ok := v.(decimal.Decimal); ok {
				if err := f.SetCellValue(sheet, cell, d.InexactFloat64()); err != nil {
					return err
				}
				if err := f.SetCellStyle(sheet, cell, cell, moneyStyle); err != nil {
					return err
				}
				continue
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// CellText renders one cell value as display text, the same way WriteCSV
// does: money with two decimals, dates as ISO, booleans as yes/no.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.StringFixed(2)
	case backend.Date:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// cellValue maps cache-side types onto what the workbook should hold. Dates
// go in as ISO text, not Excel serials.
func cellValue(v any) any {
	switch x := v.(type) {
	case backend.Date:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case bool:
		if x {
			return "yes"
		}
		return "no"
	default:
		return v
	}
}
