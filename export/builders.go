package export

import (
	"github.com/shopspring/decimal"

	"github.com/propbooks/propbooks-go/backend"
)

// The builders mirror the list screens: same columns, same order.

func InvoiceTable(items []backend.Invoice) Table {
	t := Table{
		Name:    "Invoices",
		Headers: []string{"Number", "Tenant", "Issue Date", "Due Date", "Amount", "Paid", "Balance", "Status"},
	}
	for _, inv := range items {
		t.Rows = append(t.Rows, []any{
			inv.Number, inv.TenantName, inv.IssueDate, inv.DueDate,
			inv.Amount, inv.AmountPaid, inv.Balance, string(inv.Status),
		})
	}
	return t
}

func ReceiptTable(items []backend.Receipt) Table {
	t := Table{
		Name:    "Receipts",
		Headers: []string{"Date", "Tenant", "Amount", "Method", "Reference"},
	}
	for _, r := range items {
		t.Rows = append(t.Rows, []any{r.Date, r.TenantName, r.Amount, string(r.Method), r.Reference})
	}
	return t
}

func TenantTable(items []backend.Tenant) Table {
	t := Table{
		Name:    "Tenants",
		Headers: []string{"First Name", "Last Name", "Email", "Phone", "Active"},
	}
	for _, tn := range items {
		t.Rows = append(t.Rows, []any{tn.FirstName, tn.LastName, tn.Email, tn.Phone, tn.Active})
	}
	return t
}

// AgedAnalysisTable appends a computed totals row; the per-row figures stay
// exactly as the server reported them.
func AgedAnalysisTable(r backend.AgedAnalysisReport) Table {
	t := Table{
		Name:    "Aged Receivables",
		Headers: []string{"Tenant", "Current", "1-30 Days", "31-60 Days", "61-90 Days", "Over 90", "Total"},
	}
	var current, d30, d60, d90, older, total decimal.Decimal
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []any{
			row.TenantName, row.Current, row.Days30, row.Days60, row.Days90, row.Older, row.Total,
		})
		current = current.Add(row.Current)
		d30 = d30.Add(row.Days30)
		d60 = d60.Add(row.Days60)
		d90 = d90.Add(row.Days90)
		older = older.Add(row.Older)
		total = total.Add(row.Total)
	}
	if len(r.Rows) > 0 {
		t.Rows = append(t.Rows, []any{"Total", current, d30, d60, d90, older, total})
	}
	return t
}

func RentRollTable(r backend.RentRollReport) Table {
	t := Table{
		Name:    "Rent Roll",
		Headers: []string{"Unit", "Tenant", "Rent", "Frequency", "Status"},
	}
	for _, row := range r.Rows {
		t.Rows = append(t.Rows, []any{
			row.UnitName, row.TenantName, row.RentAmount, string(row.Frequency), string(row.Status),
		})
	}
	return t
}
