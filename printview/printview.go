// Package printview renders standalone HTML documents for printing:
// invoices, receipts and tenant statements. The output is a complete page
// with inline styles; how it reaches a printer (new window, PDF pipeline)
// is the caller's concern.
package printview

import (
	"embed"
	"html/template"
	"io"

	"github.com/shopspring/decimal"

	"github.com/propbooks/propbooks-go/backend"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Organization heads every printed document.
type Organization struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

type Renderer struct {
	org Organization
	tpl *template.Template
}

func New(org Organization) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}
	tpl, err := template.New("printview").Funcs(funcs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{org: org, tpl: tpl}, nil
}

// InvoiceDocument is everything the invoice print view shows.
type InvoiceDocument struct {
	Invoice backend.Invoice
	Tenant  backend.Tenant
	Unit    backend.Unit
}

type invoiceView struct {
	Org Organization
	InvoiceDocument
}

func (r *Renderer) RenderInvoice(w io.Writer, doc InvoiceDocument) error {
	return r.tpl.ExecuteTemplate(w, "invoice.html.tmpl", invoiceView{Org: r.org, InvoiceDocument: doc})
}

// AllocatedLine is one invoice a receipt paid into.
type AllocatedLine struct {
	InvoiceNumber string
	Amount        decimal.Decimal
}

type ReceiptDocument struct {
	Receipt   backend.Receipt
	Tenant    backend.Tenant
	Allocated []AllocatedLine
}

type receiptView struct {
	Org Organization
	ReceiptDocument
	Unallocated decimal.Decimal
}

func (r *Renderer) RenderReceipt(w io.Writer, doc ReceiptDocument) error {
	allocated := decimal.Zero
	for _, line := range doc.Allocated {
		allocated = allocated.Add(line.Amount)
	}
	view := receiptView{
		Org:             r.org,
		ReceiptDocument: doc,
		Unallocated:     doc.Receipt.Amount.Sub(allocated),
	}
	return r.tpl.ExecuteTemplate(w, "receipt.html.tmpl", view)
}

type statementView struct {
	Org       Organization
	Statement backend.TenantStatement
}

func (r *Renderer) RenderStatement(w io.Writer, st backend.TenantStatement) error {
	return r.tpl.ExecuteTemplate(w, "statement.html.tmpl", statementView{Org: r.org, Statement: st})
}
