package printview

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/propbooks/propbooks-go/backend"
)

var testOrg = Organization{
	Name:    "Harbor Property Management",
	Address: "12 Quay Street, Cape Town",
	Phone:   "+27 21 555 0199",
	Email:   "accounts@harborpm.example",
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(testOrg)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRenderInvoice(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	err := r.RenderInvoice(&buf, InvoiceDocument{
		Invoice: backend.Invoice{
			Number:     "INV-0042",
			IssueDate:  backend.NewDate(2026, time.July, 1),
			DueDate:    backend.NewDate(2026, time.July, 15),
			Amount:     money("1200.50"),
			AmountPaid: money("400"),
			Balance:    money("800.50"),
			Status:     backend.InvoiceOverdue,
		},
		Tenant: backend.Tenant{FirstName: "Ana", LastName: "Mbeki", Email: "ana@x.com"},
		Unit:   backend.Unit{Name: "Unit 3B", Address: "12 Quay Street"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Harbor Property Management",
		"INV-0042",
		"2026-07-15",
		"Ana Mbeki",
		"Unit 3B",
		"1200.50",
		"800.50",
		"overdue",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "<!DOCTYPE html>") {
		t.Fatal("not a standalone document")
	}
}

func TestRenderInvoiceEscapesHTML(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	err := r.RenderInvoice(&buf, InvoiceDocument{
		Invoice: backend.Invoice{Number: "INV-1"},
		Tenant:  backend.Tenant{FirstName: "<script>alert(1)</script>", LastName: "X"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>alert") {
		t.Fatal("tenant name not escaped")
	}
}

func TestRenderReceiptAllocations(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	err := r.RenderReceipt(&buf, ReceiptDocument{
		Receipt: backend.Receipt{
			Reference: "RCT-889",
			Date:      backend.NewDate(2026, time.June, 2),
			Amount:    money("1000.00"),
			Method:    backend.MethodBankTransfer,
		},
		Tenant: backend.Tenant{FirstName: "Bob", LastName: "Okoye"},
		Allocated: []AllocatedLine{
			{InvoiceNumber: "INV-0040", Amount: money("600.00")},
			{InvoiceNumber: "INV-0041", Amount: money("250.00")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"RCT-889", "Bob Okoye", "INV-0040", "600.00", "INV-0041", "250.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q", want)
		}
	}
	// 1000 received minus 850 allocated stays on account
	if !strings.Contains(out, "On account") || !strings.Contains(out, "150.00") {
		t.Fatalf("unallocated remainder not shown:\n%s", out)
	}
}

func TestRenderReceiptFullyAllocatedHidesRemainder(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	err := r.RenderReceipt(&buf, ReceiptDocument{
		Receipt:   backend.Receipt{Reference: "RCT-1", Amount: money("500.00")},
		Tenant:    backend.Tenant{FirstName: "A", LastName: "B"},
		Allocated: []AllocatedLine{{InvoiceNumber: "INV-1", Amount: money("500.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "On account") {
		t.Fatal("remainder row shown for a fully allocated receipt")
	}
}

func TestRenderStatement(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	err := r.RenderStatement(&buf, backend.TenantStatement{
		TenantName:     "Ana Mbeki",
		From:           backend.NewDate(2026, time.July, 1),
		To:             backend.NewDate(2026, time.July, 31),
		OpeningBalance: money("0.00"),
		ClosingBalance: money("250.00"),
		Lines: []backend.StatementLine{
			{Date: backend.NewDate(2026, time.July, 1), Description: "Rent July", Charge: money("1200.00"), Balance: money("1200.00")},
			{Date: backend.NewDate(2026, time.July, 5), Description: "Payment RCT-889", Payment: money("950.00"), Balance: money("250.00")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Opening balance", "Closing balance", "Rent July", "Payment RCT-889",
		"1200.00", "950.00", "250.00", "Ana Mbeki",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q", want)
		}
	}
}
