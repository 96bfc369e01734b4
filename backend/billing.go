package backend

import (
	"context"

	propbooks "github.com/propbooks/propbooks-go"
)

// InvoiceService is the /invoices/ resource. Filter overdue invoices with
// Query.Filters["overdue"] = "true", one tenant's with Filters["tenant"].
type InvoiceService struct {
	crud[Invoice]
}

var _ propbooks.Resource[Invoice] = (*InvoiceService)(nil)

// MarkSent moves a draft invoice to sent, which emails the tenant and
// starts the overdue clock.
func (s *InvoiceService) MarkSent(ctx context.Context, id string) (Invoice, error) {
	return doAction[Invoice](ctx, s.c, s.item(id)+"mark-sent/", nil)
}

// ReceiptService is the /receipts/ resource.
type ReceiptService struct {
	crud[Receipt]
}

var _ propbooks.Resource[Receipt] = (*ReceiptService)(nil)

// Allocate replaces the receipt's invoice allocations. The server reposts
// invoice balances and statuses from the new split.
func (s *ReceiptService) Allocate(ctx context.Context, id string, allocations []Allocation) (Receipt, error) {
	body := struct {
		Allocations []Allocation `json:"allocations"`
	}{Allocations: allocations}
	return doAction[Receipt](ctx, s.c, s.item(id)+"allocate/", body)
}
