package backend

import (
	"context"
	"net/http"

	propbooks "github.com/propbooks/propbooks-go"
)

// PortalService is the tenant self-service surface under /portal/. The
// server scopes every route to the authenticated tenant; no ids are sent.
type PortalService struct {
	c *Client
}

// MyLease returns the tenant's current lease.
func (s *PortalService) MyLease(ctx context.Context) (Lease, error) {
	return doGet[Lease](ctx, s.c, "/portal/lease/")
}

// MyInvoices lists the tenant's invoices, newest first by default.
func (s *PortalService) MyInvoices(ctx context.Context, q propbooks.Query) ([]Invoice, int, error) {
	return doList[Invoice](ctx, s.c, "/portal/invoices/", q)
}

// MyReceipts lists the tenant's payments.
func (s *PortalService) MyReceipts(ctx context.Context, q propbooks.Query) ([]Receipt, int, error) {
	return doList[Receipt](ctx, s.c, "/portal/receipts/", q)
}

// MyStatement returns the tenant's ledger between two dates. Zero dates
// default server-side to the current year.
func (s *PortalService) MyStatement(ctx context.Context, from, to Date) (TenantStatement, error) {
	params := make(map[string]string, 2)
	if !from.IsZero() {
		params["from"] = from.String()
	}
	if !to.IsZero() {
		params["to"] = to.String()
	}
	var out TenantStatement
	err := s.c.do(ctx, http.MethodGet, "/portal/statement/", params, nil, &out)
	return out, err
}
