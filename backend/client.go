// Package backend is the REST client for the PropBooks server. One Client
// carries the shared HTTP transport and exposes one service per server
// resource; the CRUD services satisfy the cache's Resource contract so a
// Collection can fetch and mutate through them directly.
//
// The server speaks JSON with bearer-token auth. List endpoints answer with
// either a bare array or the {results, count} envelope; both decode the same
// way. Non-2xx responses become *APIError values with a user-displayable
// Message.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	propbooks "github.com/propbooks/propbooks-go"
)

const defaultTimeout = 30 * time.Second

// Config configures a Client. BaseURL is required and should include any
// path prefix the API is mounted under (e.g. "https://host/api").
type Config struct {
	BaseURL string

	// Token is the initial bearer token. Sessions that authenticate later
	// call SetToken instead.
	Token string

	Timeout   time.Duration // 0 => 30s
	UserAgent string
	Logger    propbooks.Logger // if nil, NopLogger is used
}

// Client talks to the PropBooks server. Safe for concurrent use.
type Client struct {
	http *resty.Client
	log  propbooks.Logger

	Landlords        *LandlordService
	Units            *UnitService
	Tenants          *TenantService
	Leases           *LeaseService
	Invoices         *InvoiceService
	Receipts         *ReceiptService
	BankAccounts     *BankAccountService
	BankTransactions *BankTransactionService
	Reconciliations  *ReconciliationService
	Users            *UserService
	Invitations      *InvitationService
	Reports          *ReportService
	Portal           *PortalService
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}

	hc := resty.New()
	hc.SetBaseURL(base)
	hc.SetTimeout(coalesceDuration(cfg.Timeout, defaultTimeout))
	hc.SetHeader("Accept", "application/json")
	hc.SetHeader("Content-Type", "application/json")
	if cfg.UserAgent != "" {
		hc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}

	c := &Client{http: hc, log: cfg.Logger}
	if c.log == nil {
		c.log = propbooks.NopLogger{}
	}

	c.Landlords = &LandlordService{crud: crud[Landlord]{c: c, base: "/landlords/"}}
	c.Units = &UnitService{crud: crud[Unit]{c: c, base: "/units/"}}
	c.Tenants = &TenantService{crud: crud[Tenant]{c: c, base: "/tenants/"}}
	c.Leases = &LeaseService{crud: crud[Lease]{c: c, base: "/leases/"}}
	c.Invoices = &InvoiceService{crud: crud[Invoice]{c: c, base: "/invoices/"}}
	c.Receipts = &ReceiptService{crud: crud[Receipt]{c: c, base: "/receipts/"}}
	c.BankAccounts = &BankAccountService{crud: crud[BankAccount]{c: c, base: "/bank-accounts/"}}
	c.BankTransactions = &BankTransactionService{crud: crud[BankTransaction]{c: c, base: "/bank-transactions/"}}
	c.Reconciliations = &ReconciliationService{crud: crud[Reconciliation]{c: c, base: "/reconciliations/"}}
	c.Users = &UserService{crud: crud[User]{c: c, base: "/users/"}}
	c.Invitations = &InvitationService{crud: crud[Invitation]{c: c, base: "/invitations/"}}
	c.Reports = &ReportService{c: c}
	c.Portal = &PortalService{c: c}
	return c, nil
}

// SetToken replaces the bearer token on the shared transport. Used after
// login and on token refresh.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// Close releases idle connections. The Client is unusable afterwards.
func (c *Client) Close() error {
	c.http.Close()
	return nil
}

// do sends one request and decodes a successful JSON body into out (out may
// be nil for responses without a body). Transport failures and non-2xx
// statuses both come back as *APIError.
func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	case http.MethodPost:
		resp, err = req.Post(path)
	case http.MethodPatch:
		resp, err = req.Patch(path)
	case http.MethodDelete:
		resp, err = req.Delete(path)
	default:
		return fmt.Errorf("backend: unsupported method %q", method)
	}
	if err != nil {
		c.log.Warn("request failed", propbooks.Fields{"method": method, "path": path, "err": err})
		return &APIError{Kind: KindNetwork, Err: err}
	}
	if resp.IsError() {
		apiErr := errorFromResponse(resp)
		c.log.Debug("server returned an error", propbooks.Fields{
			"method": method, "path": path, "status": apiErr.StatusCode, "kind": apiErr.Kind,
		})
		return apiErr
	}
	return nil
}

func coalesceDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}
