package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Page is the server's list envelope. Bare-array responses normalize into it
// with Count set to the slice length.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// decodePage accepts both list body styles: {"results": [...], "count": n}
// and a bare JSON array. Detection looks at the first non-space byte.
func decodePage[T any](raw []byte) (Page[T], error) {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return Page[T]{}, fmt.Errorf("backend: decode list body: %w", err)
			}
			return Page[T]{Count: len(items), Results: items}, nil
		default:
			var p Page[T]
			if err := json.Unmarshal(raw, &p); err != nil {
				return Page[T]{}, fmt.Errorf("backend: decode page body: %w", err)
			}
			if p.Results == nil {
				p.Results = []T{}
			}
			return p, nil
		}
	}
	return Page[T]{}, fmt.Errorf("backend: empty list body")
}

// Date is a calendar day, wire format "2006-01-02". The zero Date marshals
// as null and omitzero drops it.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today is the current day in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate reads a calendar day in wire form, "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("backend: bad date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("backend: bad date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

type RentFrequency string

const (
	FrequencyMonthly   RentFrequency = "monthly"
	FrequencyQuarterly RentFrequency = "quarterly"
	FrequencyAnnually  RentFrequency = "annually"
)

type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "active"
	LeaseTerminated LeaseStatus = "terminated"
	LeaseExpired    LeaseStatus = "expired"
)

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCard         PaymentMethod = "card"
	MethodMobileMoney  PaymentMethod = "mobile_money"
)

type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "in_progress"
	ReconciliationCompleted  ReconciliationStatus = "completed"
	ReconciliationAbandoned  ReconciliationStatus = "abandoned"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleClerk   Role = "clerk"
	RoleViewer  Role = "viewer"
	RoleTenant  Role = "tenant"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Landlord is a property owner the agency manages units for.
type Landlord struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Unit is a rentable property. Occupied is server-derived from the active
// lease and ignored on writes.
type Unit struct {
	ID         string          `json:"id,omitempty"`
	LandlordID string          `json:"landlord,omitempty"`
	Name       string          `json:"name"`
	Address    string          `json:"address,omitempty"`
	Bedrooms   int             `json:"bedrooms,omitempty"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	Currency   string          `json:"currency,omitempty"`
	Occupied   bool            `json:"occupied,omitempty"`
}

type Tenant struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Active    bool   `json:"active"`
}

func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

type Lease struct {
	ID            string          `json:"id,omitempty"`
	UnitID        string          `json:"unit"`
	UnitName      string          `json:"unit_name,omitempty"`
	TenantID      string          `json:"tenant"`
	TenantName    string          `json:"tenant_name,omitempty"`
	StartDate     Date            `json:"start_date"`
	EndDate       Date            `json:"end_date,omitzero"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount,omitzero"`
	Frequency     RentFrequency   `json:"frequency,omitempty"`
	Status        LeaseStatus     `json:"status,omitempty"`
	TerminatedOn  Date            `json:"terminated_on,omitzero"`
}

// Invoice bills one lease period. Number, Balance, Status and TenantName
// are server-assigned.
type Invoice struct {
	ID         string          `json:"id,omitempty"`
	LeaseID    string          `json:"lease"`
	TenantID   string          `json:"tenant,omitempty"`
	TenantName string          `json:"tenant_name,omitempty"`
	Number     string          `json:"number,omitempty"`
	IssueDate  Date            `json:"issue_date"`
	DueDate    Date            `json:"due_date"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid,omitzero"`
	Balance    decimal.Decimal `json:"balance,omitzero"`
	Status     InvoiceStatus   `json:"status,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

// Allocation applies part of a receipt to one invoice.
type Allocation struct {
	InvoiceID string          `json:"invoice"`
	Amount    decimal.Decimal `json:"amount"`
}

type Receipt struct {
	ID          string          `json:"id,omitempty"`
	TenantID    string          `json:"tenant"`
	TenantName  string          `json:"tenant_name,omitempty"`
	Date        Date            `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Allocations []Allocation    `json:"allocations,omitempty"`
}

type BankAccount struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	BankName      string          `json:"bank_name,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Balance       decimal.Decimal `json:"balance,omitzero"`
}

// BankTransaction is one imported statement line. ReceiptID is set while the
// line is matched; Reconciled flips when its reconciliation completes.
type BankTransaction struct {
	ID          string          `json:"id,omitempty"`
	AccountID   string          `json:"account"`
	Date        Date            `json:"date"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
	Reconciled  bool            `json:"reconciled,omitempty"`
	ReceiptID   string          `json:"receipt,omitempty"`
}

// BankTransactionInput is one row of a statement import.
type BankTransactionInput struct {
	Date        Date            `json:"date"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference,omitempty"`
}

type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
}

// AutoMatchResult summarizes a server-side matching run. The heuristics live
// on the server; the client only invalidates and refetches afterwards.
type AutoMatchResult struct {
	Matched  int `json:"matched"`
	Examined int `json:"examined"`
}

type Reconciliation struct {
	ID             string               `json:"id,omitempty"`
	AccountID      string               `json:"account"`
	PeriodStart    Date                 `json:"period_start"`
	PeriodEnd      Date                 `json:"period_end"`
	OpeningBalance decimal.Decimal      `json:"opening_balance"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
	Status         ReconciliationStatus `json:"status,omitempty"`
	CompletedAt    time.Time            `json:"completed_at,omitzero"`
}

type User struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	Active    bool   `json:"active"`
}

type Invitation struct {
	ID        string           `json:"id,omitempty"`
	Email     string           `json:"email"`
	FirstName string           `json:"first_name,omitempty"`
	LastName  string           `json:"last_name,omitempty"`
	Role      Role             `json:"role,omitempty"`
	Status    InvitationStatus `json:"status,omitempty"`
	SentAt    time.Time        `json:"sent_at,omitzero"`
	ExpiresAt time.Time        `json:"expires_at,omitzero"`
}

// AgedRow is one debtor line of the aged receivables report, bucketed by
// days outstanding. All amounts are server-computed.
type AgedRow struct {
	TenantID   string          `json:"tenant_id"`
	TenantName string          `json:"tenant_name"`
	Current    decimal.Decimal `json:"current"`
	Days30     decimal.Decimal `json:"days_30"`
	Days60     decimal.Decimal `json:"days_60"`
	Days90     decimal.Decimal `json:"days_90"`
	Older      decimal.Decimal `json:"older"`
	Total      decimal.Decimal `json:"total"`
}

type AgedAnalysisReport struct {
	AsOf Date      `json:"as_of"`
	Rows []AgedRow `json:"rows"`
}

// RentRollRow is one occupied unit in the rent roll.
type RentRollRow struct {
	UnitID     string          `json:"unit_id"`
	UnitName   string          `json:"unit_name"`
	TenantName string          `json:"tenant_name"`
	LeaseID    string          `json:"lease_id"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	Frequency  RentFrequency   `json:"frequency"`
	Status     LeaseStatus     `json:"status"`
}

type RentRollReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Rows        []RentRollRow   `json:"rows"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
}

type DashboardSummary struct {
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
	OverdueTotal     decimal.Decimal `json:"overdue_total"`
	CollectedMTD     decimal.Decimal `json:"collected_mtd"`
	ActiveLeases     int             `json:"active_leases"`
	VacantUnits      int             `json:"vacant_units"`
	OpenInvoices     int             `json:"open_invoices"`
}

// StatementLine is one ledger row of a tenant statement: a charge or a
// payment plus the running balance after it.
type StatementLine struct {
	Date        Date            `json:"date"`
	Description string          `json:"description"`
	Charge      decimal.Decimal `json:"charge,omitzero"`
	Payment     decimal.Decimal `json:"payment,omitzero"`
	Balance     decimal.Decimal `json:"balance"`
}

type TenantStatement struct {
	TenantID       string          `json:"tenant_id"`
	TenantName     string          `json:"tenant_name"`
	From           Date            `json:"from"`
	To             Date            `json:"to"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []StatementLine `json:"lines"`
}
