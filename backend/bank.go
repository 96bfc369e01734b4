package backend

import (
	"context"

	propbooks "github.com/propbooks/propbooks-go"
)

// BankAccountService is the /bank-accounts/ resource.
type BankAccountService struct {
	crud[BankAccount]
}

var _ propbooks.Resource[BankAccount] = (*BankAccountService)(nil)

// BankTransactionService is the /bank-transactions/ resource. Statement
// lines enter through Import; Match/Unmatch pair them with receipts. Filter
// with Query.Filters["account"] and Filters["reconciled"].
type BankTransactionService struct {
	crud[BankTransaction]
}

var _ propbooks.Resource[BankTransaction] = (*BankTransactionService)(nil)

// Import loads statement rows into an account. The server dedupes on
// (date, amount, reference) and reports what it kept.
func (s *BankTransactionService) Import(ctx context.Context, accountID string, rows []BankTransactionInput) (ImportResult, error) {
	body := struct {
		Account string                 `json:"account"`
		Rows    []BankTransactionInput `json:"rows"`
	}{Account: accountID, Rows: rows}
	return doAction[ImportResult](ctx, s.c, s.base+"import/", body)
}

// AutoMatch runs the server's matching heuristics over an account's
// unmatched lines. Callers invalidate and refetch afterwards; the result is
// only a summary for display.
func (s *BankTransactionService) AutoMatch(ctx context.Context, accountID string) (AutoMatchResult, error) {
	body := struct {
		Account string `json:"account"`
	}{Account: accountID}
	return doAction[AutoMatchResult](ctx, s.c, s.base+"auto-match/", body)
}

// Match pairs one transaction with one receipt by hand.
func (s *BankTransactionService) Match(ctx context.Context, id, receiptID string) (BankTransaction, error) {
	body := struct {
		Receipt string `json:"receipt"`
	}{Receipt: receiptID}
	return doAction[BankTransaction](ctx, s.c, s.item(id)+"match/", body)
}

// Unmatch clears a pairing made by Match or AutoMatch.
func (s *BankTransactionService) Unmatch(ctx context.Context, id string) (BankTransaction, error) {
	return doAction[BankTransaction](ctx, s.c, s.item(id)+"unmatch/", nil)
}

// ReconciliationService is the /reconciliations/ resource. A reconciliation
// opens in_progress over a statement period and ends Completed or Abandoned.
type ReconciliationService struct {
	crud[Reconciliation]
}

var _ propbooks.Resource[Reconciliation] = (*ReconciliationService)(nil)

// Complete closes the reconciliation. The server verifies the matched lines
// bridge opening to closing balance and rejects otherwise.
func (s *ReconciliationService) Complete(ctx context.Context, id string) (Reconciliation, error) {
	return doAction[Reconciliation](ctx, s.c, s.item(id)+"complete/", nil)
}

// Abandon discards an in-progress reconciliation, keeping manual matches.
func (s *ReconciliationService) Abandon(ctx context.Context, id string) (Reconciliation, error) {
	return doAction[Reconciliation](ctx, s.c, s.item(id)+"abandon/", nil)
}
