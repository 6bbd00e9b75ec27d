// Package checkout turns a cart and a confirmed customer into a recorded
// transaction.
package checkout

import (
	"context"
	"log/slog"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/cart"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
)

// Operator-facing messages.
const (
	MsgNoItems            = "No items selected."
	MsgDetailsFailed      = "Failed to fetch item details."
	MsgTransactionFailed  = "Transaction failed."
	MsgTransactionSuccess = "Transaction successful!"
	MsgNoCustomer         = "No customer confirmed."
)

// Ledger is the part of the backend the submitter talks to.
type Ledger interface {
	ItemsDetails(ctx context.Context, itemIDs []string) ([]backend.Item, error)
	RecordTransaction(ctx context.Context, tx backend.Transaction) error
}

// SummaryLine is one cart line with current item details.
type SummaryLine struct {
	Item     backend.Item `json:"item"`
	Quantity int          `json:"quantity"`
	Subtotal int64        `json:"subtotal"`
}

// Summary is the confirmation shown before submitting.
type Summary struct {
	Customer backend.Profile `json:"customer"`
	Lines    []SummaryLine   `json:"lines"`
	// Total is informational; the backend prices the transaction.
	Total int64 `json:"total"`
}

// Submitter builds and records transactions.
type Submitter struct {
	ledger  Ledger
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSubmitter creates a submitter. logger and m may be nil.
func NewSubmitter(ledger Ledger, logger *slog.Logger, m *metrics.Metrics) *Submitter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Submitter{ledger: ledger, logger: logger, metrics: m}
}

// Summary fetches fresh details for exactly the items in the cart.
func (s *Submitter) Summary(ctx context.Context, c *cart.Cart, customer backend.Profile) (*Summary, error) {
	const op = "fetch item details"

	if c.IsEmpty() {
		return nil, apperr.Validation(op, MsgNoItems)
	}

	items, err := s.ledger.ItemsDetails(ctx, c.ItemIDs())
	if err != nil {
		s.logger.Warn("item details failed", "error", err)
		return nil, apperr.WithFallback(err, op, MsgDetailsFailed)
	}

	byID := make(map[string]backend.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	summary := &Summary{Customer: customer}
	for _, line := range c.Lines() {
		item, ok := byID[line.ItemID]
		if !ok {
			item = backend.Item{ID: line.ItemID}
		}
		subtotal := item.Price * int64(line.Quantity)
		summary.Lines = append(summary.Lines, SummaryLine{Item: item, Quantity: line.Quantity, Subtotal: subtotal})
		summary.Total += subtotal
	}
	return summary, nil
}

// BuildTransaction expands the cart into line items ordered by item ID.
func BuildTransaction(c *cart.Cart, customer backend.Profile) backend.Transaction {
	lines := c.Lines()
	tx := backend.Transaction{
		UserID:    customer.ID,
		LineItems: make([]backend.LineItem, 0, len(lines)),
	}
	for _, line := range lines {
		tx.LineItems = append(tx.LineItems, backend.LineItem{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return tx
}

// Submit records the transaction. An empty cart never reaches the network.
// The transaction is sent once; retries are up to the operator.
func (s *Submitter) Submit(ctx context.Context, c *cart.Cart, customer backend.Profile) (backend.Transaction, error) {
	const op = "submit transaction"

	if c.IsEmpty() {
		return backend.Transaction{}, apperr.Validation(op, MsgNoItems)
	}
	if customer.ID == "" {
		return backend.Transaction{}, apperr.Validation(op, MsgNoCustomer)
	}

	tx := BuildTransaction(c, customer)
	err := s.ledger.RecordTransaction(ctx, tx)
	s.metrics.ObserveTransaction(err == nil)
	if err != nil {
		s.logger.Warn("transaction failed", "user_id", tx.UserID, "lines", len(tx.LineItems), "error", err)
		return tx, apperr.WithFallback(err, op, MsgTransactionFailed)
	}
	s.logger.Info("transaction recorded", "user_id", tx.UserID, "lines", len(tx.LineItems))
	return tx, nil
}
