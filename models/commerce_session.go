package models

// SessionStatus is the lifecycle state of a commerce session as reported
// by the server. The happy path walks the statuses in declaration order
// and ends at completed; closed can happen from any state.
type SessionStatus string

const (
	SessionStatusRequiresPaymentAsset SessionStatus = "requires_payment_asset"
	SessionStatusRequiresAmount       SessionStatus = "requires_amount"
	SessionStatusRequiresTransaction  SessionStatus = "requires_transaction"
	SessionStatusRequiresApproval     SessionStatus = "requires_approval"
	SessionStatusCompleted            SessionStatus = "completed"
	SessionStatusClosed               SessionStatus = "closed"
	SessionStatusUnknown              SessionStatus = "unknown"
)

// SessionStatusFromString maps a wire status onto the known set, falling
// back to SessionStatusUnknown for anything unrecognized.
func SessionStatusFromString(s string) SessionStatus {
	switch SessionStatus(s) {
	case SessionStatusRequiresPaymentAsset,
		SessionStatusRequiresAmount,
		SessionStatusRequiresTransaction,
		SessionStatusRequiresApproval,
		SessionStatusCompleted,
		SessionStatusClosed:
		return SessionStatus(s)
	default:
		return SessionStatusUnknown
	}
}

// CommerceSession is a server-owned payment in progress. The server is the
// single source of truth: local copies are replaced wholesale by snapshots
// carried on commerce_session.* events.
type CommerceSession struct {
	ID             string         `json:"id"`
	Status         SessionStatus  `json:"status"`
	Asset          string         `json:"asset"`
	Amount         string         `json:"amount"`
	Brand          *Brand         `json:"brand,omitempty"`
	Transactions   []Transaction  `json:"transactions,omitempty"`
	Authorization  *Authorization `json:"authorization,omitempty"`
	Credits        []Credit       `json:"credits,omitempty"`
	PreferredAsset string         `json:"preferred_payment_asset,omitempty"`
	Rate           *ExchangeRate  `json:"rate,omitempty"`
}

// RequiresTransaction reports whether the session is waiting for the
// wallet to sign and send a transaction.
func (s CommerceSession) RequiresTransaction() bool {
	return s.Status == SessionStatusRequiresTransaction
}

// RequiresApproval reports whether the session is waiting for user approval.
func (s CommerceSession) RequiresApproval() bool {
	return s.Status == SessionStatusRequiresApproval
}

// IsClosed reports whether the session reached a terminal state.
func (s CommerceSession) IsClosed() bool {
	return s.Status == SessionStatusClosed || s.Status == SessionStatusCompleted
}

// RequestedTransaction returns the first transaction still waiting to be
// signed, if any.
func (s CommerceSession) RequestedTransaction() *Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].Status == TransactionStatusRequested {
			return &s.Transactions[i]
		}
	}
	return nil
}

// TransactionStatus is the state of a single on-chain transaction attached
// to a commerce session.
type TransactionStatus string

const (
	TransactionStatusRequested TransactionStatus = "requested"
	TransactionStatusApproved  TransactionStatus = "approved"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
)

// Transaction is one payment transaction requested by or reported to the
// server as part of a commerce session.
type Transaction struct {
	ID          string            `json:"id"`
	Asset       string            `json:"asset"`
	Amount      string            `json:"amount"`
	Destination string            `json:"destination,omitempty"`
	Fee         *Fee              `json:"fee,omitempty"`
	Size        string            `json:"size,omitempty"`
	Status      TransactionStatus `json:"status"`
	Signature   string            `json:"signature,omitempty"`
}

// Fee describes the network fee quoted for a transaction.
type Fee struct {
	Amount           string `json:"amount"`
	Asset            string `json:"asset"`
	Price            string `json:"price,omitempty"`
	TransactionAsset string `json:"transaction_asset,omitempty"`
}

// Authorization carries the legacy flexcode payment details attached to a
// session when the merchant uses the non-transaction flow.
type Authorization struct {
	Number       string `json:"number"`
	Instructions string `json:"instructions,omitempty"`
	Details      string `json:"details,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Credit is a promotional credit applied to a session.
type Credit struct {
	ID     string `json:"id"`
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
	Label  string `json:"label,omitempty"`
	Status string `json:"status,omitempty"`
}
