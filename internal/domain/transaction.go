package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidAmount indicates a missing, non-numeric or non-positive amount.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrInsufficientFunds indicates that the envelope balance does not cover the amount.
	ErrInsufficientFunds = errors.New("Insufficient funds in envelope")
	// ErrSameEnvelope indicates a transfer whose source and destination are the same envelope.
	ErrSameEnvelope = errors.New("fromId and toId must be different")
	// ErrInvalidTransactionType indicates an unsupported transaction type.
	ErrInvalidTransactionType = errors.New("type must be deposit or withdraw")
)

// TransactionType is the kind of a ledger entry.
type TransactionType string

// Ledger entry kinds.
const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdraw    TransactionType = "withdraw"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
)

// Default notes written with each ledger entry kind.
const (
	NoteDeposit    = "Envelope deposit"
	NoteWithdrawal = "Envelope withdrawal"
)

// TransferOutNote is the default note of the debit side of a transfer.
func TransferOutNote(toID int64) string {
	return fmt.Sprintf("Transfer to envelope %d", toID)
}

// TransferInNote is the default note of the credit side of a transfer.
func TransferInNote(fromID int64) string {
	return fmt.Sprintf("Transfer from envelope %d", fromID)
}

// Transaction is an append-only ledger entry owned by one envelope.
type Transaction struct {
	ID                int64           `json:"id"`
	EnvelopeID        int64           `json:"envelopeId"`
	Type              TransactionType `json:"type"`
	AmountCents       int64           `json:"amountCents"` // always positive
	BalanceAfterCents int64           `json:"balanceAfterCents"`
	Note              string          `json:"note"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// CreateTransactionParams is the input data to append a ledger entry.
type CreateTransactionParams struct {
	EnvelopeID        int64
	Type              TransactionType
	AmountCents       int64
	BalanceAfterCents int64
	Note              string
}

// CreateTransferParams is the input data for the transfer transaction.
type CreateTransferParams struct {
	FromID      int64
	ToID        int64
	AmountCents int64
	Note        string
}

// TransferResult is the result of the transfer transaction.
type TransferResult struct {
	From            Envelope    `json:"from"`
	To              Envelope    `json:"to"`
	AmountCents     int64       `json:"amountCents"`
	FromTransaction Transaction `json:"fromTransaction"`
	ToTransaction   Transaction `json:"toTransaction"`
}
