// Package transactionrepo manages repository layer of ledger transactions.
package transactionrepo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/pkg/dbpkg"
	"github.com/go-petr/pet-budget/pkg/errorspkg"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    transactions (envelope_id, type, amount_cents, balance_after_cents, note)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING id, envelope_id, type, amount_cents, balance_after_cents, note, created_at
`

// Create appends the ledger entry and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.EnvelopeID,
		arg.Type,
		arg.AmountCents,
		arg.BalanceAfterCents,
		arg.Note,
	)

	t, err := scan(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx context.Context, %+v)", arg)

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "transactions_envelope_id_fkey":
				return t, domain.ErrEnvelopeNotFound
			case "transactions_amount_cents_check":
				return t, domain.ErrInvalidAmount
			case "transactions_balance_after_cents_check":
				return t, domain.ErrInsufficientFunds
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listQuery = `
SELECT
	id, envelope_id, type, amount_cents, balance_after_cents, note, created_at
FROM transactions
WHERE envelope_id = $1
ORDER BY created_at DESC, id DESC
`

// List returns the ledger entries of the envelope, newest first.
func (r *RepoPGS) List(ctx context.Context, envelopeID int64) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, envelopeID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (domain.Transaction, error) {
	var (
		t    domain.Transaction
		note sql.NullString
	)

	err := s.Scan(
		&t.ID,
		&t.EnvelopeID,
		&t.Type,
		&t.AmountCents,
		&t.BalanceAfterCents,
		&note,
		&t.CreatedAt,
	)

	t.Note = note.String

	return t, err
}
