// Package enveloperepo manages repository layer of envelopes and their ledger.
//
// Two backends share one capability set: RepoPGS keeps envelopes in Postgres and
// relies on row locks, RepoJSON keeps them in a single JSON document guarded by a mutex.
package enveloperepo

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/internal/transactionrepo"
	"github.com/go-petr/pet-budget/pkg/dbpkg"
	"github.com/go-petr/pet-budget/pkg/errorspkg"
)

// RepoPGS facilitates envelope repository layer logic on Postgres.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns envelope RepoPGS bound to an existing transaction.
//
// Balance mutations join that transaction instead of starting their own.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns envelope RepoPGS with connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

// Close closes the underlying connection pool.
func (r *RepoPGS) Close() error {
	if r.conn == nil {
		return nil
	}

	return r.conn.Close()
}

// execTx runs fn as one unit of work. Any error returned by fn rolls back every
// statement it executed.
func (r *RepoPGS) execTx(ctx context.Context, fn func(q *RepoPGS, ledger *transactionrepo.RepoPGS) error) error {
	l := zerolog.Ctx(ctx)

	if r.conn == nil {
		return fn(r, transactionrepo.NewRepoPGS(r.db))
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	if err := fn(NewTxRepoPGS(tx), transactionrepo.NewRepoPGS(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

const columns = `id, name, balance_cents, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(s scanner) (domain.Envelope, error) {
	var e domain.Envelope

	err := s.Scan(
		&e.ID,
		&e.Name,
		&e.BalanceCents,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	return e, err
}

// envelopeErr converts a query error into a domain error.
func envelopeErr(l *zerolog.Logger, err error) error {
	if err == sql.ErrNoRows {
		return domain.ErrEnvelopeNotFound
	}

	l.Error().Err(err).Send()

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "envelopes_balance_cents_check":
			return domain.ErrInvalidBalance
		}

		if pqErr.Code.Name() == "string_data_right_truncation" {
			return domain.ErrInvalidName
		}
	}

	return errorspkg.ErrInternal
}

const listQuery = `
SELECT ` + columns + `
FROM envelopes
ORDER BY id
`

// List returns all envelopes ordered by id.
func (r *RepoPGS) List(ctx context.Context) ([]domain.Envelope, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Envelope{}

	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
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

const getQuery = `
SELECT ` + columns + `
FROM envelopes
WHERE id = $1
`

// Get returns the envelope with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Envelope, error) {
	e, err := scanEnvelope(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		return domain.Envelope{}, envelopeErr(zerolog.Ctx(ctx), err)
	}

	return e, nil
}

const getForUpdateQuery = `
SELECT ` + columns + `
FROM envelopes
WHERE id = $1
FOR UPDATE
`

// getForUpdate reads the envelope and locks its row until the transaction ends.
func (r *RepoPGS) getForUpdate(ctx context.Context, id int64) (domain.Envelope, error) {
	e, err := scanEnvelope(r.db.QueryRowContext(ctx, getForUpdateQuery, id))
	if err != nil {
		return domain.Envelope{}, envelopeErr(zerolog.Ctx(ctx), err)
	}

	return e, nil
}

const createQuery = `
INSERT INTO
    envelopes (name, balance_cents)
VALUES
    ($1, $2)
RETURNING ` + columns

// Create creates the envelope and then returns it.
func (r *RepoPGS) Create(ctx context.Context, name string, balanceCents int64) (domain.Envelope, error) {
	if balanceCents < 0 {
		return domain.Envelope{}, domain.ErrInvalidBalance
	}

	name, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Envelope{}, err
	}

	e, err := scanEnvelope(r.db.QueryRowContext(ctx, createQuery, name, balanceCents))
	if err != nil {
		return domain.Envelope{}, envelopeErr(zerolog.Ctx(ctx), err)
	}

	return e, nil
}

const updateQuery = `
UPDATE envelopes
SET
    name = COALESCE($1, name),
    balance_cents = COALESCE($2, balance_cents),
    updated_at = NOW()
WHERE id = $3
RETURNING ` + columns

// Update applies the provided fields and refreshes updated_at.
func (r *RepoPGS) Update(ctx context.Context, id int64, arg domain.UpdateEnvelopeParams) (domain.Envelope, error) {
	if arg.Empty() {
		return r.Get(ctx, id)
	}

	var (
		name    sql.NullString
		balance sql.NullInt64
	)

	if arg.Name != nil {
		normalized, err := domain.NormalizeName(*arg.Name)
		if err != nil {
			return domain.Envelope{}, err
		}

		name = sql.NullString{String: normalized, Valid: true}
	}

	if arg.BalanceCents != nil {
		if *arg.BalanceCents < 0 {
			return domain.Envelope{}, domain.ErrInvalidBalance
		}

		balance = sql.NullInt64{Int64: *arg.BalanceCents, Valid: true}
	}

	e, err := scanEnvelope(r.db.QueryRowContext(ctx, updateQuery, name, balance, id))
	if err != nil {
		return domain.Envelope{}, envelopeErr(zerolog.Ctx(ctx), err)
	}

	return e, nil
}

const setBalanceQuery = `
UPDATE envelopes
SET balance_cents = $1, updated_at = NOW()
WHERE id = $2
RETURNING ` + columns

func (r *RepoPGS) setBalance(ctx context.Context, id, balanceCents int64) (domain.Envelope, error) {
	e, err := scanEnvelope(r.db.QueryRowContext(ctx, setBalanceQuery, balanceCents, id))
	if err != nil {
		err = envelopeErr(zerolog.Ctx(ctx), err)
		if err == domain.ErrInvalidBalance {
			return domain.Envelope{}, domain.ErrInsufficientFunds
		}

		return domain.Envelope{}, err
	}

	return e, nil
}

const deleteQuery = `
DELETE FROM envelopes
WHERE id = $1
`

// Delete removes the envelope with the given id. Its transactions are removed by
// the foreign key cascade within the same statement.
func (r *RepoPGS) Delete(ctx context.Context, id int64) (bool, error) {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, deleteQuery, id)
	if err != nil {
		l.Error().Err(err).Send()
		return false, errorspkg.ErrInternal
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return false, errorspkg.ErrInternal
	}

	return n > 0, nil
}

// Deposit adds the amount to the envelope balance and records a deposit entry.
func (r *RepoPGS) Deposit(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error) {
	if amountCents <= 0 {
		return domain.Envelope{}, domain.ErrInvalidAmount
	}

	if note == "" {
		note = domain.NoteDeposit
	}

	var result domain.Envelope

	err := r.execTx(ctx, func(q *RepoPGS, ledger *transactionrepo.RepoPGS) error {
		e, err := q.getForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if amountCents > math.MaxInt64-e.BalanceCents {
			return domain.ErrInvalidAmount
		}

		result, err = q.setBalance(ctx, id, e.BalanceCents+amountCents)
		if err != nil {
			return err
		}

		_, err = ledger.Create(ctx, domain.CreateTransactionParams{
			EnvelopeID:        id,
			Type:              domain.TypeDeposit,
			AmountCents:       amountCents,
			BalanceAfterCents: result.BalanceCents,
			Note:              note,
		})

		return err
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return result, nil
}

// Withdraw subtracts the amount from the envelope balance and records a withdraw entry.
//
// When the balance does not cover the amount nothing is changed and ErrInsufficientFunds is returned.
func (r *RepoPGS) Withdraw(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error) {
	if amountCents <= 0 {
		return domain.Envelope{}, domain.ErrInvalidAmount
	}

	if note == "" {
		note = domain.NoteWithdrawal
	}

	var result domain.Envelope

	err := r.execTx(ctx, func(q *RepoPGS, ledger *transactionrepo.RepoPGS) error {
		e, err := q.getForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if e.BalanceCents < amountCents {
			return domain.ErrInsufficientFunds
		}

		result, err = q.setBalance(ctx, id, e.BalanceCents-amountCents)
		if err != nil {
			return err
		}

		_, err = ledger.Create(ctx, domain.CreateTransactionParams{
			EnvelopeID:        id,
			Type:              domain.TypeWithdraw,
			AmountCents:       amountCents,
			BalanceAfterCents: result.BalanceCents,
			Note:              note,
		})

		return err
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return result, nil
}

// Transfer moves money between two envelopes.
//
// Both rows are locked in ascending id order, the source balance is checked, both
// balances are updated and a transfer_out/transfer_in entry pair is recorded within
// a single database transaction.
func (r *RepoPGS) Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	if arg.FromID == arg.ToID {
		return domain.TransferResult{}, domain.ErrSameEnvelope
	}

	if arg.AmountCents <= 0 {
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	result := domain.TransferResult{AmountCents: arg.AmountCents}

	err := r.execTx(ctx, func(q *RepoPGS, ledger *transactionrepo.RepoPGS) error {
		// To avoid deadlocks lock rows in consistent id order
		firstID, secondID := arg.FromID, arg.ToID
		if firstID > secondID {
			firstID, secondID = secondID, firstID
		}

		first, err := q.getForUpdate(ctx, firstID)
		if err != nil {
			return err
		}

		second, err := q.getForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		from, to := first, second
		if from.ID != arg.FromID {
			from, to = second, first
		}

		if from.BalanceCents < arg.AmountCents {
			return domain.ErrInsufficientFunds
		}

		if arg.AmountCents > math.MaxInt64-to.BalanceCents {
			return domain.ErrInvalidAmount
		}

		result.From, err = q.setBalance(ctx, from.ID, from.BalanceCents-arg.AmountCents)
		if err != nil {
			return err
		}

		result.To, err = q.setBalance(ctx, to.ID, to.BalanceCents+arg.AmountCents)
		if err != nil {
			return err
		}

		outNote, inNote := domain.TransferOutNote(to.ID), domain.TransferInNote(from.ID)
		if arg.Note != "" {
			outNote, inNote = arg.Note, arg.Note
		}

		result.FromTransaction, err = ledger.Create(ctx, domain.CreateTransactionParams{
			EnvelopeID:        from.ID,
			Type:              domain.TypeTransferOut,
			AmountCents:       arg.AmountCents,
			BalanceAfterCents: result.From.BalanceCents,
			Note:              outNote,
		})
		if err != nil {
			return err
		}

		result.ToTransaction, err = ledger.Create(ctx, domain.CreateTransactionParams{
			EnvelopeID:        to.ID,
			Type:              domain.TypeTransferIn,
			AmountCents:       arg.AmountCents,
			BalanceAfterCents: result.To.BalanceCents,
			Note:              inNote,
		})

		return err
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	return result, nil
}

// ListTransactions returns the ledger of the envelope, newest first.
func (r *RepoPGS) ListTransactions(ctx context.Context, envelopeID int64) ([]domain.Transaction, error) {
	if _, err := r.Get(ctx, envelopeID); err != nil {
		return nil, err
	}

	return transactionrepo.NewRepoPGS(r.db).List(ctx, envelopeID)
}
