package enveloperepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/pkg/errorspkg"
)

// document is the on-disk layout of the JSON store.
type document struct {
	NextID            int64                `json:"nextId"`
	NextTransactionID int64                `json:"nextTransactionId"`
	Envelopes         []domain.Envelope    `json:"envelopes"`
	Transactions      []domain.Transaction `json:"transactions"`
}

func (d document) clone() document {
	c := d
	c.Envelopes = append([]domain.Envelope(nil), d.Envelopes...)
	c.Transactions = append([]domain.Transaction(nil), d.Transactions...)

	return c
}

func (d document) indexOf(id int64) int {
	for i := range d.Envelopes {
		if d.Envelopes[i].ID == id {
			return i
		}
	}

	return -1
}

func (d *document) appendTransaction(arg domain.CreateTransactionParams, now time.Time) domain.Transaction {
	t := domain.Transaction{
		ID:                d.NextTransactionID,
		EnvelopeID:        arg.EnvelopeID,
		Type:              arg.Type,
		AmountCents:       arg.AmountCents,
		BalanceAfterCents: arg.BalanceAfterCents,
		Note:              arg.Note,
		CreatedAt:         now,
	}

	d.NextTransactionID++
	d.Transactions = append(d.Transactions, t)

	return t
}

// seedDocument returns the content written on first initialization.
func seedDocument(now time.Time) document {
	return document{
		NextID:            4,
		NextTransactionID: 1,
		Envelopes: []domain.Envelope{
			{ID: 1, Name: "Rent", BalanceCents: 100000, CreatedAt: now, UpdatedAt: now},
			{ID: 2, Name: "Groceries", BalanceCents: 30000, CreatedAt: now, UpdatedAt: now},
			{ID: 3, Name: "Entertainment", BalanceCents: 40000, CreatedAt: now, UpdatedAt: now},
		},
		Transactions: []domain.Transaction{},
	}
}

// RepoJSON facilitates envelope repository layer logic on a JSON file.
//
// The whole document is held in memory and rewritten on every mutation.
// A single RWMutex serializes all mutations of one store instance.
type RepoJSON struct {
	mu    sync.RWMutex
	path  string
	state document
	now   func() time.Time
}

// NewRepoJSON loads the JSON store at path, seeding it when the file does not exist yet.
func NewRepoJSON(path string) (*RepoJSON, error) {
	r := &RepoJSON{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := r.init(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RepoJSON) init() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		seed := seedDocument(r.now())
		if err := r.save(seed); err != nil {
			return fmt.Errorf("write seed data: %w", err)
		}

		r.state = seed

		return nil
	}

	if err != nil {
		return fmt.Errorf("read store file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode store file %s: %w", r.path, err)
	}

	if doc.Envelopes == nil {
		doc.Envelopes = []domain.Envelope{}
	}

	if doc.Transactions == nil {
		doc.Transactions = []domain.Transaction{}
	}

	for _, e := range doc.Envelopes {
		if e.ID >= doc.NextID {
			doc.NextID = e.ID + 1
		}
	}

	for _, t := range doc.Transactions {
		if t.ID >= doc.NextTransactionID {
			doc.NextTransactionID = t.ID + 1
		}
	}

	if doc.NextID < 1 {
		doc.NextID = 1
	}

	if doc.NextTransactionID < 1 {
		doc.NextTransactionID = 1
	}

	r.state = doc

	return nil
}

// save writes the document to a temporary file and renames it over the store file.
func (r *RepoJSON) save(doc document) error {
	sort.Slice(doc.Envelopes, func(i, j int) bool { return doc.Envelopes[i].ID < doc.Envelopes[j].ID })

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}

	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)

		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)

		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}

// update runs fn as one unit of work on a copy of the state. The copy replaces the
// current state only after it has been written to disk.
func (r *RepoJSON) update(ctx context.Context, fn func(doc *document, now time.Time) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.clone()

	if err := fn(&next, r.now()); err != nil {
		return err
	}

	if err := r.save(next); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", r.path).Msg("cannot write store file")
		return errorspkg.ErrInternal
	}

	r.state = next

	return nil
}

// Close implements io.Closer. The file is not held open between writes.
func (r *RepoJSON) Close() error {
	return nil
}

// List returns all envelopes ordered by id.
func (r *RepoJSON) List(ctx context.Context) ([]domain.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := append([]domain.Envelope{}, r.state.Envelopes...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// Get returns the envelope with the given id.
func (r *RepoJSON) Get(ctx context.Context, id int64) (domain.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.state.indexOf(id)
	if i < 0 {
		return domain.Envelope{}, domain.ErrEnvelopeNotFound
	}

	return r.state.Envelopes[i], nil
}

// Create creates the envelope and then returns it.
func (r *RepoJSON) Create(ctx context.Context, name string, balanceCents int64) (domain.Envelope, error) {
	if balanceCents < 0 {
		return domain.Envelope{}, domain.ErrInvalidBalance
	}

	name, err := domain.NormalizeName(name)
	if err != nil {
		return domain.Envelope{}, err
	}

	var e domain.Envelope

	err = r.update(ctx, func(doc *document, now time.Time) error {
		e = domain.Envelope{
			ID:           doc.NextID,
			Name:         name,
			BalanceCents: balanceCents,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		doc.NextID++
		doc.Envelopes = append(doc.Envelopes, e)

		return nil
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return e, nil
}

// Update applies the provided fields and refreshes UpdatedAt.
func (r *RepoJSON) Update(ctx context.Context, id int64, arg domain.UpdateEnvelopeParams) (domain.Envelope, error) {
	if arg.Empty() {
		return r.Get(ctx, id)
	}

	if arg.BalanceCents != nil && *arg.BalanceCents < 0 {
		return domain.Envelope{}, domain.ErrInvalidBalance
	}

	if arg.Name != nil {
		name, err := domain.NormalizeName(*arg.Name)
		if err != nil {
			return domain.Envelope{}, err
		}

		arg.Name = &name
	}

	var e domain.Envelope

	err := r.update(ctx, func(doc *document, now time.Time) error {
		i := doc.indexOf(id)
		if i < 0 {
			return domain.ErrEnvelopeNotFound
		}

		if arg.Name != nil {
			doc.Envelopes[i].Name = *arg.Name
		}

		if arg.BalanceCents != nil {
			doc.Envelopes[i].BalanceCents = *arg.BalanceCents
		}

		doc.Envelopes[i].UpdatedAt = now
		e = doc.Envelopes[i]

		return nil
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return e, nil
}

// Delete removes the envelope together with its transactions.
func (r *RepoJSON) Delete(ctx context.Context, id int64) (bool, error) {
	err := r.update(ctx, func(doc *document, _ time.Time) error {
		i := doc.indexOf(id)
		if i < 0 {
			return domain.ErrEnvelopeNotFound
		}

		doc.Envelopes = append(doc.Envelopes[:i], doc.Envelopes[i+1:]...)

		kept := doc.Transactions[:0]
		for _, t := range doc.Transactions {
			if t.EnvelopeID != id {
				kept = append(kept, t)
			}
		}

		doc.Transactions = kept

		return nil
	})

	if errors.Is(err, domain.ErrEnvelopeNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Deposit adds the amount to the envelope balance and records a deposit entry.
func (r *RepoJSON) Deposit(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error) {
	if amountCents <= 0 {
		return domain.Envelope{}, domain.ErrInvalidAmount
	}

	if note == "" {
		note = domain.NoteDeposit
	}

	var e domain.Envelope

	err := r.update(ctx, func(doc *document, now time.Time) error {
		i := doc.indexOf(id)
		if i < 0 {
			return domain.ErrEnvelopeNotFound
		}

		if amountCents > math.MaxInt64-doc.Envelopes[i].BalanceCents {
			return domain.ErrInvalidAmount
		}

		doc.Envelopes[i].BalanceCents += amountCents
		doc.Envelopes[i].UpdatedAt = now
		e = doc.Envelopes[i]

		doc.appendTransaction(domain.CreateTransactionParams{
			EnvelopeID:        id,
			Type:              domain.TypeDeposit,
			AmountCents:       amountCents,
			BalanceAfterCents: e.BalanceCents,
			Note:              note,
		}, now)

		return nil
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return e, nil
}

// Withdraw subtracts the amount from the envelope balance and records a withdraw entry.
//
// When the balance does not cover the amount nothing is changed and ErrInsufficientFunds is returned.
func (r *RepoJSON) Withdraw(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error) {
	if amountCents <= 0 {
		return domain.Envelope{}, domain.ErrInvalidAmount
	}

	if note == "" {
		note = domain.NoteWithdrawal
	}

	var e domain.Envelope

	err := r.update(ctx, func(doc *document, now time.Time) error {
		i := doc.indexOf(id)
		if i < 0 {
			return domain.ErrEnvelopeNotFound
		}

		if doc.Envelopes[i].BalanceCents < amountCents {
			return domain.ErrInsufficientFunds
		}

		doc.Envelopes[i].BalanceCents -= amountCents
		doc.Envelopes[i].UpdatedAt = now
		e = doc.Envelopes[i]

		doc.appendTransaction(domain.CreateTransactionParams{
			EnvelopeID:        id,
			Type:              domain.TypeWithdraw,
			AmountCents:       amountCents,
			BalanceAfterCents: e.BalanceCents,
			Note:              note,
		}, now)

		return nil
	})
	if err != nil {
		return domain.Envelope{}, err
	}

	return e, nil
}

// Transfer moves money between two envelopes and records a transfer_out/transfer_in pair.
func (r *RepoJSON) Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	if arg.FromID == arg.ToID {
		return domain.TransferResult{}, domain.ErrSameEnvelope
	}

	if arg.AmountCents <= 0 {
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	result := domain.TransferResult{AmountCents: arg.AmountCents}

	err := r.update(ctx, func(doc *document, now time.Time) error {
		fi, ti := doc.indexOf(arg.FromID), doc.indexOf(arg.ToID)
		if fi < 0 || ti < 0 {
			return domain.ErrEnvelopeNotFound
		}

		from, to := &doc.Envelopes[fi], &doc.Envelopes[ti]

		if from.BalanceCents < arg.AmountCents {
			return domain.ErrInsufficientFunds
		}

		if arg.AmountCents > math.MaxInt64-to.BalanceCents {
			return domain.ErrInvalidAmount
		}

		from.BalanceCents -= arg.AmountCents
		to.BalanceCents += arg.AmountCents
		from.UpdatedAt, to.UpdatedAt = now, now

		outNote, inNote := domain.TransferOutNote(to.ID), domain.TransferInNote(from.ID)
		if arg.Note != "" {
			outNote, inNote = arg.Note, arg.Note
		}

		result.From, result.To = *from, *to

		result.FromTransaction = doc.appendTransaction(domain.CreateTransactionParams{
			EnvelopeID:        from.ID,
			Type:              domain.TypeTransferOut,
			AmountCents:       arg.AmountCents,
			BalanceAfterCents: from.BalanceCents,
			Note:              outNote,
		}, now)

		result.ToTransaction = doc.appendTransaction(domain.CreateTransactionParams{
			EnvelopeID:        to.ID,
			Type:              domain.TypeTransferIn,
			AmountCents:       arg.AmountCents,
			BalanceAfterCents: to.BalanceCents,
			Note:              inNote,
		}, now)

		return nil
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	return result, nil
}

// ListTransactions returns the ledger of the envelope, newest first.
func (r *RepoJSON) ListTransactions(ctx context.Context, envelopeID int64) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state.indexOf(envelopeID) < 0 {
		return nil, domain.ErrEnvelopeNotFound
	}

	items := []domain.Transaction{}

	for _, t := range r.state.Transactions {
		if t.EnvelopeID == envelopeID {
			items = append(items, t)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}

		return items[i].ID > items[j].ID
	})

	return items, nil
}
