// Package envelopeservice manages business logic layer of envelopes.
package envelopeservice

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
)

// Repo is the capability set shared by every envelope store backend.
//
//go:generate mockgen -source service.go -destination service_mock.go -package envelopeservice
type Repo interface {
	List(ctx context.Context) ([]domain.Envelope, error)
	Get(ctx context.Context, id int64) (domain.Envelope, error)
	Create(ctx context.Context, name string, balanceCents int64) (domain.Envelope, error)
	Update(ctx context.Context, id int64, arg domain.UpdateEnvelopeParams) (domain.Envelope, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Deposit(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error)
	Withdraw(ctx context.Context, id, amountCents int64, note string) (domain.Envelope, error)
	Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error)
	ListTransactions(ctx context.Context, envelopeID int64) ([]domain.Transaction, error)
	Close() error
}

// Cache keeps envelope views between reads.
//
// Get reports the key version it observed. Set with that version must not store the
// value if the key was deleted in between.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.Envelope, uint64, bool)
	Set(ctx context.Context, key string, value *domain.Envelope, version uint64)
	Delete(ctx context.Context, keys ...string)
}

const cacheKeyPrefix = "envelope:view:"

// CacheKey returns the cache key of the envelope view.
func CacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

// Service facilitates envelope service layer logic.
type Service struct {
	repo  Repo
	cache Cache
}

// New returns envelope service struct to manage envelope business logic.
func New(er Repo, c Cache) *Service {
	return &Service{
		repo:  er,
		cache: c,
	}
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, CacheKey(id))
	}

	s.cache.Delete(ctx, keys...)
}

// List returns all envelopes ordered by id.
func (s *Service) List(ctx context.Context) ([]domain.Envelope, error) {
	return s.repo.List(ctx)
}

// Get returns the envelope, reading through the cache.
func (s *Service) Get(ctx context.Context, id int64) (domain.Envelope, error) {
	key := CacheKey(id)

	cached, version, ok := s.cache.Get(ctx, key)
	if ok {
		return *cached, nil
	}

	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return e, err
	}

	s.cache.Set(ctx, key, &e, version)

	return e, nil
}

// Create trims the name, checks the opening balance and stores the envelope.
func (s *Service) Create(ctx context.Context, name string, balanceCents int64) (domain.Envelope, error) {
	l := zerolog.Ctx(ctx)

	name, err := domain.NormalizeName(name)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.Envelope{}, err
	}

	if balanceCents < 0 {
		return domain.Envelope{}, domain.ErrInvalidBalance
	}

	return s.repo.Create(ctx, name, balanceCents)
}

// Update changes the provided fields of the envelope.
func (s *Service) Update(ctx context.Context, id int64, arg domain.UpdateEnvelopeParams) (domain.Envelope, error) {
	if arg.Name != nil {
		name, err := domain.NormalizeName(*arg.Name)
		if err != nil {
			return domain.Envelope{}, err
		}

		arg.Name = &name
	}

	if arg.BalanceCents != nil && *arg.BalanceCents < 0 {
		return domain.Envelope{}, domain.ErrInvalidBalance
	}

	e, err := s.repo.Update(ctx, id, arg)
	if err != nil {
		return e, err
	}

	s.invalidate(ctx, id)

	return e, nil
}

// Delete removes the envelope and its ledger.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)

	if !deleted {
		return domain.ErrEnvelopeNotFound
	}

	return nil
}

// AddTransaction applies a deposit or withdraw to the envelope and returns it updated.
func (s *Service) AddTransaction(ctx context.Context, id int64, typ domain.TransactionType, amountCents int64, note string) (domain.Envelope, error) {
	if amountCents <= 0 {
		return domain.Envelope{}, domain.ErrInvalidAmount
	}

	note = strings.TrimSpace(note)

	var (
		e   domain.Envelope
		err error
	)

	switch typ {
	case domain.TypeDeposit:
		e, err = s.repo.Deposit(ctx, id, amountCents, note)
	case domain.TypeWithdraw:
		e, err = s.repo.Withdraw(ctx, id, amountCents, note)
	default:
		return domain.Envelope{}, domain.ErrInvalidTransactionType
	}

	if err != nil {
		return e, err
	}

	s.invalidate(ctx, id)

	return e, nil
}

// ListTransactions returns the ledger of the envelope, newest first.
func (s *Service) ListTransactions(ctx context.Context, id int64) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, id)
}
