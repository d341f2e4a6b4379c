// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/internal/envelopeservice"
)

// Repo provides data access layer interface needed by transfer service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package transferservice
type Repo interface {
	Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error)
}

// Service facilitates transfer service layer logic.
type Service struct {
	repo  Repo
	cache envelopeservice.Cache
}

// New return transfer service struct to manage transfer bussines logic.
func New(tr Repo, c envelopeservice.Cache) *Service {
	return &Service{
		repo:  tr,
		cache: c,
	}
}

func validRequest(arg domain.CreateTransferParams) error {
	if arg.FromID == arg.ToID {
		return domain.ErrSameEnvelope
	}

	if arg.AmountCents <= 0 {
		return domain.ErrInvalidAmount
	}

	return nil
}

// Transfer checks if transfer request is valid and then executes transfer.
func (s *Service) Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error) {
	l := zerolog.Ctx(ctx)

	if err := validRequest(arg); err != nil {
		l.Info().Err(err).Send()
		return domain.TransferResult{}, err
	}

	arg.Note = strings.TrimSpace(arg.Note)

	result, err := s.repo.Transfer(ctx, arg)
	if err != nil {
		return result, err
	}

	s.cache.Delete(ctx, envelopeservice.CacheKey(arg.FromID), envelopeservice.CacheKey(arg.ToID))

	return result, nil
}
