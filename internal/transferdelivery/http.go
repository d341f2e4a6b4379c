// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/internal/envelopedelivery"
	"github.com/go-petr/pet-budget/pkg/moneypkg"
	"github.com/go-petr/pet-budget/pkg/web"
)

var (
	// ErrInvalidFromID indicates a missing or non-positive source envelope id.
	ErrInvalidFromID = errors.New("fromId must be a positive integer")
	// ErrInvalidToID indicates a missing or non-positive destination envelope id.
	ErrInvalidToID = errors.New("toId must be a positive integer")
	// ErrOriginInsufficientFunds is reported when the source envelope cannot cover the transfer.
	ErrOriginInsufficientFunds = errors.New("Insufficient funds in origin envelope")
)

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferResult, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type request struct {
	FromID int64            `json:"fromId" binding:"gt=0"`
	ToID   int64            `json:"toId" binding:"gt=0"`
	Amount *moneypkg.Amount `json:"amount"`
	Note   string           `json:"note"`
}

var fieldErrs = map[string]error{
	"fromId": ErrInvalidFromID,
	"toId":   ErrInvalidToID,
	"amount": domain.ErrInvalidAmount,
}

type data struct {
	From   envelopedelivery.EnvelopeResponse `json:"from"`
	To     envelopedelivery.EnvelopeResponse `json:"to"`
	Amount moneypkg.Amount                   `json:"amount"`
}

type response struct {
	Data data `json:"data"`
}

// Create handles http request to create a transfer between two envelopes.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req request
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()

		if errors.Is(err, moneypkg.ErrInvalidAmount) {
			web.AbortValidation(gctx, domain.ErrInvalidAmount, nil)
			return
		}

		web.AbortBind(gctx, err, fieldErrs)

		return
	}

	if req.Amount == nil || *req.Amount <= 0 {
		web.AbortValidation(gctx, domain.ErrInvalidAmount, nil)
		return
	}

	arg := domain.CreateTransferParams{
		FromID:      req.FromID,
		ToID:        req.ToID,
		AmountCents: int64(*req.Amount),
		Note:        req.Note,
	}

	result, err := h.service.Transfer(ctx, arg)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEnvelopeNotFound):
			l.Info().Err(err).Send()
			web.Abort(gctx, http.StatusNotFound, err)
		case errors.Is(err, domain.ErrSameEnvelope):
			l.Info().Err(err).Send()
			web.Abort(gctx, http.StatusConflict, err)
		case errors.Is(err, domain.ErrInsufficientFunds):
			l.Info().Err(err).Send()
			web.Abort(gctx, http.StatusConflict, ErrOriginInsufficientFunds)
		case errors.Is(err, domain.ErrInvalidAmount):
			l.Info().Err(err).Send()
			web.AbortValidation(gctx, err, nil)
		default:
			l.Error().Err(err).Send()
			web.AbortInternal(gctx, err)
		}

		return
	}

	res := response{
		Data: data{
			From:   envelopedelivery.NewEnvelopeResponse(result.From),
			To:     envelopedelivery.NewEnvelopeResponse(result.To),
			Amount: moneypkg.Amount(result.AmountCents),
		},
	}

	gctx.JSON(http.StatusCreated, res)
}
