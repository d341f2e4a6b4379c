// Package envelopedelivery manages delivery layer of envelopes.
package envelopedelivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/pkg/moneypkg"
	"github.com/go-petr/pet-budget/pkg/web"
)

var (
	// ErrInvalidID indicates a path id that is not a positive integer.
	ErrInvalidID = errors.New("id must be a positive integer")
	// ErrEmptyPatch indicates a partial update without any field.
	ErrEmptyPatch = errors.New("Provide at least one field to update")
)

// Service provides service layer interface needed by envelope delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package envelopedelivery
type Service interface {
	List(ctx context.Context) ([]domain.Envelope, error)
	Get(ctx context.Context, id int64) (domain.Envelope, error)
	Create(ctx context.Context, name string, balanceCents int64) (domain.Envelope, error)
	Update(ctx context.Context, id int64, arg domain.UpdateEnvelopeParams) (domain.Envelope, error)
	Delete(ctx context.Context, id int64) error
	AddTransaction(ctx context.Context, id int64, typ domain.TransactionType, amountCents int64, note string) (domain.Envelope, error)
	ListTransactions(ctx context.Context, id int64) ([]domain.Transaction, error)
}

// Handler facilitates envelope delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns envelope handler.
func NewHandler(es Service) *Handler {
	return &Handler{service: es}
}

// EnvelopeResponse is the API representation of an envelope.
type EnvelopeResponse struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   moneypkg.Amount `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewEnvelopeResponse converts the envelope to its API representation.
func NewEnvelopeResponse(e domain.Envelope) EnvelopeResponse {
	return EnvelopeResponse{
		ID:        e.ID,
		Name:      e.Name,
		Balance:   moneypkg.Amount(e.BalanceCents),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type transactionResponse struct {
	ID           int64                  `json:"id"`
	EnvelopeID   int64                  `json:"envelopeId"`
	Type         domain.TransactionType `json:"type"`
	Amount       moneypkg.Amount        `json:"amount"`
	BalanceAfter moneypkg.Amount        `json:"balanceAfter"`
	Note         string                 `json:"note"`
	CreatedAt    time.Time              `json:"createdAt"`
}

func newTransactionResponse(t domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		EnvelopeID:   t.EnvelopeID,
		Type:         t.Type,
		Amount:       moneypkg.Amount(t.AmountCents),
		BalanceAfter: moneypkg.Amount(t.BalanceAfterCents),
		Note:         t.Note,
		CreatedAt:    t.CreatedAt,
	}
}

type listResponse struct {
	Data         []EnvelopeResponse `json:"data"`
	Count        int                `json:"count"`
	TotalBalance moneypkg.Total     `json:"totalBalance"`
}

type listTransactionsResponse struct {
	Data  []transactionResponse `json:"data"`
	Count int                   `json:"count"`
}

// envelopeRequest accepts title and budget as aliases of name and balance.
type envelopeRequest struct {
	Name    *string          `json:"name" binding:"omitempty,envname"`
	Title   *string          `json:"title" binding:"omitempty,envname"`
	Balance *moneypkg.Amount `json:"balance"`
	Budget  *moneypkg.Amount `json:"budget"`
}

func (r envelopeRequest) name() *string {
	if r.Name != nil {
		return r.Name
	}

	return r.Title
}

func (r envelopeRequest) balance() *int64 {
	b := r.Balance
	if b == nil {
		b = r.Budget
	}

	if b == nil {
		return nil
	}

	cents := int64(*b)

	return &cents
}

var envelopeFieldErrs = map[string]error{
	"name":    domain.ErrInvalidName,
	"title":   domain.ErrInvalidName,
	"balance": domain.ErrInvalidBalance,
	"budget":  domain.ErrInvalidBalance,
}

type transactionRequest struct {
	Type   domain.TransactionType `json:"type" binding:"oneof=deposit withdraw"`
	Amount *moneypkg.Amount       `json:"amount"`
	Note   string                 `json:"note"`
}

var transactionFieldErrs = map[string]error{
	"type":   domain.ErrInvalidTransactionType,
	"amount": domain.ErrInvalidAmount,
}

func parseID(gctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(gctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		web.AbortValidation(gctx, ErrInvalidID, nil)
		return 0, false
	}

	return id, true
}

// bind decodes the body into req. Malformed amounts are reported as amountErr.
func bind(gctx *gin.Context, req any, amountErr error, fieldErrs map[string]error) bool {
	err := gctx.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	if errors.Is(err, moneypkg.ErrInvalidAmount) {
		web.AbortValidation(gctx, amountErr, nil)
		return false
	}

	web.AbortBind(gctx, err, fieldErrs)

	return false
}

func writeError(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	switch {
	case errors.Is(err, domain.ErrEnvelopeNotFound):
		l.Info().Err(err).Send()
		web.Abort(gctx, http.StatusNotFound, err)
	case
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidBalance),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTransactionType):
		l.Info().Err(err).Send()
		web.AbortValidation(gctx, err, nil)
	case errors.Is(err, domain.ErrInsufficientFunds):
		l.Info().Err(err).Send()
		web.Abort(gctx, http.StatusConflict, err)
	default:
		l.Error().Err(err).Send()
		web.AbortInternal(gctx, err)
	}
}

// List handles http request to list all envelopes with their total balance.
func (h *Handler) List(gctx *gin.Context) {
	envelopes, err := h.service.List(gctx.Request.Context())
	if err != nil {
		writeError(gctx, err)
		return
	}

	res := listResponse{
		Data:  make([]EnvelopeResponse, 0, len(envelopes)),
		Count: len(envelopes),
	}

	balances := make([]int64, 0, len(envelopes))

	for _, e := range envelopes {
		res.Data = append(res.Data, NewEnvelopeResponse(e))
		balances = append(balances, e.BalanceCents)
	}

	res.TotalBalance = moneypkg.Sum(balances...)

	gctx.JSON(http.StatusOK, res)
}

// Get handles http request to get an envelope.
func (h *Handler) Get(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	e, err := h.service.Get(gctx.Request.Context(), id)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: NewEnvelopeResponse(e)})
}

// Create handles http request to create an envelope.
func (h *Handler) Create(gctx *gin.Context) {
	var req envelopeRequest
	if !bind(gctx, &req, domain.ErrInvalidBalance, envelopeFieldErrs) {
		return
	}

	name, balance := req.name(), req.balance()

	if name == nil {
		web.AbortValidation(gctx, domain.ErrInvalidName, nil)
		return
	}

	if balance == nil {
		web.AbortValidation(gctx, domain.ErrInvalidBalance, nil)
		return
	}

	e, err := h.service.Create(gctx.Request.Context(), *name, *balance)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: NewEnvelopeResponse(e)})
}

// Replace handles http request to overwrite both name and balance of an envelope.
func (h *Handler) Replace(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	var req envelopeRequest
	if !bind(gctx, &req, domain.ErrInvalidBalance, envelopeFieldErrs) {
		return
	}

	arg := domain.UpdateEnvelopeParams{Name: req.name(), BalanceCents: req.balance()}

	if arg.Name == nil {
		web.AbortValidation(gctx, domain.ErrInvalidName, nil)
		return
	}

	if arg.BalanceCents == nil {
		web.AbortValidation(gctx, domain.ErrInvalidBalance, nil)
		return
	}

	e, err := h.service.Update(gctx.Request.Context(), id, arg)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: NewEnvelopeResponse(e)})
}

// Patch handles http request to change some fields of an envelope.
func (h *Handler) Patch(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	var req envelopeRequest
	if !bind(gctx, &req, domain.ErrInvalidBalance, envelopeFieldErrs) {
		return
	}

	arg := domain.UpdateEnvelopeParams{Name: req.name(), BalanceCents: req.balance()}
	if arg.Empty() {
		web.AbortValidation(gctx, ErrEmptyPatch, nil)
		return
	}

	e, err := h.service.Update(gctx.Request.Context(), id, arg)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: NewEnvelopeResponse(e)})
}

// Delete handles http request to delete an envelope with its transactions.
func (h *Handler) Delete(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	if err := h.service.Delete(gctx.Request.Context(), id); err != nil {
		writeError(gctx, err)
		return
	}

	gctx.Status(http.StatusNoContent)
}

// CreateTransaction handles http request to deposit to or withdraw from an envelope.
func (h *Handler) CreateTransaction(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	var req transactionRequest
	if !bind(gctx, &req, domain.ErrInvalidAmount, transactionFieldErrs) {
		return
	}

	if req.Amount == nil || *req.Amount <= 0 {
		web.AbortValidation(gctx, domain.ErrInvalidAmount, nil)
		return
	}

	e, err := h.service.AddTransaction(gctx.Request.Context(), id, req.Type, int64(*req.Amount), req.Note)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: NewEnvelopeResponse(e)})
}

// ListTransactions handles http request to list the ledger of an envelope.
func (h *Handler) ListTransactions(gctx *gin.Context) {
	id, ok := parseID(gctx)
	if !ok {
		return
	}

	txs, err := h.service.ListTransactions(gctx.Request.Context(), id)
	if err != nil {
		writeError(gctx, err)
		return
	}

	res := listTransactionsResponse{
		Data:  make([]transactionResponse, 0, len(txs)),
		Count: len(txs),
	}

	for _, t := range txs {
		res.Data = append(res.Data, newTransactionResponse(t))
	}

	gctx.JSON(http.StatusOK, res)
}
