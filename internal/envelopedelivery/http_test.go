package envelopedelivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-budget/internal/domain"
	"github.com/go-petr/pet-budget/pkg/errorspkg"
	"github.com/go-petr/pet-budget/pkg/randompkg"
	"github.com/go-petr/pet-budget/pkg/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := RegisterValidators(v); err != nil {
			panic(err)
		}
	}

	os.Exit(m.Run())
}

func randomEnvelope() domain.Envelope {
	now := time.Now().Truncate(time.Second).UTC()

	return domain.Envelope{
		ID:           randompkg.IntBetween(1, 100),
		Name:         randompkg.EnvelopeName(),
		BalanceCents: randompkg.Cents(1_000, 100_000),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func setupRouter(service Service) *gin.Engine {
	h := NewHandler(service)

	r := gin.New()

	g := r.Group("/envelopes")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/transactions", h.CreateTransaction)
	g.GET("/:id/transactions", h.ListTransactions)

	return r
}

func doRequest(t *testing.T, r http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)

	return recorder
}

func requireErrorBody(t *testing.T, recorder *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	require.Equal(t, status, recorder.Code)

	var res web.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
	require.NotNil(t, res.Error)
	require.Equal(t, status, res.Error.Status)
	require.Equal(t, message, res.Error.Message)
}

func TestListAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e1 := domain.Envelope{ID: 1, Name: "Rent", BalanceCents: 100000}
	e2 := domain.Envelope{ID: 2, Name: "Groceries", BalanceCents: 30055}

	service := NewMockService(ctrl)
	service.EXPECT().List(gomock.Any()).Times(1).Return([]domain.Envelope{e1, e2}, nil)

	recorder := doRequest(t, setupRouter(service), http.MethodGet, "/envelopes", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var res struct {
		Data []struct {
			ID      int64   `json:"id"`
			Name    string  `json:"name"`
			Balance float64 `json:"balance"`
		} `json:"data"`
		Count        int     `json:"count"`
		TotalBalance float64 `json:"totalBalance"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
	require.Equal(t, 2, res.Count)
	require.Equal(t, 1300.55, res.TotalBalance)
	require.Equal(t, "Groceries", res.Data[1].Name)
	require.Equal(t, 300.55, res.Data[1].Balance)
	require.Contains(t, recorder.Body.String(), `"balance":1000.00`)
}

func TestListAPIEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	service.EXPECT().List(gomock.Any()).Times(1).Return([]domain.Envelope{}, nil)

	recorder := doRequest(t, setupRouter(service), http.MethodGet, "/envelopes", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"data":[],"count":0,"totalBalance":0.00}`, recorder.Body.String())
}

func TestGetAPI(t *testing.T) {
	testEnvelope := randomEnvelope()

	testCases := []struct {
		name          string
		url           string
		buildStubs    func(service *MockService)
		checkResponse func(recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			url:  "/envelopes/" + strconv.FormatInt(testEnvelope.ID, 10),
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Eq(testEnvelope.ID)).Times(1).Return(testEnvelope, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)

				var res struct {
					Data EnvelopeResponse `json:"data"`
				}

				require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
				require.Equal(t, NewEnvelopeResponse(testEnvelope), res.Data)
			},
		},
		{
			name: "NotFound",
			url:  "/envelopes/999",
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Eq(int64(999))).Times(1).Return(domain.Envelope{}, domain.ErrEnvelopeNotFound)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusNotFound, domain.ErrEnvelopeNotFound.Error())
			},
		},
		{
			name: "InvalidID",
			url:  "/envelopes/abc",
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, ErrInvalidID.Error())
			},
		},
		{
			name: "ZeroID",
			url:  "/envelopes/0",
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
			},
		},
		{
			name: "InternalError",
			url:  "/envelopes/1",
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Any()).Times(1).Return(domain.Envelope{}, errorspkg.ErrInternal)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusInternalServerError, errorspkg.ErrInternal.Error())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder := doRequest(t, setupRouter(service), http.MethodGet, tc.url, "")
			tc.checkResponse(recorder)
		})
	}
}

func TestCreateAPI(t *testing.T) {
	testEnvelope := randomEnvelope()
	testEnvelope.Name = "Scuba"
	testEnvelope.BalanceCents = 30000

	testCases := []struct {
		name          string
		body          string
		buildStubs    func(service *MockService)
		checkResponse func(recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: `{"name":"Scuba","balance":300}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), "Scuba", int64(30000)).Times(1).Return(testEnvelope, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, recorder.Code)
				require.Contains(t, recorder.Body.String(), `"balance":300.00`)
			},
		},
		{
			name: "Aliases",
			body: `{"title":"Scuba","budget":"300.004"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), "Scuba", int64(30000)).Times(1).Return(testEnvelope, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, recorder.Code)
			},
		},
		{
			name: "MissingName",
			body: `{"balance":300}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidName.Error())
			},
		},
		{
			name: "BlankName",
			body: `{"name":"   ","balance":300}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

				var res web.Response
				require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
				require.Equal(t, "name must be a non-empty string up to 50 characters", res.Error.Message)
				require.NotEmpty(t, res.Error.Details)
			},
		},
		{
			name: "NameNotString",
			body: `{"name":42,"balance":300}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidName.Error())
			},
		},
		{
			name: "MissingBalance",
			body: `{"name":"Scuba"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidBalance.Error())
			},
		},
		{
			name: "NonNumericBalance",
			body: `{"name":"Scuba","balance":"lots"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidBalance.Error())
			},
		},
		{
			name: "NegativeBalance",
			body: `{"name":"Scuba","balance":-1}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), "Scuba", int64(-100)).
					Times(1).
					Return(domain.Envelope{}, domain.ErrInvalidBalance)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidBalance.Error())
			},
		},
		{
			name: "NotAnObject",
			body: `[1,2]`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, errorspkg.ErrInvalidBody.Error())
			},
		},
		{
			name: "MalformedJSON",
			body: `{"name":`,
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, errorspkg.ErrInvalidBody.Error())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder := doRequest(t, setupRouter(service), http.MethodPost, "/envelopes", tc.body)
			tc.checkResponse(recorder)
		})
	}
}

func TestReplaceAPI(t *testing.T) {
	testEnvelope := randomEnvelope()
	url := "/envelopes/" + strconv.FormatInt(testEnvelope.ID, 10)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	router := setupRouter(service)

	name := "Travel"
	balance := int64(12345)

	service.EXPECT().
		Update(gomock.Any(), testEnvelope.ID, gomock.Eq(domain.UpdateEnvelopeParams{Name: &name, BalanceCents: &balance})).
		Times(1).
		Return(testEnvelope, nil)

	recorder := doRequest(t, router, http.MethodPut, url, `{"name":"Travel","balance":123.45}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, router, http.MethodPut, url, `{"name":"Travel"}`)
	requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidBalance.Error())

	recorder = doRequest(t, router, http.MethodPut, url, `{"balance":10}`)
	requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidName.Error())

	service.EXPECT().
		Update(gomock.Any(), int64(999), gomock.Any()).
		Times(1).
		Return(domain.Envelope{}, domain.ErrEnvelopeNotFound)

	recorder = doRequest(t, router, http.MethodPut, "/envelopes/999", `{"name":"Travel","balance":10}`)
	requireErrorBody(t, recorder, http.StatusNotFound, domain.ErrEnvelopeNotFound.Error())
}

func TestPatchAPI(t *testing.T) {
	testEnvelope := randomEnvelope()
	url := "/envelopes/" + strconv.FormatInt(testEnvelope.ID, 10)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	router := setupRouter(service)

	balance := int64(5000)

	service.EXPECT().
		Update(gomock.Any(), testEnvelope.ID, gomock.Eq(domain.UpdateEnvelopeParams{BalanceCents: &balance})).
		Times(1).
		Return(testEnvelope, nil)

	recorder := doRequest(t, router, http.MethodPatch, url, `{"budget":50}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, router, http.MethodPatch, url, `{}`)
	requireErrorBody(t, recorder, http.StatusUnprocessableEntity, ErrEmptyPatch.Error())

	recorder = doRequest(t, router, http.MethodPatch, url, `{"note":"ignored"}`)
	requireErrorBody(t, recorder, http.StatusUnprocessableEntity, ErrEmptyPatch.Error())
}

func TestDeleteAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	router := setupRouter(service)

	service.EXPECT().Delete(gomock.Any(), int64(3)).Times(1).Return(nil)

	recorder := doRequest(t, router, http.MethodDelete, "/envelopes/3", "")
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Empty(t, recorder.Body.String())

	service.EXPECT().Delete(gomock.Any(), int64(3)).Times(1).Return(domain.ErrEnvelopeNotFound)

	recorder = doRequest(t, router, http.MethodDelete, "/envelopes/3", "")
	requireErrorBody(t, recorder, http.StatusNotFound, domain.ErrEnvelopeNotFound.Error())
}

func TestCreateTransactionAPI(t *testing.T) {
	testEnvelope := randomEnvelope()
	url := "/envelopes/" + strconv.FormatInt(testEnvelope.ID, 10) + "/transactions"

	testCases := []struct {
		name          string
		body          string
		buildStubs    func(service *MockService)
		checkResponse func(recorder *httptest.ResponseRecorder)
	}{
		{
			name: "Deposit",
			body: `{"type":"deposit","amount":25.5,"note":"gift"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					AddTransaction(gomock.Any(), testEnvelope.ID, domain.TypeDeposit, int64(2550), "gift").
					Times(1).
					Return(testEnvelope, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, recorder.Code)
			},
		},
		{
			name: "Withdraw",
			body: `{"type":"withdraw","amount":"10"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					AddTransaction(gomock.Any(), testEnvelope.ID, domain.TypeWithdraw, int64(1000), "").
					Times(1).
					Return(testEnvelope, nil)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusCreated, recorder.Code)
			},
		},
		{
			name: "InsufficientFunds",
			body: `{"type":"withdraw","amount":1000000}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Envelope{}, domain.ErrInsufficientFunds)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusConflict, domain.ErrInsufficientFunds.Error())
			},
		},
		{
			name: "NotFound",
			body: `{"type":"deposit","amount":1}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Envelope{}, domain.ErrEnvelopeNotFound)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusNotFound, recorder.Code)
			},
		},
		{
			name: "InvalidType",
			body: `{"type":"refund","amount":1}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, "type must be deposit or withdraw")
			},
		},
		{
			name: "MissingType",
			body: `{"amount":1}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, "type must be deposit or withdraw")
			},
		},
		{
			name: "ZeroAmount",
			body: `{"type":"deposit","amount":0}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidAmount.Error())
			},
		},
		{
			name: "RoundsToZero",
			body: `{"type":"deposit","amount":0.004}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidAmount.Error())
			},
		},
		{
			name: "NonNumericAmount",
			body: `{"type":"deposit","amount":"abc"}`,
			buildStubs: func(service *MockService) {
				service.EXPECT().AddTransaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(recorder *httptest.ResponseRecorder) {
				requireErrorBody(t, recorder, http.StatusUnprocessableEntity, domain.ErrInvalidAmount.Error())
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder := doRequest(t, setupRouter(service), http.MethodPost, url, tc.body)
			tc.checkResponse(recorder)
		})
	}
}

func TestListTransactionsAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	router := setupRouter(service)

	now := time.Now().Truncate(time.Second).UTC()
	txs := []domain.Transaction{
		{ID: 2, EnvelopeID: 1, Type: domain.TypeWithdraw, AmountCents: 500, BalanceAfterCents: 1500, Note: domain.NoteWithdrawal, CreatedAt: now},
		{ID: 1, EnvelopeID: 1, Type: domain.TypeDeposit, AmountCents: 1000, BalanceAfterCents: 2000, Note: domain.NoteDeposit, CreatedAt: now},
	}

	service.EXPECT().ListTransactions(gomock.Any(), int64(1)).Times(1).Return(txs, nil)

	recorder := doRequest(t, router, http.MethodGet, "/envelopes/1/transactions", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var res struct {
		Data []struct {
			ID           int64   `json:"id"`
			Type         string  `json:"type"`
			Amount       float64 `json:"amount"`
			BalanceAfter float64 `json:"balanceAfter"`
			Note         string  `json:"note"`
		} `json:"data"`
		Count int `json:"count"`
	}

	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
	require.Equal(t, 2, res.Count)
	require.Equal(t, int64(2), res.Data[0].ID)
	require.Equal(t, "withdraw", res.Data[0].Type)
	require.Equal(t, 5.0, res.Data[0].Amount)
	require.Equal(t, 15.0, res.Data[0].BalanceAfter)

	service.EXPECT().ListTransactions(gomock.Any(), int64(9)).Times(1).Return(nil, domain.ErrEnvelopeNotFound)

	recorder = doRequest(t, router, http.MethodGet, "/envelopes/9/transactions", "")
	requireErrorBody(t, recorder, http.StatusNotFound, domain.ErrEnvelopeNotFound.Error())
}
