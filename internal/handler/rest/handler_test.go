package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/limits"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/storage/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.MemoryLedgerStore
}

func newTestServer(t *testing.T) *testServer {
	store := memory.NewMemoryLedgerStore()
	ctx := context.Background()
	for i, currency := range models.Currencies() {
		require.NoError(t, store.CreateAccount(ctx, &models.Account{
			ID:            uuid.NewString(),
			AccountNumber: "900000000" + string(rune('1'+i)),
			Balance:       decimal.Zero,
			Currency:      currency,
			Tier:          models.Tier3,
			Type:          models.AccountTypeSystem,
		}))
	}

	logger, _ := test.NewNullLogger()
	l, err := ledger.NewLedger(ledger.Deps{
		Tx:           store,
		Accounts:     ledger.NewAccountLedger(store),
		Recorder:     ledger.NewRecorder(store, nil),
		Journal:      ledger.NewJournalComposer(store, nil),
		Policy:       limits.MustDefaultPolicy(),
		Transactions: store,
		Journals:     store,
	}, ledger.WithLogger(logger))
	require.NoError(t, err)

	return &testServer{
		t:       t,
		handler: NewHandler(l, WithLogger(logger)).Routes(),
		store:   store,
	}
}

func (s *testServer) account(number string, currency models.Currency, balance string) *models.Account {
	acc := &models.Account{
		ID:            uuid.NewString(),
		AccountNumber: number,
		Balance:       decimal.RequireFromString(balance),
		Currency:      currency,
		Tier:          models.Tier1,
		Type:          models.AccountTypeSavings,
	}
	require.NoError(s.t, s.store.CreateAccount(context.Background(), acc))
	return acc
}

func (s *testServer) do(method, path, body string, headers map[string]string) (int, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(s.t, "application/json", rec.Header().Get("Content-Type"))
	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHandler_Health(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestHandler_Deposit(t *testing.T) {
	s := newTestServer(t)
	s.account("0000000001", models.NGN, "0")
	headers := map[string]string{"Idempotency-Key": "dep-1"}
	body := `{"amount": "100.50", "currency": "NGN", "description": "salary"}`

	status, env := s.do(http.MethodPost, "/accounts/0000000001/deposits", body, headers)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)

	var receipt receiptView
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, "deposit", receipt.Kind)
	assert.False(t, receipt.Replayed)
	require.Len(t, receipt.Transactions, 1)
	assert.Equal(t, "100.5", receipt.Transactions[0].Amount.String())
	assert.Equal(t, "credit", receipt.Transactions[0].Direction)
	assert.Len(t, receipt.Journals, 1)

	status, env = s.do(http.MethodPost, "/accounts/0000000001/deposits", body, headers)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.True(t, receipt.Replayed)

	status, _ = s.do(http.MethodPost, "/accounts/0000000001/withdrawals", `{"amount": 1, "currency": "NGN"}`, headers)
	assert.Equal(t, http.StatusConflict, status)
}

func TestHandler_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	s.account("0000000001", models.USD, "100")
	s.account("0000000002", models.USD, "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed body", http.MethodPost, "/accounts/0000000001/deposits", `{"amount":`, http.StatusBadRequest},
		{"non-positive amount", http.MethodPost, "/accounts/0000000001/deposits", `{"amount": "0", "currency": "USD"}`, http.StatusBadRequest},
		{"unknown currency", http.MethodPost, "/accounts/0000000001/deposits", `{"amount": "1", "currency": "EUR"}`, http.StatusBadRequest},
		{"description too long", http.MethodPost, "/accounts/0000000001/deposits", `{"amount": "1", "currency": "USD", "description": "` + strings.Repeat("x", 256) + `"}`, http.StatusBadRequest},
		{"unknown account", http.MethodPost, "/accounts/404/deposits", `{"amount": "1", "currency": "USD"}`, http.StatusNotFound},
		{"insufficient funds", http.MethodPost, "/accounts/0000000001/withdrawals", `{"amount": "150", "currency": "USD"}`, http.StatusForbidden},
		{"currency mismatch", http.MethodPost, "/accounts/0000000001/withdrawals", `{"amount": "1", "currency": "NGN"}`, http.StatusForbidden},
		{"transfer without destination", http.MethodPost, "/transfers", `{"fromAccountNumber": "0000000001", "amount": "1", "currency": "USD"}`, http.StatusBadRequest},
		{"transfer to self", http.MethodPost, "/transfers", `{"fromAccountNumber": "0000000001", "toAccountNumber": "0000000001", "amount": "1", "currency": "USD"}`, http.StatusBadRequest},
		{"bad start date", http.MethodGet, "/accounts/0000000001/transactions?startDate=01-02-2026", "", http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/accounts/0000000001/transactions/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestHandler_TransferHistoryDetailsAndReconciliation(t *testing.T) {
	s := newTestServer(t)
	s.account("0000000001", models.USD, "0")
	s.account("0000000002", models.USD, "0")

	status, _ := s.do(http.MethodPost, "/accounts/0000000001/deposits", `{"amount": 300, "currency": "USD"}`, nil)
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(http.MethodPost, "/transfers",
		`{"fromAccountNumber": "0000000001", "toAccountNumber": "0000000002", "amount": "120", "currency": "USD", "description": "rent"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	var receipt receiptView
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	require.Len(t, receipt.Transactions, 2)
	assert.Len(t, receipt.Journals, 2)

	today := time.Now().UTC().Format(dateLayout)
	status, env = s.do(http.MethodGet, "/accounts/0000000001/transactions?startDate="+today+"&endDate="+today, "", nil)
	require.Equal(t, http.StatusOK, status)
	var rows []transactionView
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "deposit", rows[0].Kind)
	assert.Equal(t, "transfer", rows[1].Kind)

	status, env = s.do(http.MethodGet, "/accounts/0000000001/transactions?endDate=2000-01-01", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	assert.Empty(t, rows)

	status, env = s.do(http.MethodGet, "/accounts/0000000002/transactions/"+receipt.Transactions[1].ID, "", nil)
	require.Equal(t, http.StatusOK, status)
	var details transactionView
	require.NoError(t, json.Unmarshal(env.Data, &details))
	assert.Equal(t, "rent", details.Description)

	status, _ = s.do(http.MethodGet, "/accounts/0000000001/transactions/"+receipt.Transactions[1].ID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.do(http.MethodGet, "/accounts/0000000001/reconciliation", "", nil)
	require.Equal(t, http.StatusOK, status)
	var rec reconciliationView
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.True(t, rec.Balanced)
	assert.Equal(t, "180", rec.Balance.String())
}

type brokenService struct {
	LedgerService
}

func (brokenService) Reconcile(ctx context.Context, accountNumber string) (*models.Reconciliation, error) {
	return nil, stderrors.New("connection refused")
}

func TestHandler_InternalErrorsAreNotLeaked(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := NewHandler(brokenService{}, WithLogger(logger)).Routes()

	req := httptest.NewRequest(http.MethodGet, "/accounts/1/reconciliation", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Internal Server Error", env.Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "request failed" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestHandler_CORS(t *testing.T) {
	handler := NewHandler(brokenService{}, WithAllowedOrigins("https://bank.example")).Routes()

	tests := []struct {
		origin string
		want   string
	}{
		{"https://bank.example", "https://bank.example"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
