// Package rest exposes the ledger over HTTP
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/errs"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-engine/internal/models"
)

const (
	dateLayout           = "2006-01-02"
	maxDescriptionLength = 255
	idempotencyKeyHeader = "Idempotency-Key"
)

// LedgerService is what the handlers need from the orchestrator
type LedgerService interface {
	Deposit(ctx context.Context, req ledger.DepositRequest) (*models.Receipt, error)
	Withdraw(ctx context.Context, req ledger.WithdrawalRequest) (*models.Receipt, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (*models.Receipt, error)
	TransactionHistory(ctx context.Context, accountNumber string, from, to time.Time) ([]models.Transaction, error)
	TransactionDetails(ctx context.Context, accountNumber, transactionID string) (*models.Transaction, error)
	Reconcile(ctx context.Context, accountNumber string) (*models.Reconciliation, error)
}

type Handler struct {
	svc     LedgerService
	log     logrus.FieldLogger
	loc     *time.Location
	origins []string
}

type HandlerOpt func(h *Handler)

func WithLogger(logger logrus.FieldLogger) HandlerOpt {
	return func(h *Handler) { h.log = logger }
}

// WithLocation sets the time zone startDate and endDate are read in
func WithLocation(loc *time.Location) HandlerOpt {
	return func(h *Handler) { h.loc = loc }
}

// WithAllowedOrigins sets the CORS origins. Every origin is allowed by default.
func WithAllowedOrigins(origins ...string) HandlerOpt {
	return func(h *Handler) { h.origins = origins }
}

func NewHandler(svc LedgerService, opts ...HandlerOpt) *Handler {
	h := &Handler{svc: svc, log: logrus.StandardLogger(), loc: time.UTC, origins: []string{"*"}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router with its middleware stack
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Post("/transfers", h.transfer)
	r.Route("/accounts/{accountNumber}", func(r chi.Router) {
		r.Post("/deposits", h.deposit)
		r.Post("/withdrawals", h.withdraw)
		r.Get("/transactions", h.history)
		r.Get("/transactions/{transactionID}", h.details)
		r.Get("/reconciliation", h.reconcile)
	})
	return r
}

type moneyRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

func (m moneyRequest) validate() error {
	if !m.Amount.IsPositive() {
		return errs.Validation("amount must be a positive number")
	}
	if !models.Currency(m.Currency).Valid() {
		return errs.Validation("currency must be one of NGN, USD")
	}
	if len(m.Description) > maxDescriptionLength {
		return errs.Validation("description must be at most %d characters", maxDescriptionLength)
	}
	return nil
}

type transferRequest struct {
	moneyRequest
	FromAccountNumber string `json:"fromAccountNumber"`
	ToAccountNumber   string `json:"toAccountNumber"`
}

func (t transferRequest) validate() error {
	if strings.TrimSpace(t.FromAccountNumber) == "" || strings.TrimSpace(t.ToAccountNumber) == "" {
		return errs.Validation("fromAccountNumber and toAccountNumber are required")
	}
	return t.moneyRequest.validate()
}

func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Validation("invalid request body")
	}
	return nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
	}
	respondError(w, err)
}

func (h *Handler) receipt(w http.ResponseWriter, receipt *models.Receipt, message string) {
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	respond(w, status, message, newReceiptView(receipt))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "ok", nil)
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var in moneyRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.svc.Deposit(r.Context(), ledger.DepositRequest{
		AccountNumber:  chi.URLParam(r, "accountNumber"),
		Amount:         in.Amount,
		Currency:       models.Currency(in.Currency),
		Description:    in.Description,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.receipt(w, receipt, "deposit successful")
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var in moneyRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.svc.Withdraw(r.Context(), ledger.WithdrawalRequest{
		AccountNumber:  chi.URLParam(r, "accountNumber"),
		Amount:         in.Amount,
		Currency:       models.Currency(in.Currency),
		Description:    in.Description,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.receipt(w, receipt, "withdrawal successful")
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var in transferRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	receipt, err := h.svc.Transfer(r.Context(), ledger.TransferRequest{
		FromAccountNumber: in.FromAccountNumber,
		ToAccountNumber:   in.ToAccountNumber,
		Amount:            in.Amount,
		Currency:          models.Currency(in.Currency),
		Description:       in.Description,
		IdempotencyKey:    r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.receipt(w, receipt, "transfer successful")
}

// dateRange reads startDate and endDate (YYYY-MM-DD, both inclusive) as the
// half-open range [startDate 00:00, endDate+1 00:00)
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if v := r.URL.Query().Get("startDate"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			return from, to, errs.Validation("startDate must be YYYY-MM-DD")
		}
		from = d
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			return from, to, errs.Validation("endDate must be YYYY-MM-DD")
		}
		to = d.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.svc.TransactionHistory(r.Context(), chi.URLParam(r, "accountNumber"), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "transaction history", newTransactionViews(rows))
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	trx, err := h.svc.TransactionDetails(r.Context(), chi.URLParam(r, "accountNumber"), chi.URLParam(r, "transactionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "transaction details", newTransactionView(*trx))
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Reconcile(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "reconciliation", reconciliationView{
		AccountNumber: result.AccountNumber,
		Balance:       result.Balance,
		Credits:       result.Credits,
		Debits:        result.Debits,
		Net:           result.Net,
		Balanced:      result.Balanced,
	})
}
