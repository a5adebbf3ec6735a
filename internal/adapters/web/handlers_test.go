package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"erp-ledger/internal/app"
	"erp-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
)

const testSecret = "test-secret"

var testOrg = uuid.MustParse("0b6c3f52-8a53-4c1e-9f4e-2f1d8c7e5a10")

// fakeService implements the handful of ApplicationService methods the tests
// reach; calling anything else panics through the nil embedded interface.
type fakeService struct {
	app.ApplicationService

	org    uuid.UUID
	actor  string
	err    error
	next   core.PurchaseOrderStatus
	create app.CreateInvoiceRequest
	panics bool
}

func (f *fakeService) CreateInvoice(_ context.Context, org uuid.UUID, req app.CreateInvoiceRequest) (*core.Invoice, error) {
	f.org, f.create = org, req
	if f.err != nil {
		return nil, f.err
	}
	return &core.Invoice{ID: 7, OrgID: org, CustomerID: req.CustomerID, Status: core.StatusDraft}, nil
}

func (f *fakeService) GetInvoice(_ context.Context, org uuid.UUID, id int) (*core.Invoice, error) {
	if f.panics {
		panic("boom")
	}
	f.org = org
	if f.err != nil {
		return nil, f.err
	}
	return &core.Invoice{ID: id, OrgID: org}, nil
}

func (f *fakeService) TransferStock(_ context.Context, org uuid.UUID, actor string, _ app.TransferRequest) error {
	f.org, f.actor = org, actor
	return f.err
}

func (f *fakeService) RegisterPayment(_ context.Context, org uuid.UUID, invoiceID int, req app.PaymentRequest) (*core.Payment, error) {
	f.org = org
	if f.err != nil {
		return nil, f.err
	}
	return &core.Payment{ID: 1, DocumentID: invoiceID, Amount: req.Amount}, nil
}

func (f *fakeService) TransitionPurchaseOrder(_ context.Context, org uuid.UUID, id int, next core.PurchaseOrderStatus) (*core.PurchaseOrder, error) {
	f.org, f.next = org, next
	return &core.PurchaseOrder{ID: id, OrgID: org, Status: next}, nil
}

func (f *fakeService) ListStockMoves(_ context.Context, org uuid.UUID, productID int) (*app.StockMoveListResult, error) {
	f.org = org
	return &app.StockMoveListResult{ProductID: productID, Moves: []core.StockMove{}}, nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestHandler(svc app.ApplicationService, opts Options) http.Handler {
	opts.JWTSecret = testSecret
	opts.Logger = quietLogger()
	return NewHandler(svc, opts)
}

func bearer(t *testing.T, org uuid.UUID, actor string) string {
	t.Helper()
	tok, err := SignToken(testSecret, org, actor, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, body, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestEventSchema(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/events/schema", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var schemas map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schemas))
	assert.Contains(t, schemas, core.EventInvoicePaid)
}

func TestRequireAuth(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{})

	otherSecret, err := SignToken("another-secret", testOrg, "ana", time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(testSecret, testOrg, "ana", -time.Minute)
	require.NoError(t, err)
	noOrg, err := SignToken(testSecret, uuid.Nil, "ana", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"not bearer", "Basic YWxhZGRpbjpvcGVuc2VzYW1l"},
		{"wrong secret", "Bearer " + otherSecret},
		{"expired", "Bearer " + expired},
		{"nil organization", "Bearer " + noOrg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/invoices/1", "", tt.auth)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Code)
		})
	}
}

func TestCreateInvoice_UsesTokenOrganization(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/invoices",
		`{"customer_id": 3, "lines": [{"product_id": 1, "qty": "2"}]}`, bearer(t, testOrg, "ana"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, testOrg, svc.org)
	assert.Equal(t, 3, svc.create.CustomerID)
	require.Len(t, svc.create.Lines, 1)
	assert.True(t, svc.create.Lines[0].Qty.Equal(decimal.NewFromInt(2)))

	var inv core.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, 7, inv.ID)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("customer_id is required: %w", core.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{fmt.Errorf("invoice 9: %w", core.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("product 1: %w", core.ErrInsufficientStock), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{fmt.Errorf("invoice 9: %w", core.ErrOverpayment), http.StatusConflict, "OVERPAYMENT"},
		{errors.New("connection reset by peer"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := newTestHandler(&fakeService{err: tt.err}, Options{})
			rec := do(t, h, http.MethodPost, "/api/invoices/9/payments", `{"amount": "10"}`, bearer(t, testOrg, "ana"))
			require.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "connection reset")
			}
		})
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{})
	auth := bearer(t, testOrg, "ana")

	rec := do(t, h, http.MethodGet, "/api/invoices/abc", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/invoices", `{"customer_id":`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/stock/moves", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := `{"notes": "` + strings.Repeat("x", 2<<20) + `"}`
	rec = do(t, h, http.MethodPost, "/api/invoices", big, auth)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTransferStock_PassesActor(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/stock/transfer",
		`{"product_id": 1, "from_warehouse_id": 1, "to_warehouse_id": 2, "qty": "5"}`, bearer(t, testOrg, "warehouse-bot"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testOrg, svc.org)
	assert.Equal(t, "warehouse-bot", svc.actor)
}

func TestStockMoves_QueryParameter(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{})
	rec := do(t, h, http.MethodGet, "/api/stock/moves?product_id=12", "", bearer(t, testOrg, "ana"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"product_id": 12, "moves": []}`, rec.Body.String())
}

func TestPurchaseOrderActionRoutes(t *testing.T) {
	routes := map[string]core.PurchaseOrderStatus{
		"send":               core.POSent,
		"partially-received": core.POPartiallyReceived,
		"received":           core.POReceived,
		"cancel":             core.POCancelled,
	}
	for action, want := range routes {
		t.Run(action, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestHandler(svc, Options{})
			rec := do(t, h, http.MethodPost, "/api/purchase-orders/4/"+action, "", bearer(t, testOrg, "ana"))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, want, svc.next)
		})
	}
}

func TestRateLimitPerOrganization(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{RateLimit: limiter.Rate{Period: time.Minute, Limit: 2}})
	orgA := bearer(t, testOrg, "ana")
	orgB := bearer(t, uuid.New(), "bob")

	for range 2 {
		rec := do(t, h, http.MethodGet, "/api/invoices/1", "", orgA)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/invoices/1", "", orgA)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/api/invoices/1", "", orgB)
	assert.Equal(t, http.StatusOK, rec.Code, "other tenants keep their own budget")
}

func TestRecovererReturns500(t *testing.T) {
	h := newTestHandler(&fakeService{panics: true}, Options{})
	rec := do(t, h, http.MethodGet, "/api/invoices/1", "", bearer(t, testOrg, "ana"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(&fakeService{}, Options{AllowedOrigins: []string{"https://erp.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil)
	req.Header.Set("Origin", "https://erp.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://erp.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
