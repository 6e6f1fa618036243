package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"poshub-api/auth"
	"poshub-api/domain"
	"poshub-api/service"
	"poshub-api/storage"
)

const (
	testSecret = "test-secret"
	testIssuer = "poshub-api"
)

type fakeQueue struct {
	sent []domain.Order
	err  error
}

func (q *fakeQueue) Send(_ context.Context, order domain.Order) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.sent = append(q.sent, order)
	return "msg-1", nil
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.PanicLevel)
	return logger
}

func testVerifier() *auth.Verifier {
	return auth.NewSharedSecretVerifier([]byte(testSecret), testIssuer, "")
}

func signedToken(t *testing.T, scopes any, expiry time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-123",
		"iss": testIssuer,
		"exp": expiry.Unix(),
	}
	if scopes != nil {
		claims["scopes"] = scopes
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func writeToken(t *testing.T) string {
	return signedToken(t, []string{"orders:write"}, time.Now().Add(5*time.Minute))
}

func postOrder(t *testing.T, store *storage.MemoryStore, queue service.Queue, authHeader, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	svc := service.NewOrders(store, queue, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := createOrder(svc, testVerifier(), testLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestCreateOrderSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := &fakeQueue{}

	rec := postOrder(t, store, queue, "Bearer "+writeToken(t), `{"name":"Alice","amount":100,"currency":"USD"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var order domain.Order
	if err := sonic.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if order.ID == "" {
		t.Fatalf("expected generated id")
	}
	if order.CreatedBy != "user-123" {
		t.Fatalf("expected createdBy from token subject, got %q", order.CreatedBy)
	}
	if order.Name != "Alice" || order.Amount != 100 || order.Currency != "USD" {
		t.Fatalf("unexpected order: %#v", order)
	}

	if _, err := store.Get(context.Background(), order.ID); err != nil {
		t.Fatalf("order not retrievable after create: %v", err)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected order on queue, got %d", len(queue.sent))
	}
}

func TestCreateOrderExpiredToken(t *testing.T) {
	store := storage.NewMemoryStore()
	token := signedToken(t, []string{"orders:write"}, time.Now().Add(-time.Minute))

	rec := postOrder(t, store, nil, "Bearer "+token, `{"name":"Alice","amount":100,"currency":"USD"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), detailUnauthorized) {
		t.Fatalf("expected generic detail, got %s", rec.Body.String())
	}
	if store.Len() != 0 {
		t.Fatalf("store must be untouched, has %d orders", store.Len())
	}
}

func TestCreateOrderMissingHeader(t *testing.T) {
	rec := postOrder(t, storage.NewMemoryStore(), nil, "", `{"name":"Alice","amount":100,"currency":"USD"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestCreateOrderMissingScope(t *testing.T) {
	store := storage.NewMemoryStore()
	token := signedToken(t, []string{"orders:read"}, time.Now().Add(5*time.Minute))

	rec := postOrder(t, store, nil, "Bearer "+token, `{"name":"Alice","amount":100,"currency":"USD"}`)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "orders:write") {
		t.Fatalf("expected the missing scope to be named, got %s", rec.Body.String())
	}
	if store.Len() != 0 {
		t.Fatalf("store must be untouched, has %d orders", store.Len())
	}
}

func TestCreateOrderInvalidAmount(t *testing.T) {
	store := storage.NewMemoryStore()

	rec := postOrder(t, store, nil, "Bearer "+writeToken(t), `{"name":"Alice","amount":-1,"currency":"USD"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 got %d", rec.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("store must be untouched, has %d orders", store.Len())
	}
}

func TestCreateOrderMalformedBody(t *testing.T) {
	rec := postOrder(t, storage.NewMemoryStore(), nil, "Bearer "+writeToken(t), `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestCreateOrderUnknownField(t *testing.T) {
	rec := postOrder(t, storage.NewMemoryStore(), nil, "Bearer "+writeToken(t), `{"name":"Alice","amount":100,"currency":"USD","extra":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestCreateOrderQueueFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	queue := &fakeQueue{err: errors.New("queue unreachable")}

	rec := postOrder(t, store, queue, "Bearer "+writeToken(t), `{"name":"Alice","amount":100,"currency":"USD"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), detailInternal) {
		t.Fatalf("expected opaque detail, got %s", rec.Body.String())
	}
	// The order is stored even though the queue submission failed.
	if store.Len() != 1 {
		t.Fatalf("expected order to remain stored, store has %d", store.Len())
	}
}

func TestGetOrderNotFound(t *testing.T) {
	e := echo.New()
	svc := service.NewOrders(storage.NewMemoryStore(), nil, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/orders/absent", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("absent")

	if err := getOrder(svc)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestGetOrderFound(t *testing.T) {
	e := echo.New()
	store := storage.NewMemoryStore()
	svc := service.NewOrders(store, nil, testLogger())
	created, err := svc.Create(context.Background(), domain.OrderInput{Name: "Alice", Amount: 1, Currency: "USD"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/"+created.ID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)

	if err := getOrder(svc)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var got domain.Order
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("unexpected order: %#v", got)
	}
}

func TestListOrders(t *testing.T) {
	e := echo.New()
	store := storage.NewMemoryStore()
	svc := service.NewOrders(store, nil, testLogger())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, domain.OrderInput{Name: "Alice", Amount: 1, Currency: "USD"}, nil); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := listOrders(svc)(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp ordersResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(resp.Orders))
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := healthz()(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
