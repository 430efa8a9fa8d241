package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/rentledger/internal/domain"
	"github.com/aryan0dhankhar/rentledger/internal/repository/memory"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/auth"
	"github.com/aryan0dhankhar/rentledger/internal/security/ratelimit"
	"github.com/aryan0dhankhar/rentledger/internal/service"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type api struct {
	t      *testing.T
	server *httptest.Server
	tokens *auth.TokenManager
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", "rentledger", time.Hour)
	d := service.Deps{
		Store:  store,
		Authz:  security.NewAuthorizer(security.NewChainResolver(store.Repos()), quiet),
		Logger: quiet,
	}
	limiter := ratelimit.NewMemory(1000, time.Minute)
	t.Cleanup(limiter.Stop)

	router := NewRouter(Handlers{
		Auth:       NewAuthHandler(service.NewAuthService(d, tokens).WithHashCost(bcrypt.MinCost), quiet),
		Properties: NewPropertyHandler(service.NewPropertyService(d), quiet),
		Contracts:  NewContractHandler(service.NewContractService(d), quiet),
		Payments:   NewPaymentHandler(service.NewPaymentService(d), quiet),
		Tickets:    NewTicketHandler(service.NewTicketService(d), quiet),
		Tenants:    NewTenantHandler(service.NewTenantService(d), quiet),
		Health:     NewHealthHandler(map[string]Pinger{"store": store}, quiet),
	}, RouterConfig{Tokens: tokens, Limiter: limiter, Logger: quiet})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &api{t: t, server: srv, tokens: tokens}
}

func (a *api) token(userID string, role domain.Role) string {
	a.t.Helper()
	tok, _, err := a.tokens.GenerateToken(userID, role)
	if err != nil {
		a.t.Fatalf("token: %v", err)
	}
	return tok
}

// do sends body (marshalled unless it is a string) and decodes the envelope
func (a *api) do(method, path, token string, body any) (int, Envelope, json.RawMessage) {
	a.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	if err != nil {
		a.t.Fatalf("request: %v", err)
	}
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *ErrorBody      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		a.t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, Envelope{Success: raw.Success, Error: raw.Error}, raw.Data
}

func (a *api) mustCreate(path, token string, body any) string {
	a.t.Helper()
	status, env, data := a.do(http.MethodPost, path, token, body)
	if status != http.StatusCreated {
		a.t.Fatalf("POST %s: expected 201, got %d %+v", path, status, env.Error)
	}
	var out struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	}
	_ = json.Unmarshal(data, &out)
	if out.ID != "" {
		return out.ID
	}
	return out.UserID
}

var propertyBody = map[string]any{
	"address":     map[string]string{"line1": "12 Elm Street", "city": "Springfield"},
	"rentalPrice": 1200,
	"currency":    "USD",
}

func contractBody(propertyID, tenantID string) map[string]any {
	return map[string]any{
		"propertyId":    propertyID,
		"tenantId":      tenantID,
		"startDate":     "2026-01-01",
		"endDate":       "2027-01-01",
		"monthlyAmount": 1200,
		"currency":      "USD",
		"payDay":        5,
	}
}

func TestLeaseLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	owner := a.token("owner-1", domain.RoleOwner)

	tenantID := a.mustCreate("/api/auth/register", "", map[string]string{
		"email": "tina@example.com", "password": "Password123", "role": "tenant", "fullName": "Tina",
	})
	status, _, data := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "tina@example.com", "password": "Password123"})
	if status != http.StatusOK {
		t.Fatalf("login: %d", status)
	}
	var login service.AuthResult
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("login result %s: %v", data, err)
	}
	tenant := login.Token

	propertyID := a.mustCreate("/api/properties", owner, propertyBody)
	contractID := a.mustCreate("/api/contracts", owner, contractBody(propertyID, tenantID))

	status, env, _ := a.do(http.MethodPost, "/api/contracts", owner, contractBody(propertyID, tenantID))
	if status != http.StatusConflict || env.Error.Code != "property_no_longer_available" {
		t.Fatalf("second contract: %d %+v", status, env.Error)
	}

	paymentID := a.mustCreate("/api/payments", owner, map[string]any{"contractId": contractID, "period": "2026-09", "amount": 1200})
	status, env, _ = a.do(http.MethodPost, "/api/payments", owner, map[string]any{"contractId": contractID, "period": "2026-09", "amount": 1200})
	if status != http.StatusConflict || env.Error.Code != "duplicate_period" {
		t.Fatalf("duplicate period: %d %+v", status, env.Error)
	}

	status, _, data = a.do(http.MethodPost, "/api/payments/"+paymentID+"/proof", tenant, map[string]string{"proofRef": "receipt.png"})
	if status != http.StatusOK || !strings.Contains(string(data), `"in_review"`) {
		t.Fatalf("proof: %d %s", status, data)
	}
	status, _, data = a.do(http.MethodPut, "/api/payments/"+paymentID, owner, map[string]string{"status": "paid"})
	if status != http.StatusOK || !strings.Contains(string(data), `"paid"`) {
		t.Fatalf("reconcile: %d %s", status, data)
	}

	ticketID := a.mustCreate("/api/tickets", tenant, map[string]string{"propertyId": propertyID, "title": "Broken heater", "urgency": "high"})
	status, _, _ = a.do(http.MethodPut, "/api/tickets/"+ticketID+"/assignment", owner, map[string]any{"contractor": "Heat Co", "costEstimate": 150})
	if status != http.StatusOK {
		t.Fatalf("assign: %d", status)
	}
	status, _, _ = a.do(http.MethodPut, "/api/tickets/"+ticketID, owner, map[string]string{"status": "closed"})
	if status != http.StatusOK {
		t.Fatalf("close ticket: %d", status)
	}

	status, _, _ = a.do(http.MethodPost, "/api/contracts/"+contractID+"/terminate", owner, nil)
	if status != http.StatusOK {
		t.Fatalf("terminate: %d", status)
	}
	status, env, _ = a.do(http.MethodPost, "/api/contracts/"+contractID+"/terminate", owner, nil)
	if status != http.StatusConflict || env.Error.Code != "already_terminated" {
		t.Fatalf("terminate twice: %d %+v", status, env.Error)
	}
	status, _, data = a.do(http.MethodGet, "/api/properties/"+propertyID, owner, nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"occupancyStatus":"available"`) {
		t.Fatalf("property after terminate: %d %s", status, data)
	}
}

func TestErrorStatuses(t *testing.T) {
	a := newAPI(t)
	owner := a.token("owner-1", domain.RoleOwner)
	tenant := a.token("t-1", domain.RoleTenant)
	propertyID := a.mustCreate("/api/properties", owner, propertyBody)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodGet, "/api/properties", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"garbage token", http.MethodGet, "/api/properties", "garbage", nil, http.StatusUnauthorized, "unauthorized"},
		{"tenant lists properties", http.MethodGet, "/api/properties", tenant, nil, http.StatusForbidden, "forbidden"},
		{"other owner", http.MethodGet, "/api/properties/" + propertyID, a.token("owner-2", domain.RoleOwner), nil, http.StatusForbidden, "forbidden"},
		{"missing property", http.MethodGet, "/api/properties/nope", owner, nil, http.StatusNotFound, "not_found"},
		{"malformed json", http.MethodPost, "/api/properties", owner, "{", http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/api/properties", owner, `{"colour":"red"}`, http.StatusBadRequest, "bad_request"},
		{"invalid property", http.MethodPost, "/api/properties", owner, map[string]any{"rentalPrice": 0}, http.StatusUnprocessableEntity, "validation_failed"},
		{"bad date", http.MethodPost, "/api/contracts", owner, map[string]any{"propertyId": propertyID, "tenantId": "t-1", "startDate": "01/01/2026", "endDate": "2027-01-01"}, http.StatusUnprocessableEntity, "validation_failed"},
		{"same status", http.MethodPut, "/api/properties/" + propertyID + "/status", owner, map[string]string{"status": "available"}, http.StatusConflict, "invalid_transition"},
		{"wrong password", http.MethodPost, "/api/auth/login", "", map[string]string{"email": "x@example.com", "password": "whatever1"}, http.StatusUnauthorized, "invalid_credentials"},
		{"unknown route", http.MethodGet, "/api/leases", owner, nil, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env, _ := a.do(tc.method, tc.path, tc.token, tc.body)
			if status != tc.status {
				t.Fatalf("expected %d, got %d (%+v)", tc.status, status, env.Error)
			}
			if env.Success || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected error code %q, got %+v", tc.code, env.Error)
			}
			if strings.Contains(env.Error.Message, string(domain.DenyNotOwner)) || strings.Contains(env.Error.Message, string(domain.DenyRoleNotPermitted)) {
				t.Fatalf("deny reason leaked to client: %q", env.Error.Message)
			}
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	a := newAPI(t)
	status, env, _ := a.do(http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("healthz: %d", status)
	}
	status, _, data := a.do(http.MethodGet, "/readyz", "", nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"store":"ok"`) {
		t.Fatalf("readyz: %d %s", status, data)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestReadyReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{"redis": failingPinger{}, "skipped": nil}, quiet)
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error: down") || strings.Contains(rec.Body.String(), "skipped") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestWithRetry(t *testing.T) {
	transient := &domain.StorageError{Op: "commit", Err: errors.New("serialization failure"), Transient: true}

	calls := 0
	got, err := withRetry(context.Background(), quiet, "test", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", transient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 2 {
		t.Fatalf("expected recovery on second attempt, got %q %v after %d calls", got, err, calls)
	}

	calls = 0
	_, err = withRetry(context.Background(), quiet, "test", func(context.Context) (string, error) {
		calls++
		return "", transient
	})
	if !errors.Is(err, transient) || calls != 2 {
		t.Fatalf("expected exactly two attempts, got %d (%v)", calls, err)
	}

	calls = 0
	_, err = withRetry(context.Background(), quiet, "test", func(context.Context) (string, error) {
		calls++
		return "", domain.ErrDuplicatePeriod
	})
	if !errors.Is(err, domain.ErrDuplicatePeriod) || calls != 1 {
		t.Fatalf("invariant violations must not retry, got %d calls", calls)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.Denied(domain.DenyNotSelf), http.StatusForbidden},
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound},
		{&domain.InvalidTransitionError{Entity: "ticket", From: "closed", To: "open"}, http.StatusConflict},
		{fmt.Errorf("%w: x", domain.ErrInvalidPaymentTransition), http.StatusConflict},
		{domain.ErrTenantNotOnLease, http.StatusConflict},
		{domain.ErrContractNotBillable, http.StatusConflict},
		{fmt.Errorf("delete property: %w", domain.ErrPropertyHasHistory), http.StatusConflict},
		{&domain.StorageError{Op: "query", Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := classify(tc.err); got != tc.status {
			t.Errorf("classify(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}
