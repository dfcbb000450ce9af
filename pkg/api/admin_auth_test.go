package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signAdminToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminAuth_UnconfiguredSecretFailsClosed(t *testing.T) {
	auth := &AdminAuth{}
	req := httptest.NewRequest(http.MethodPost, "/admin/dlq/replay", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()

	CorrelationMiddleware(auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestAdminAuth_MissingAuthorizationHeaderRejected(t *testing.T) {
	auth := &AdminAuth{Secret: "s3cret"}
	req := httptest.NewRequest(http.MethodPost, "/admin/dlq/replay", nil)
	rec := httptest.NewRecorder()

	CorrelationMiddleware(auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminAuth_ValidTokenAccepted(t *testing.T) {
	auth := &AdminAuth{Secret: "s3cret"}
	req := httptest.NewRequest(http.MethodPost, "/admin/dlq/replay", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "s3cret"))
	rec := httptest.NewRecorder()
	called := false

	CorrelationMiddleware(auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected 200 and handler called, got %d (called=%v)", rec.Code, called)
	}
}

func TestAdminAuth_WrongSecretRejected(t *testing.T) {
	auth := &AdminAuth{Secret: "s3cret"}
	req := httptest.NewRequest(http.MethodPost, "/admin/dlq/replay", nil)
	req.Header.Set("Authorization", "Bearer "+signAdminToken(t, "wrong-secret"))
	rec := httptest.NewRecorder()

	CorrelationMiddleware(auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
