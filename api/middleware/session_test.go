package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{CookieName: "sf_session", TTL: 24 * time.Hour}
}

func captureSession(dest *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dest = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionReadsHeaderBeforeCookie(t *testing.T) {
	var got string
	handler := Session(testSessionConfig(), nil)(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, " header-sid ")
	req.AddCookie(&http.Cookie{Name: "sf_session", Value: "cookie-sid"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "header-sid" {
		t.Fatalf("expected header session, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sf_session", Value: "cookie-sid"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "cookie-sid" {
		t.Fatalf("expected cookie session, got %q", got)
	}
}

func TestSessionIgnoresOversizedIDs(t *testing.T) {
	var got string
	handler := Session(testSessionConfig(), nil)(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, strings.Repeat("x", maxSessionIDLength+1))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Fatalf("expected oversized session to be dropped, got %q", got)
	}
}

func TestEnsureSessionMintsForAnonymousCallers(t *testing.T) {
	var got string
	cfg := testSessionConfig()
	handler := Session(cfg, nil)(EnsureSession(cfg, nil)(captureSession(&got)))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected minted uuid session, got %q", got)
	}
	if resp.Header().Get(SessionHeader) != got {
		t.Fatalf("expected session header %q, got %q", got, resp.Header().Get(SessionHeader))
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sf_session" || cookies[0].Value != got || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}

func TestEnsureSessionKeepsExistingIdentity(t *testing.T) {
	var got string
	cfg := testSessionConfig()
	handler := Session(cfg, nil)(EnsureSession(cfg, nil)(captureSession(&got)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "existing")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got != "existing" || resp.Header().Get(SessionHeader) != "" {
		t.Fatalf("expected existing session untouched, got %q header %q", got, resp.Header().Get(SessionHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.NewString(), string(enums.UserRoleCustomer)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got != "" || len(resp.Result().Cookies()) != 0 {
		t.Fatalf("expected no session for authenticated user, got %q", got)
	}
}
