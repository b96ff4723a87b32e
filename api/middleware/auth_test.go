package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthPassesAnonymousRequests(t *testing.T) {
	var identityZero bool
	handler := Auth(auth.NewVerifier(testJWTConfig()), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identityZero = IdentityFromContext(r.Context()).IsZero()
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK || !identityZero {
		t.Fatalf("expected anonymous passthrough, got %d zero=%v", resp.Code, identityZero)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(auth.NewVerifier(testJWTConfig()), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID, enums.UserRoleCustomer)

	var captured struct {
		user     string
		role     string
		identity bool
	}
	handler := Auth(auth.NewVerifier(cfg), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.identity = IdentityFromContext(r.Context()).IsUser()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() || captured.role != string(enums.UserRoleCustomer) || !captured.identity {
		t.Fatalf("unexpected context %+v", captured)
	}
}

func TestAuthRejectsNonBearerScheme(t *testing.T) {
	cfg := testJWTConfig()
	token := mintTestToken(t, cfg, uuid.New(), enums.UserRoleCustomer)
	handler := Auth(auth.NewVerifier(cfg), nil)(okHandler())

	for _, header := range []string{token, "Basic " + token, "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.Code)
		}
	}
}

func TestContextKeepsUserAndSessionTogether(t *testing.T) {
	userID := uuid.New()
	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithUser(ctx, userID.String(), string(enums.UserRoleCustomer))

	if SessionIDFromContext(ctx) != "sess-1" {
		t.Fatalf("session lost after WithUser")
	}
	identity := IdentityFromContext(ctx)
	if !identity.IsUser() || *identity.UserID != userID {
		t.Fatalf("expected user identity, got %+v", identity)
	}

	guest := IdentityFromContext(WithUser(ctx, "not-a-uuid", "customer"))
	if guest.IsUser() {
		t.Fatalf("malformed user id should fall back to the session")
	}
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), uuid.NewString(), string(enums.UserRoleCustomer)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleAdmin)(okHandler())

	cases := []struct {
		name string
		role string
		user bool
		want int
	}{
		{"anonymous", "", false, http.StatusUnauthorized},
		{"customer", string(enums.UserRoleCustomer), true, http.StatusForbidden},
		{"admin", string(enums.UserRoleAdmin), true, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.user {
			req = req.WithContext(WithUser(req.Context(), uuid.NewString(), tc.role))
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
