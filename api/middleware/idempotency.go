package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// inFlightTTL caps how long a crashed request can hold its key.
	inFlightTTL = 2 * time.Minute
)

// idempotentRoutes lists the chi route patterns, per method, that require a key.
var idempotentRoutes = map[string][]string{
	http.MethodPost: {"/api/v1/checkout"},
	http.MethodPut:  {"/api/v1/orders/{orderId}/cancel"},
}

var (
	errKeyInFlight = pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress")
	errKeyReused   = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// storedResponse is what a key resolves to. A zero Status marks a request
// that has not finished yet.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency makes checkout and order cancellation safe to retry. The first
// request for a key runs and its response is kept for ttl; repeats with the
// same body get that response back, repeats with another body are rejected,
// and repeats that race the first request get a conflict. 5xx responses are
// not kept so the client can retry them.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotencyGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || ttl <= 0 || !idempotentRoute(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if err := guard.serve(w, r, next); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) error {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if clientKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintBody(body)
	key := g.store.IdempotencyKey(ownerScope(r), clientKey)

	claimed, err := g.claim(ctx, key, fingerprint)
	if err != nil {
		return err
	}
	if !claimed {
		return g.replay(ctx, w, key, fingerprint)
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	g.remember(ctx, key, storedResponse{
		Fingerprint: fingerprint,
		Status:      statusOrOK(ww.Status()),
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
	})
	return nil
}

func (g *idempotencyGuard) claim(ctx context.Context, key, fingerprint string) (bool, error) {
	placeholder, err := json.Marshal(storedResponse{Fingerprint: fingerprint})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency placeholder")
	}
	ok, err := g.store.SetNX(ctx, key, string(placeholder), inFlightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	return ok, nil
}

// remember overwrites the in-flight placeholder with the final response in a
// single write, so the key is never absent while the first request finishes.
// 5xx responses release the key instead. Failures are logged only; the client
// already has its answer.
func (g *idempotencyGuard) remember(ctx context.Context, key string, resp storedResponse) {
	if resp.Status >= http.StatusInternalServerError {
		g.release(ctx, key)
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		g.logError(ctx, "encode idempotent response", err)
		g.release(ctx, key)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), g.ttl); err != nil {
		g.logError(ctx, "store idempotent response", err)
	}
}

func (g *idempotencyGuard) release(ctx context.Context, key string) {
	if err := g.store.Del(ctx, key); err != nil {
		g.logError(ctx, "release idempotency key", err)
	}
}

func (g *idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, fingerprint string) error {
	raw, err := g.store.Get(ctx, key)
	switch {
	case pkgredis.IsMiss(err):
		return errKeyInFlight
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response")
	}
	switch {
	case stored.Fingerprint != fingerprint:
		return errKeyReused
	case stored.Status == 0:
		return errKeyInFlight
	}

	if g.logg != nil {
		g.logg.Info(g.logg.WithField(ctx, "replayed_status", stored.Status), "idempotent response replayed")
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
	return nil
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// ownerScope keys records by shopper and route so two shoppers cannot
// collide on the same client key.
func ownerScope(r *http.Request) string {
	owner := "session:" + SessionIDFromContext(r.Context())
	if id := UserIDFromContext(r.Context()); id != "" {
		owner = "user:" + id
	}
	return owner + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func idempotentRoute(method, pattern string) bool {
	return pattern != "" && slices.Contains(idempotentRoutes[method], pattern)
}
