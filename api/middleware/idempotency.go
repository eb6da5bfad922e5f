package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	// IdempotencyHeader carries the client-chosen retry key.
	IdempotencyHeader = "Idempotency-Key"

	adminReplayTTL    = 24 * time.Hour
	checkoutReplayTTL = 7 * 24 * time.Hour
	// A claim outlives any sane handler run; a crashed request frees the key after this.
	inFlightTTL = 2 * time.Minute
)

type idempotentRoute struct {
	method   string
	template string
	ttl      time.Duration
	admin    bool
}

// Customer-facing order routes keep their records longer because storefront
// clients retry checkout across sessions.
var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, "/api/v1/orders", checkoutReplayTTL, false},
	{http.MethodPost, "/api/v1/orders/{orderId}/cancel", checkoutReplayTTL, false},
	{http.MethodPost, "/api/admin/v1/orders/{orderId}/cancel", adminReplayTTL, true},
	{http.MethodPost, "/api/admin/v1/inventory/adjust", adminReplayTTL, true},
	{http.MethodPost, "/api/admin/v1/inventory/bulk-update", adminReplayTTL, true},
}

type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency makes the stock-moving routes safe to retry. The first request
// with a key claims it; a concurrent duplicate gets 409 until the first one
// finishes, and later duplicates get the stored response. 5xx responses release
// the claim so the client can retry with the same key, and so does a panic. adminTTL overrides the
// 24h retention of admin routes when positive.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger, adminTTL time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := matchRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ttl := route.ttl
			if route.admin && adminTTL > 0 {
				ttl = adminTTL
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)

			claim, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayStored(ctx, logg, w, store, key, hash)
				return
			}

			// Bookkeeping outlives a client disconnect.
			storeCtx := context.WithoutCancel(ctx)
			stored := false
			defer func() {
				if stored {
					return
				}
				if err := store.Del(storeCtx, key); err != nil {
					logError(storeCtx, logg, "release idempotency key", err)
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			record, _ := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			stored = true
			if err := store.Set(storeCtx, key, string(record), ttl); err != nil {
				logError(storeCtx, logg, "store idempotent response", err)
			}
		})
	}
}

func replayStored(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The claim expired or was released between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// requestScope keeps keys from colliding across actors and endpoints.
func requestScope(r *http.Request) string {
	return strings.Join([]string{ActorFromContext(r.Context()), r.Method, strings.TrimSuffix(r.URL.Path, "/")}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func matchRoute(method, path string) (idempotentRoute, bool) {
	path = strings.TrimSuffix(path, "/")
	for _, route := range idempotentRoutes {
		if route.method == method && matchTemplate(route.template, path) {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

// matchTemplate compares path segments, letting {param} segments match any non-empty value.
func matchTemplate(template, path string) bool {
	want := strings.Split(template, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
