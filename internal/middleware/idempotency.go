package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/billsafe/internal/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

var errNotStored = errors.New("response is not stored")

// Idempotency replays the stored response of a request that was already
// handled under the same Idempotency-Key. Requests without the header are
// passed through; 5xx responses are not stored so the client may retry.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if manager == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyKeyHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLength {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			key := requestKey(r, header)
			rec := newBufferedWriter()

			result, err := manager.Execute(r.Context(), key, ttl, func(ctx context.Context) (int, interface{}, error) {
				next.ServeHTTP(rec, r.WithContext(ctx))
				if rec.status >= http.StatusInternalServerError || rec.body.Len() == 0 {
					return 0, nil, errNotStored
				}
				return rec.status, json.RawMessage(rec.body.Bytes()), nil
			})

			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				writeError(w, http.StatusConflict, "A request with this Idempotency-Key is already being processed")
			case err != nil && rec.written():
				if !errors.Is(err, errNotStored) {
					log.Warn("idempotent response not stored", slog.String("key", key), slog.Any("error", err))
				}
				rec.flush(w)
			case err != nil:
				log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
				next.ServeHTTP(w, r)
			case result.FromCache:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(result.StatusCode)
				_, _ = w.Write(result.Response)
			default:
				rec.flush(w)
			}
		})
	}
}

// requestKey scopes the client's key to the method and path it was sent to.
func requestKey(r *http.Request, header string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + " " + header))
	return "http:" + hex.EncodeToString(sum[:])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
