package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/computers-backend/api/responses"
	pkgerrors "github.com/angelmondragon/computers-backend/pkg/errors"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/computers-backend/pkg/redis"
)

const (
	// OrderCriticalRetention keeps checkout and cancellation replies long enough
	// to cover a buyer retrying from a stale tab days later.
	OrderCriticalRetention = 7 * 24 * time.Hour

	defaultIdempotencyTTL = 24 * time.Hour
	inflightTTL           = time.Minute
	maxIdempotencyKeyLen  = 128
)

const (
	recordPending  = "pending"
	recordComplete = "complete"
)

type idempotencyRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency guards order-mutating routes keyed by the buyer's Idempotency-Key.
type Idempotency struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewIdempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &Idempotency{store: store, ttl: ttl, logg: logg}
}

// Guard returns middleware that keeps completed replies for retention, or the
// configured TTL when retention is zero.
//
// The key is reserved before the handler runs, so a concurrent duplicate gets a
// conflict instead of a second checkout. A completed reply is replayed as is;
// reusing the key with a different body is rejected. 5xx replies release the
// key so the buyer can retry.
func (i *Idempotency) Guard(retention time.Duration) func(http.Handler) http.Handler {
	if retention <= 0 {
		retention = i.ttl
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if i.store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestFingerprint(body)
			key := i.store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reserved, err := i.reserve(r, key, hash)
			if err != nil {
				responses.WriteError(ctx, i.logg, w, err)
				return
			}
			if !reserved {
				i.replay(w, r, key, hash)
				return
			}

			completed := false
			defer func() {
				if !completed {
					i.release(r, key)
				}
			}()

			capture := &replyCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(idempotencyRecord{
				State:       recordComplete,
				RequestHash: hash,
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				i.logg.Error(ctx, "encode idempotency record", err)
				return
			}
			if err := i.store.Set(ctx, key, string(payload), retention); err != nil {
				i.logg.Error(ctx, "persist idempotency record", err)
				return
			}
			completed = true
		})
	}
}

func (i *Idempotency) reserve(r *http.Request, key, hash string) (bool, error) {
	pending, err := json.Marshal(idempotencyRecord{State: recordPending, RequestHash: hash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation")
	}
	ok, err := i.store.SetNX(r.Context(), key, string(pending), inflightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	return ok, nil
}

func (i *Idempotency) release(r *http.Request, key string) {
	if err := i.store.Del(r.Context(), key); err != nil {
		i.logg.Error(r.Context(), "release idempotency key", err)
	}
}

func (i *Idempotency) replay(w http.ResponseWriter, r *http.Request, key, hash string) {
	ctx := r.Context()
	stored, err := i.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Reservation expired between SETNX and GET; the first request is still settling.
		stored, err = "", nil
	}
	if err != nil {
		responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record idempotencyRecord
	if stored != "" {
		if err := json.Unmarshal([]byte(stored), &record); err != nil {
			responses.WriteError(ctx, i.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
			return
		}
	}
	if record.RequestHash != "" && record.RequestHash != hash {
		responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.State != recordComplete {
		responses.WriteError(ctx, i.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
		return
	}

	w.Header().Set("Idempotency-Replayed", "true")
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func requestFingerprint(body []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(body))
	return hex.EncodeToString(sum[:])
}

type replyCapture struct {
	http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func (c *replyCapture) WriteHeader(code int) {
	if !c.wroteHeader {
		c.status = code
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *replyCapture) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
