package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "vaultswap.backend/internal/domain/errors"
	"vaultswap.backend/internal/interfaces/http/response"
	"vaultswap.backend/pkg/logger"
	"vaultswap.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	IdempotencyHit    = "X-Idempotency-Hit"
	// LockDuration is how long a key stays claimed while the request runs
	LockDuration = 2 * time.Minute
	// RetentionDuration is how long a finished response is replayed
	RetentionDuration = 24 * time.Hour

	stateProcessing = "processing"
	stateDone       = "done"
)

var (
	redisGetJSON = redis.GetJSON
	redisSetJSON = redis.SetJSON
	redisSetNX   = redis.SetNX
	redisDel     = redis.Del
)

type idempotencyRecord struct {
	State  string `json:"state"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key and rejects a repeat that arrives while the first is running.
// Keys are scoped per authenticated user.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		userID, _ := GetUserID(c)
		storageKey := "idempotency:" + userID.String() + ":" + key
		ctx := c.Request.Context()

		var existing idempotencyRecord
		err := redisGetJSON(ctx, storageKey, &existing)
		switch {
		case err == nil:
			if existing.State == stateProcessing {
				response.Error(c, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeAlreadyInProgress, "Request already in progress", domainerrors.ErrAlreadyInProgress))
				c.Abort()
				return
			}
			c.Header(IdempotencyHit, "true")
			c.Data(existing.Status, "application/json; charset=utf-8", []byte(existing.Body))
			c.Abort()
			return
		case !redis.IsNil(err):
			logger.Warn(ctx, "idempotency store unavailable, continuing without it", zap.Error(err))
			c.Next()
			return
		}

		lock, _ := json.Marshal(idempotencyRecord{State: stateProcessing})
		acquired, err := redisSetNX(ctx, storageKey, lock, LockDuration)
		if err != nil || !acquired {
			response.Error(c, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeAlreadyInProgress, "Request already in progress", domainerrors.ErrAlreadyInProgress))
			c.Abort()
			return
		}

		w := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			record := idempotencyRecord{State: stateDone, Status: status, Body: w.body.String()}
			if err := redisSetJSON(ctx, storageKey, record, RetentionDuration); err != nil {
				logger.Warn(ctx, "idempotency result not stored", zap.Error(err))
			}
			return
		}
		_ = redisDel(ctx, storageKey)
	}
}
