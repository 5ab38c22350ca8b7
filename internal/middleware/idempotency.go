package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SergeiKhy/sourcetrace/internal/repository"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	idempotencyTTL    = 24 * time.Hour
	maxIdempotencyKey = 255
)

// bodyWriter дублирует тело ответа в буфер
type bodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency отдаёт сохранённый ответ на повтор запроса с тем же Idempotency-Key.
// Ставится после IngestionKey: ключи разных ингест-ключей не пересекаются.
// Ошибки Redis не блокируют запрос.
func Idempotency(store repository.IdempotencyStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" || len(key) > maxIdempotencyKey {
			c.Next()
			return
		}

		auth, ok := IngestionAuthFrom(c)
		if !ok {
			c.Next()
			return
		}
		scope := auth.KeyID + ":" + c.FullPath()
		ctx := c.Request.Context()

		stored, err := store.Get(ctx, scope, key)
		switch {
		case err == nil:
			c.Header(ReplayedHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		case !errors.Is(err, repository.ErrCacheMiss):
			logger.Warn("Хранилище идемпотентности недоступно", zap.Error(err))
		}

		w := &bodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		resp := &repository.StoredResponse{
			Status:      status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}
		if err := store.Save(ctx, scope, key, resp, idempotencyTTL); err != nil {
			logger.Warn("Не удалось сохранить ответ идемпотентного запроса", zap.Error(err))
		}
	}
}
