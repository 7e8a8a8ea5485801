package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Migrascope/internal/misc"
)

// HeaderHash carries the hex HMAC-style digest of a body signed with the shared key.
const HeaderHash = "HashSHA256"

type signingWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *signingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *signingWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *signingWriter) WriteHeader(code int) {
	w.status = code
}

// HashSHA256 rejects request bodies whose HashSHA256 header does not match the key
// and signs every response body. An empty key disables both.
func HashSHA256(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if got := strings.TrimSpace(c.GetHeader(HeaderHash)); got != "" && c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			_ = c.Request.Body.Close()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "read body failed"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			if len(body) > 0 && !misc.VerifySHA256(body, key, got) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid hash"})
				return
			}
		}

		sw := &signingWriter{ResponseWriter: c.Writer}
		c.Writer = sw
		c.Next()
		c.Writer = sw.ResponseWriter

		out := sw.body.Bytes()
		if len(out) > 0 {
			c.Header(HeaderHash, misc.SumSHA256(out, key))
		}
		status := sw.status
		if status == 0 {
			status = c.Writer.Status()
		}
		c.Writer.WriteHeader(status)
		if _, err := c.Writer.Write(out); err != nil {
			_ = c.Error(err)
		}
	}
}
