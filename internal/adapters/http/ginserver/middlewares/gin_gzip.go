package middlewares

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/Migrascope/internal/misc"
)

type gzipBody struct {
	gz  *gzip.Reader
	raw io.Closer
}

func (g *gzipBody) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipBody) Close() error {
	gerr := g.gz.Close()
	if err := g.raw.Close(); err != nil {
		return err
	}
	return gerr
}

// GzipRequest inflates gzip-encoded request bodies.
func GzipRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Content-Encoding")), "gzip") {
			c.Next()
			return
		}
		gr, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "bad gzip body"})
			return
		}
		c.Request.Body = &gzipBody{gz: gr, raw: c.Request.Body}
		c.Request.Header.Del("Content-Encoding")
		c.Request.Header.Del("Content-Length")
		c.Request.ContentLength = -1
		c.Next()
	}
}

type pooledGzip struct {
	*gzip.Writer
}

func (p pooledGzip) Reset() { p.Writer.Reset(io.Discard) }

var gzipWriters = misc.NewPool(func() pooledGzip { return pooledGzip{gzip.NewWriter(io.Discard)} })

var compressible = []string{"application/json", "text/html", "text/plain"}

type gzipWriter struct {
	gin.ResponseWriter
	gz      pooledGzip
	decided bool
	active  bool
}

func (w *gzipWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		return
	}
	status := w.Status()
	if status < 200 || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	ct := h.Get("Content-Type")
	ok := false
	for _, prefix := range compressible {
		if strings.HasPrefix(ct, prefix) {
			ok = true
			break
		}
	}
	if !ok {
		return
	}
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	w.gz = gzipWriters.Get()
	w.gz.Writer.Reset(w.ResponseWriter)
	w.active = true
}

func (w *gzipWriter) Write(p []byte) (int, error) {
	w.decide()
	if w.active {
		return w.gz.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipWriter) finish() error {
	if !w.active {
		return nil
	}
	err := w.gz.Close()
	gzipWriters.Put(w.gz)
	w.active = false
	return err
}

// GzipResponse compresses JSON, HTML and text responses for clients that accept gzip.
// Responses that already carry a Content-Encoding are passed through untouched.
func GzipResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Accept-Encoding")), "gzip") {
			c.Next()
			return
		}
		gw := &gzipWriter{ResponseWriter: c.Writer}
		c.Writer = gw
		c.Next()
		if err := gw.finish(); err != nil {
			_ = c.Error(err)
		}
		c.Writer = gw.ResponseWriter
	}
}
