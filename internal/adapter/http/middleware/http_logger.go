package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	reqBodyLimit  = 8 * 1024
	respBodyLimit = 8 * 1024

	redacted  = "***redacted***"
	truncMark = "...truncated..."
)

// Keys whose values never reach the log. Phone numbers in WhatsApp payloads
// are masked rather than dropped so conversations stay traceable.
var (
	secretKeys = map[string]bool{
		"password": true, "authorization": true, "token": true, "secret": true,
		"client_secret": true, "access_token": true, "api_key": true,
	}
	phoneKeys = map[string]bool{"from": true, "wa_id": true, "to": true}
)

// Probe and scrape routes are served without a log line.
var quietRoutes = map[string]bool{"/healthz": true, "/metrics": true}

// capWriter tees at most limit bytes of the response into buf.
type capWriter struct {
	gin.ResponseWriter
	buf   bytes.Buffer
	limit int
}

func (w *capWriter) Write(b []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(b) > room {
			w.buf.Write(b[:room])
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func (w *capWriter) full() bool { return w.buf.Len() >= w.limit }

func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(scrub(v))
	if err != nil {
		return raw
	}
	return b
}

func scrub(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for k, val := range v {
			kl := strings.ToLower(k)
			switch {
			case secretKeys[kl]:
				v[k] = redacted
			case phoneKeys[kl]:
				if s, ok := val.(string); ok {
					v[k] = maskPhone(s)
				}
			default:
				v[k] = scrub(val)
			}
		}
		return v
	case []any:
		for i := range v {
			v[i] = scrub(v[i])
		}
		return v
	default:
		return v
	}
}

// redactForm scrubs an application/x-www-form-urlencoded body.
func redactForm(raw []byte) []byte {
	vals, err := url.ParseQuery(string(raw))
	if err != nil {
		return []byte(redacted)
	}
	for k := range vals {
		if secretKeys[strings.ToLower(k)] {
			vals[k] = []string{redacted}
		}
	}
	return []byte(vals.Encode())
}

// maskPhone keeps the last four digits.
func maskPhone(s string) string {
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

type replayBody struct {
	io.Reader
	io.Closer
}

// peekCapped reads up to n bytes for logging and returns a body that still
// yields the full, unmodified stream.
func peekCapped(rc io.ReadCloser, n int) (head []byte, truncated bool, body io.ReadCloser) {
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, rc, int64(n+1))
	b := buf.Bytes()
	body = replayBody{Reader: io.MultiReader(bytes.NewReader(b), rc), Closer: rc}
	if len(b) > n {
		return b[:n], true, body
	}
	return b, false, body
}

// requestBody captures a redacted copy of JSON and form bodies for the log.
func requestBody(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	ct := r.Header.Get("Content-Type")
	var redact func([]byte) []byte
	switch {
	case strings.Contains(ct, "application/json"):
		redact = redactJSON
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		redact = redactForm
	default:
		return ""
	}
	head, truncated, body := peekCapped(r.Body, reqBodyLimit)
	r.Body = body
	logged := string(redact(head))
	if truncated {
		logged += truncMark
	}
	return logged
}

// Logging tags each request with an id, puts a request-scoped logger in the
// context and writes one line when the handler chain returns.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", reqID)
		}
		c.Header("X-Request-Id", reqID)

		route := c.FullPath()
		l := base.With("req_id", reqID, "method", c.Request.Method, "route", route)
		if id := c.Param("id"); id != "" {
			l = l.With("session_id", id)
		}
		if tool := c.Param("name"); tool != "" {
			l = l.With("tool", tool)
		}
		logging.With(c, l)

		if quietRoutes[route] {
			c.Next()
			return
		}

		reqBody := requestBody(c.Request)
		cw := &capWriter{ResponseWriter: c.Writer, limit: respBodyLimit}
		c.Writer = cw

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"remote", c.ClientIP(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") && cw.buf.Len() > 0 {
			resp := string(redactJSON(cw.buf.Bytes()))
			if cw.full() {
				resp += truncMark
			}
			attrs = append(attrs, "resp_body", resp)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		// logging.From picks up fields added downstream (client_id from authz)
		l = logging.From(c)
		switch {
		case status >= http.StatusInternalServerError:
			l.Error("http_request", attrs...)
		case status >= http.StatusBadRequest:
			l.Warn("http_request", attrs...)
		default:
			l.Info("http_request", attrs...)
		}
	}
}
