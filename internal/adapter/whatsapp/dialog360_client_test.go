package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu     sync.Mutex
	bodies []map[string]any
	keys   []string
}

func newServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		got.mu.Lock()
		got.bodies = append(got.bodies, m)
		got.keys = append(got.keys, r.Header.Get("D360-API-KEY"))
		got.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"messages":[{"id":"wamid.x"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestClient_Payloads(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	c := NewClient("key-1", srv.URL+"/", time.Second)
	ctx := context.Background()

	require.NoError(t, c.MarkRead(ctx, "wamid.in"))
	require.NoError(t, c.SendTyping(ctx, "5511", true))
	require.NoError(t, c.SendText(ctx, "5511", "hello"))

	require.Len(t, got.bodies, 3)
	assert.Equal(t, []string{"key-1", "key-1", "key-1"}, got.keys)
	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        "wamid.in",
	}, got.bodies[0])
	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                "5511",
		"type":              "action",
		"action":            map[string]any{"type": "typing_on"},
	}, got.bodies[1])
	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                "5511",
		"type":              "text",
		"text":              map[string]any{"body": "hello"},
	}, got.bodies[2])
}

func TestClient_SendTextTruncates(t *testing.T) {
	srv, got := newServer(t, http.StatusOK)
	c := NewClient("k", srv.URL, time.Second)

	require.NoError(t, c.SendText(context.Background(), "1", strings.Repeat("a", 5000)))
	body := got.bodies[0]["text"].(map[string]any)["body"].(string)
	assert.Len(t, body, 4096)
	assert.True(t, strings.HasSuffix(body, "..."))
}

func TestClient_ErrorsWrapErrSend(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnauthorized)
	c := NewClient("bad", srv.URL, time.Second)

	err := c.SendText(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSend)
	assert.Contains(t, err.Error(), "status 401")

	c = NewClient("k", "http://127.0.0.1:1", 200*time.Millisecond)
	assert.ErrorIs(t, c.MarkRead(context.Background(), "x"), ErrSend)
}
