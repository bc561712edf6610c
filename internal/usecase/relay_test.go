package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDedup struct {
	mu     sync.Mutex
	held   map[string]bool
	failOn string
}

func newFakeDedup() *fakeDedup { return &fakeDedup{held: map[string]bool{}} }

func (f *fakeDedup) TryLock(_ context.Context, scope, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if scope == f.failOn {
		return false, errors.New("store down")
	}
	k := scope + "|" + key
	if f.held[k] {
		return false, nil
	}
	f.held[k] = true
	return true, nil
}

func (f *fakeDedup) Release(_ context.Context, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, scope+"|"+key)
	return nil
}

func (f *fakeDedup) holds(scope, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[scope+"|"+key]
}

type fakeQueue struct {
	got []InboundMsg
	err error
}

func (f *fakeQueue) PublishInbound(_ context.Context, m InboundMsg) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, m)
	return nil
}

type fakeAgent struct {
	reply string
	err   error
	asked []string
}

func (f *fakeAgent) Ask(_ context.Context, text, userID, _ string) (string, error) {
	f.asked = append(f.asked, userID+":"+text)
	return f.reply, f.err
}

type fakeMessenger struct {
	sent    []string
	read    []string
	typing  []bool
	sendErr error
}

func (f *fakeMessenger) SendText(_ context.Context, _, text string) error {
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeMessenger) MarkRead(_ context.Context, id string) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeMessenger) SendTyping(_ context.Context, _ string, on bool) error {
	f.typing = append(f.typing, on)
	return nil
}

func textPayload(id, from, body, ts string) []byte {
	return []byte(`{"entry":[{"changes":[{"value":{"messages":[{"id":"` + id + `","from":"` + from +
		`","timestamp":"` + ts + `","type":"text","text":{"body":"` + body + `"}}]}}]}]}`)
}

func newTestRelay() (*Relay, *fakeDedup, *fakeQueue, *fakeAgent, *fakeMessenger) {
	d, q, a, m := newFakeDedup(), &fakeQueue{}, &fakeAgent{reply: "hello back"}, &fakeMessenger{}
	return NewRelay(RelayConfig{VerifyToken: "secret"}, d, q, a, m), d, q, a, m
}

func TestRelay_Verify(t *testing.T) {
	r, _, _, _, _ := newTestRelay()

	got, ok := r.Verify("subscribe", "secret", "12345")
	assert.True(t, ok)
	assert.Equal(t, "12345", got)

	got, ok = r.Verify("subscribe", "secret", "")
	assert.True(t, ok)
	assert.Equal(t, "OK", got)

	_, ok = r.Verify("subscribe", "wrong", "1")
	assert.False(t, ok)
	_, ok = r.Verify("unsubscribe", "secret", "1")
	assert.False(t, ok)
}

func TestRelay_ReceiveShapes(t *testing.T) {
	r, _, _, _, _ := newTestRelay()
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no entry", `{}`, RelayNoEntry},
		{"no changes", `{"entry":[{}]}`, RelayNoChanges},
		{"status update", `{"entry":[{"changes":[{"value":{"statuses":[{"status":"read"}]}}]}]}`, RelayNoMessage},
		{"blank text", `{"entry":[{"changes":[{"value":{"messages":[{"id":"m0","from":"1","type":"text","text":{"body":"  "}}]}}]}]}`, RelayEmptyMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Receive(ctx, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := r.Receive(ctx, []byte(`not json`))
	assert.Error(t, err)
	assert.Equal(t, RelayError, got)
}

func TestRelay_ReceiveQueuesAndSuppressesDuplicates(t *testing.T) {
	r, dedup, q, _, _ := newTestRelay()
	ctx := context.Background()

	got, err := r.Receive(ctx, textPayload("m1", "5511", " hi there ", "100"))
	require.NoError(t, err)
	assert.Equal(t, RelayProcessing, got)
	require.Len(t, q.got, 1)
	assert.Equal(t, InboundMsg{MessageID: "m1", From: "5511", Type: "text", Text: "hi there", Timestamp: "100"}, q.got[0])
	assert.True(t, dedup.holds(ScopeInflight, "m1"))

	got, _ = r.Receive(ctx, textPayload("m1", "5511", "hi there", "100"))
	assert.Equal(t, RelayDuplicateProcessing, got)

	got, _ = r.Receive(ctx, textPayload("m2", "5511", "hi there", "100"))
	assert.Equal(t, RelayDuplicate, got)
	assert.False(t, dedup.holds(ScopeInflight, "m2"))
	assert.Len(t, q.got, 1)
}

func TestRelay_ReceiveStoreAndQueueFailures(t *testing.T) {
	r, dedup, q, _, _ := newTestRelay()
	ctx := context.Background()

	q.err = errors.New("broker down")
	got, err := r.Receive(ctx, textPayload("m1", "1", "hi", "1"))
	assert.Error(t, err)
	assert.Equal(t, RelayError, got)
	assert.False(t, dedup.holds(ScopeInflight, "m1"))

	dedup.failOn = ScopeSeen
	got, err = r.Receive(ctx, textPayload("m2", "1", "yo", "2"))
	assert.Error(t, err)
	assert.Equal(t, RelayError, got)
	assert.False(t, dedup.holds(ScopeInflight, "m2"))
}

func TestRelay_Process(t *testing.T) {
	r, dedup, _, agent, msgr := newTestRelay()
	ctx := context.Background()
	_, _ = dedup.TryLock(ctx, ScopeInflight, "m1")

	err := r.Process(ctx, InboundMsg{MessageID: "m1", From: "5511", Text: "what's in my cart?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, msgr.read)
	assert.Equal(t, []bool{true, false}, msgr.typing)
	assert.Equal(t, []string{"5511:what's in my cart?"}, agent.asked)
	assert.Equal(t, []string{"hello back"}, msgr.sent)
	assert.False(t, dedup.holds(ScopeInflight, "m1"))
}

func TestRelay_ProcessFallbacks(t *testing.T) {
	ctx := context.Background()

	r, _, _, agent, msgr := newTestRelay()
	agent.reply = "  "
	require.NoError(t, r.Process(ctx, InboundMsg{MessageID: "a", From: "1", Text: "x"}))
	assert.Equal(t, []string{replyFallback}, msgr.sent)

	r, _, _, agent, msgr = newTestRelay()
	agent.err = errors.New("timeout")
	require.NoError(t, r.Process(ctx, InboundMsg{MessageID: "b", From: "1", Text: "x"}))
	assert.Equal(t, []string{replyUnavailable}, msgr.sent)

	r, dedup, _, _, msgr := newTestRelay()
	_, _ = dedup.TryLock(ctx, ScopeInflight, "c")
	msgr.sendErr = errors.New("360 down")
	err := r.Process(ctx, InboundMsg{MessageID: "c", From: "1", Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, []string{"hello back", replyApology}, msgr.sent)
	assert.False(t, dedup.holds(ScopeInflight, "c"))
}

func TestWebhookMessage_UserText(t *testing.T) {
	tests := []struct {
		name string
		msg  WebhookMessage
		want string
	}{
		{"image", WebhookMessage{Type: "image"}, "(Image received)"},
		{"location", WebhookMessage{Type: "location"}, "(Location received)"},
		{"sticker", WebhookMessage{Type: "sticker"}, "(Unsupported message type sticker)"},
		{"button", WebhookMessage{Type: "button", Button: &struct {
			Text string `json:"text"`
		}{Text: "Yes"}}, "Yes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.UserText())
		})
	}
}

func TestTruncateReply(t *testing.T) {
	short := "ok"
	assert.Equal(t, short, TruncateReply(short))

	long := strings.Repeat("é", 5000)
	got := TruncateReply(long)
	assert.Equal(t, 4096, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
