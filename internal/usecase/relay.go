package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aq2208/gcart-api/internal/logging"
)

// Webhook outcomes reported back to the sender. The webhook always answers 200.
const (
	RelayNoEntry             = "no_entry"
	RelayNoChanges           = "no_changes"
	RelayNoMessage           = "no_message"
	RelayDuplicateProcessing = "duplicate_processing"
	RelayEmptyMessage        = "empty_message"
	RelayDuplicate           = "duplicate"
	RelayProcessing          = "processing"
	RelayError               = "error"
)

// Dedup scopes. In-flight ids are released when processing ends; content
// hashes expire on their own.
const (
	ScopeInflight = "relay:inflight"
	ScopeSeen     = "relay:seen"
)

const (
	maxReplyRunes = 4096

	replyFallback    = "Sorry, I couldn't process your message. Please try again."
	replyUnavailable = "Sorry, I'm having technical problems. Please try again later."
	replyApology     = "Sorry, there was an error processing your message. Please try again."
)

// ---- WhatsApp Cloud webhook payload (only the parts we read) ----

type WebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value WebhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type WebhookValue struct {
	Messages []WebhookMessage `json:"messages"`
	Statuses []struct {
		Status string `json:"status"`
	} `json:"statuses"`
}

type WebhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		ListReply   *Reply `json:"list_reply,omitempty"`
		ButtonReply *Reply `json:"button_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (r *Reply) text() string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}

// UserText flattens any supported message type into the text handed to the agent.
func (m WebhookMessage) UserText() string {
	switch m.Type {
	case "text":
		if m.Text == nil {
			return ""
		}
		return strings.TrimSpace(m.Text.Body)
	case "interactive":
		if m.Interactive == nil {
			return ""
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.text()
		}
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.text()
		}
		return ""
	case "button":
		if m.Button == nil {
			return ""
		}
		return m.Button.Text
	case "image":
		return "(Image received)"
	case "audio":
		return "(Audio received)"
	case "video":
		return "(Video received)"
	case "document":
		return "(Document received)"
	case "location":
		return "(Location received)"
	default:
		return fmt.Sprintf("(Unsupported message type %s)", m.Type)
	}
}

// ContentHash identifies a message by sender, text and timestamp.
func ContentHash(from, text, timestamp string) string {
	sum := sha256.Sum256([]byte(from + ":" + text + ":" + timestamp))
	return hex.EncodeToString(sum[:])
}

type RelayConfig struct {
	VerifyToken string
}

// Relay bridges WhatsApp conversations to the hosted agent. Receive runs on
// the webhook request path; Process runs on the queue worker.
type Relay struct {
	cfg       RelayConfig
	dedup     IdempotencyStore
	queue     InboundQueue
	agent     AgentBackend
	messenger Messenger
}

func NewRelay(cfg RelayConfig, dedup IdempotencyStore, queue InboundQueue, agent AgentBackend, messenger Messenger) *Relay {
	return &Relay{cfg: cfg, dedup: dedup, queue: queue, agent: agent, messenger: messenger}
}

// Verify answers the webhook subscription handshake.
func (r *Relay) Verify(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || r.cfg.VerifyToken == "" || token != r.cfg.VerifyToken {
		return "", false
	}
	if challenge == "" {
		return "OK", true
	}
	return challenge, true
}

// Receive inspects one webhook delivery and queues it for processing.
func (r *Relay) Receive(ctx context.Context, body []byte) (string, error) {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return RelayError, fmt.Errorf("decode webhook: %w", err)
	}
	if len(p.Entry) == 0 {
		return RelayNoEntry, nil
	}
	if len(p.Entry[0].Changes) == 0 {
		return RelayNoChanges, nil
	}
	value := p.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		if len(value.Statuses) > 0 {
			logging.FromCtx(ctx).Debug("whatsapp status update", "status", value.Statuses[0].Status)
		}
		return RelayNoMessage, nil
	}

	msg := value.Messages[0]
	if msg.ID != "" {
		ok, err := r.dedup.TryLock(ctx, ScopeInflight, msg.ID)
		if err != nil {
			return RelayError, fmt.Errorf("inflight lock: %w", err)
		}
		if !ok {
			return RelayDuplicateProcessing, nil
		}
	}

	text := msg.UserText()
	if text == "" {
		r.release(ctx, msg.ID)
		return RelayEmptyMessage, nil
	}

	fresh, err := r.dedup.TryLock(ctx, ScopeSeen, ContentHash(msg.From, text, msg.Timestamp))
	if err != nil {
		r.release(ctx, msg.ID)
		return RelayError, fmt.Errorf("dedup lock: %w", err)
	}
	if !fresh {
		r.release(ctx, msg.ID)
		return RelayDuplicate, nil
	}

	in := InboundMsg{MessageID: msg.ID, From: msg.From, Type: msg.Type, Text: text, Timestamp: msg.Timestamp}
	if err := r.queue.PublishInbound(ctx, in); err != nil {
		r.release(ctx, msg.ID)
		return RelayError, fmt.Errorf("queue inbound: %w", err)
	}
	logging.FromCtx(ctx).Info("whatsapp message queued", "from", msg.From, "type", msg.Type, "preview", preview(text))
	return RelayProcessing, nil
}

// Process answers one queued message. The in-flight marker is always released.
func (r *Relay) Process(ctx context.Context, in InboundMsg) error {
	defer r.release(ctx, in.MessageID)
	l := logging.FromCtx(ctx).With("from", in.From, "message_id", in.MessageID)

	if in.MessageID != "" {
		if err := r.messenger.MarkRead(ctx, in.MessageID); err != nil {
			l.Warn("mark read failed", "err", err)
		}
	}
	if err := r.messenger.SendTyping(ctx, in.From, true); err != nil {
		l.Debug("typing indicator failed", "err", err)
	}

	reply, err := r.agent.Ask(ctx, in.Text, in.From, "")
	switch {
	case err != nil:
		l.Error("agent query failed", "err", err)
		reply = replyUnavailable
	case strings.TrimSpace(reply) == "":
		reply = replyFallback
	}

	if err := r.messenger.SendTyping(ctx, in.From, false); err != nil {
		l.Debug("typing indicator failed", "err", err)
	}
	if err := r.messenger.SendText(ctx, in.From, TruncateReply(reply)); err != nil {
		l.Error("send reply failed", "err", err)
		if aerr := r.messenger.SendText(ctx, in.From, replyApology); aerr != nil {
			l.Warn("send apology failed", "err", aerr)
		}
		return fmt.Errorf("send reply: %w", err)
	}
	l.Info("reply sent")
	return nil
}

func (r *Relay) release(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := r.dedup.Release(ctx, ScopeInflight, messageID); err != nil {
		logging.FromCtx(ctx).Warn("inflight release failed", "message_id", messageID, "err", err)
	}
}

// TruncateReply caps a reply at the WhatsApp text limit, ending it with "...".
func TruncateReply(s string) string {
	rs := []rune(s)
	if len(rs) <= maxReplyRunes {
		return s
	}
	return string(rs[:maxReplyRunes-3]) + "..."
}

func preview(s string) string {
	rs := []rune(s)
	if len(rs) > 50 {
		return string(rs[:50]) + "..."
	}
	return s
}
