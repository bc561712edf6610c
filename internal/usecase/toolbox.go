package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Tool names as seen by the LLM tool-calling layer.
const (
	ToolSearchProduct  = "search_product"
	ToolAddToCart      = "add_to_cart"
	ToolRemoveFromCart = "remove_from_cart"
	ToolApplyDiscount  = "apply_discount"
	ToolViewCart       = "view_cart"
	ToolCalculateTotal = "calculate_total"
	ToolRecommend      = "recommend_products"
	ToolClearCart      = "clear_cart"
	ToolShowHistory    = "show_history"
)

type ToolParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params"`
	Mutates     bool        `json:"-"`
}

type tool struct {
	spec ToolSpec
	run  func(s *Shop, sess *domain.Session, args json.RawMessage) Result
}

// Toolbox is the tool-call boundary: it decodes arguments, resolves the
// session, runs one Shop operation and records what happened.
type Toolbox struct {
	shop     *Shop
	sessions SessionStore
	audit    ToolCallRepo
	events   EventPublisher
	observer CallObserver
	now      func() time.Time

	order []string
	tools map[string]tool
	locks *keyedMutex
}

type Option func(*Toolbox)

func WithAudit(r ToolCallRepo) Option       { return func(t *Toolbox) { t.audit = r } }
func WithEvents(p EventPublisher) Option    { return func(t *Toolbox) { t.events = p } }
func WithObserver(o CallObserver) Option    { return func(t *Toolbox) { t.observer = o } }
func WithClock(now func() time.Time) Option { return func(t *Toolbox) { t.now = now } }

func NewToolbox(shop *Shop, sessions SessionStore, opts ...Option) *Toolbox {
	tb := &Toolbox{
		shop:     shop,
		sessions: sessions,
		now:      time.Now,
		tools:    make(map[string]tool),
		locks:    newKeyedMutex(),
	}
	for _, o := range opts {
		o(tb)
	}
	for _, t := range builtinTools() {
		tb.order = append(tb.order, t.spec.Name)
		tb.tools[t.spec.Name] = t
	}
	return tb
}

func (tb *Toolbox) Tools() []ToolSpec {
	out := make([]ToolSpec, 0, len(tb.order))
	for _, name := range tb.order {
		out = append(out, tb.tools[name].spec)
	}
	return out
}

func (tb *Toolbox) Tool(name string) (ToolSpec, bool) {
	t, ok := tb.tools[name]
	return t.spec, ok
}

func (tb *Toolbox) OpenSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := tb.sessions.Save(ctx, domain.NewSession(id, tb.now())); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return id, nil
}

func (tb *Toolbox) CloseSession(ctx context.Context, id string) error {
	unlock := tb.locks.Lock(id)
	defer unlock()

	ok, err := tb.sessions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Calls returns the audited tool calls of a session, newest first.
func (tb *Toolbox) Calls(ctx context.Context, sessionID string, limit int) ([]ToolCallRecord, error) {
	if tb.audit == nil {
		return nil, nil
	}
	return tb.audit.ListBySession(ctx, sessionID, limit)
}

// Call runs tool name against the session. Domain failures come back as a
// Result; only store failures are returned as errors. A missing session is
// created on first use.
func (tb *Toolbox) Call(ctx context.Context, sessionID, name string, args json.RawMessage) (Result, error) {
	t, ok := tb.tools[name]
	if !ok {
		return &ErrorResult{Outcome: failure(fmt.Sprintf("Tool '%s' not implemented.", name))}, nil
	}

	unlock := tb.locks.Lock(sessionID)
	defer unlock()

	sess, found, err := tb.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !found {
		sess = domain.NewSession(sessionID, tb.now())
	}

	start := tb.now()
	res, panicked := tb.invoke(t, sess, args)
	dur := tb.now().Sub(start)

	if !panicked {
		sess.UpdatedAt = tb.now()
		if err := tb.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session %s: %w", sessionID, err)
		}
	}

	if tb.observer != nil {
		tb.observer.ObserveToolCall(name, res.ResultStatus(), dur)
	}
	tb.record(ctx, sess, name, args, res, dur)
	if t.spec.Mutates && res.ResultStatus() == StatusSuccess {
		tb.publish(ctx, sess, name)
	}
	return res, nil
}

func (tb *Toolbox) invoke(t tool, sess *domain.Session, args json.RawMessage) (res Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			res = &FailureResult{Error: fmt.Sprintf("Failed to execute tool '%s': %v", t.spec.Name, r)}
			panicked = true
		}
	}()
	return t.run(tb.shop, sess, args), false
}

func (tb *Toolbox) record(ctx context.Context, sess *domain.Session, name string, args json.RawMessage, res Result, dur time.Duration) {
	if tb.audit == nil {
		return
	}
	argsJSON := "{}"
	if len(bytes.TrimSpace(args)) > 0 {
		argsJSON = string(args)
	}
	rec := &ToolCallRecord{
		ID:         uuid.NewString(),
		SessionID:  sess.ID,
		Tool:       name,
		ArgsJSON:   argsJSON,
		Status:     string(res.ResultStatus()),
		DurationMs: dur.Milliseconds(),
		CreatedAt:  tb.now().UTC(),
	}
	if err := tb.audit.Record(ctx, rec); err != nil {
		logging.FromCtx(ctx).Warn("tool call audit failed", "session_id", sess.ID, "tool", name, "err", err)
	}
}

func (tb *Toolbox) publish(ctx context.Context, sess *domain.Session, name string) {
	if tb.events == nil {
		return
	}
	t := sess.Cart.Totals(tb.shop.Pricing())
	ev := CartEventMsg{
		EventID:      uuid.NewString(),
		SessionID:    sess.ID,
		Tool:         name,
		Lines:        len(sess.Cart.Items),
		Units:        sess.Cart.Units(),
		Subtotal:     t.Subtotal.StringFixed(2),
		Total:        t.Total.StringFixed(2),
		DiscountCode: sess.Cart.DiscountCode,
		OccurredAt:   tb.now().UTC(),
	}
	if err := tb.events.PublishCartEvent(ctx, ev); err != nil {
		logging.FromCtx(ctx).Warn("cart event publish failed", "session_id", sess.ID, "tool", name, "err", err)
	}
}

// ---- argument decoding ----

type searchArgs struct {
	ProductName string `json:"product_name"`
}

type quantityArgs struct {
	Product  string          `json:"product"`
	Quantity json.RawMessage `json:"quantity"`
}

type discountArgs struct {
	Code string `json:"code"`
}

type recommendArgs struct {
	Category *string `json:"category"`
}

func decodeArgs(name string, raw json.RawMessage, v any) Result {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ErrorResult{Outcome: failure(fmt.Sprintf("❌ Invalid arguments for tool '%s': %v", name, err))}
	}
	return nil
}

// intArg reads an optional JSON integer. present is false for a missing or
// null value; ok is false when the value is not an integer.
func intArg(raw json.RawMessage) (n int, present, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, true
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, true, false
	}
	num, isNum := v.(json.Number)
	if !isNum {
		return 0, true, false
	}
	i, err := num.Int64()
	if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
		return 0, true, false
	}
	return int(i), true, true
}

func builtinTools() []tool {
	return []tool{
		{
			spec: ToolSpec{
				Name:        ToolSearchProduct,
				Description: "Search for a product by name with fuzzy search",
				Params: []ToolParam{
					{Name: "product_name", Type: "string", Description: "Name of the product to search for", Required: true},
				},
			},
			run: func(s *Shop, sess *domain.Session, raw json.RawMessage) Result {
				var a searchArgs
				if bad := decodeArgs(ToolSearchProduct, raw, &a); bad != nil {
					return bad
				}
				return s.SearchProduct(sess, a.ProductName)
			},
		},
		{
			spec: ToolSpec{
				Name:        ToolAddToCart,
				Description: "Add products to cart with stock validation",
				Params: []ToolParam{
					{Name: "product", Type: "string", Description: "Product name", Required: true},
					{Name: "quantity", Type: "integer", Description: "Quantity to add (default 1)"},
				},
				Mutates: true,
			},
			run: func(s *Shop, sess *domain.Session, raw json.RawMessage) Result {
				var a quantityArgs
				if bad := decodeArgs(ToolAddToCart, raw, &a); bad != nil {
					return bad
				}
				qty, present, ok := intArg(a.Quantity)
				if !ok {
					return &AddResult{Outcome: failure(msgQuantityNotPositive)}
				}
				if !present {
					qty = 1
				}
				return s.AddToCart(sess, a.Product, qty)
			},
		},
		{
			spec: ToolSpec{
				Name:        ToolRemoveFromCart,
				Description: "Remove products from cart",
				Params: []ToolParam{
					{Name: "product", Type: "string", Description: "Product name", Required: true},
					{Name: "quantity", Type: "integer", Description: "Quantity to remove (omit to remove all)"},
				},
				Mutates: true,
			},
			run: func(s *Shop, sess *domain.Session, raw json.RawMessage) Result {
				var a quantityArgs
				if bad := decodeArgs(ToolRemoveFromCart, raw, &a); bad != nil {
					return bad
				}
				qty, present, ok := intArg(a.Quantity)
				if !ok {
					return &RemoveResult{Outcome: failure("❌ Quantity must be an integer.")}
				}
				if !present {
					return s.RemoveFromCart(sess, a.Product, nil)
				}
				return s.RemoveFromCart(sess, a.Product, &qty)
			},
		},
		{
			spec: ToolSpec{
				Name:        ToolApplyDiscount,
				Description: "Apply a discount code to the cart",
				Params: []ToolParam{
					{Name: "code", Type: "string", Description: "Discount code", Required: true},
				},
				Mutates: true,
			},
			run: func(s *Shop, sess *domain.Session, raw json.RawMessage) Result {
				var a discountArgs
				if bad := decodeArgs(ToolApplyDiscount, raw, &a); bad != nil {
					return bad
				}
				return s.ApplyDiscount(sess, a.Code)
			},
		},
		{
			spec: ToolSpec{Name: ToolViewCart, Description: "Show detailed cart with calculations"},
			run: func(s *Shop, sess *domain.Session, _ json.RawMessage) Result {
				return s.ViewCart(sess)
			},
		},
		{
			spec: ToolSpec{Name: ToolCalculateTotal, Description: "Calculate detailed cart total"},
			run: func(s *Shop, sess *domain.Session, _ json.RawMessage) Result {
				return s.CalculateTotal(sess)
			},
		},
		{
			spec: ToolSpec{
				Name:        ToolRecommend,
				Description: "Recommend products by category or popularity",
				Params: []ToolParam{
					{Name: "category", Type: "string", Description: "Specific category (optional)"},
				},
			},
			run: func(s *Shop, _ *domain.Session, raw json.RawMessage) Result {
				var a recommendArgs
				if bad := decodeArgs(ToolRecommend, raw, &a); bad != nil {
					return bad
				}
				category := ""
				if a.Category != nil {
					category = *a.Category
				}
				return s.Recommend(category)
			},
		},
		{
			spec: ToolSpec{Name: ToolClearCart, Description: "Clear the entire cart", Mutates: true},
			run: func(s *Shop, sess *domain.Session, _ json.RawMessage) Result {
				return s.ClearCart(sess)
			},
		},
		{
			spec: ToolSpec{Name: ToolShowHistory, Description: "Show recent search history"},
			run: func(s *Shop, sess *domain.Session, _ json.RawMessage) Result {
				return s.ShowHistory(sess)
			},
		},
	}
}
