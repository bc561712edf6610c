package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func NewCartItem(p Product, quantity int) CartItem {
	it := CartItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price}
	it.SetQuantity(quantity)
	return it
}

// SetQuantity is the only way a line changes size; it keeps Subtotal in step.
func (it *CartItem) SetQuantity(q int) {
	it.Quantity = q
	it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(q)))
}

// Cart holds at most one line per product id and at most one discount code.
type Cart struct {
	Items        []CartItem `json:"items"`
	DiscountCode string     `json:"discount_code,omitempty"`
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Item returns a pointer into Items, or nil.
func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) QuantityOf(productID string) int {
	if it := c.Item(productID); it != nil {
		return it.Quantity
	}
	return 0
}

// Add merges into the existing line or appends a new one. Stock is checked by the caller.
func (c *Cart) Add(p Product, quantity int) {
	if it := c.Item(p.ID); it != nil {
		it.SetQuantity(it.Quantity + quantity)
		return
	}
	c.Items = append(c.Items, NewCartItem(p, quantity))
}

func (c *Cart) Remove(productID string) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart and drops the discount; it reports lines and units removed.
func (c *Cart) Clear() (products, units int) {
	products, units = len(c.Items), c.Units()
	c.Items = nil
	c.DiscountCode = ""
	return products, units
}

func (c *Cart) Units() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

// Totals is derived from the cart on demand and never stored.
type Totals struct {
	Subtotal     decimal.Decimal
	DiscountRate decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Shipping     decimal.Decimal
	Total        decimal.Decimal
}

func (t Totals) FreeShipping() bool { return t.Shipping.IsZero() }

// Totals prices the cart. Shipping eligibility uses the pre-discount subtotal.
func (c *Cart) Totals(p Pricing) Totals {
	t := Totals{Subtotal: c.Subtotal(), DiscountRate: decimal.Zero, Discount: decimal.Zero}
	if rate, ok := p.DiscountRate(c.DiscountCode); ok {
		t.DiscountRate = rate
		t.Discount = t.Subtotal.Mul(rate)
	}
	t.Tax = t.Subtotal.Sub(t.Discount).Mul(p.TaxRate)
	t.Shipping = p.ShippingFor(t.Subtotal)
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax).Add(t.Shipping)
	return t
}

type Pricing struct {
	TaxRate           decimal.Decimal
	ShippingThreshold decimal.Decimal
	ShippingFee       decimal.Decimal
	DiscountCodes     map[string]decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:           decimal.RequireFromString("0.08"),
		ShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:       decimal.NewFromInt(10),
		DiscountCodes: map[string]decimal.Decimal{
			"WELCOME10": decimal.RequireFromString("0.10"),
			"SAVE20":    decimal.RequireFromString("0.20"),
			"VIP30":     decimal.RequireFromString("0.30"),
		},
	}
}

// NormalizeCode trims and upper-cases a discount code.
func NormalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

func (p Pricing) DiscountRate(code string) (decimal.Decimal, bool) {
	if code == "" {
		return decimal.Zero, false
	}
	rate, ok := p.DiscountCodes[code]
	return rate, ok
}

// Codes lists the valid discount codes, sorted.
func (p Pricing) Codes() []string {
	out := make([]string, 0, len(p.DiscountCodes))
	for code := range p.DiscountCodes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (p Pricing) ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.ShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingFee
}

// Session is the per-conversation context every cart operation runs against.
type Session struct {
	ID            string    `json:"id"`
	Cart          Cart      `json:"cart"`
	SearchHistory []string  `json:"search_history,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

func (s *Session) RecordSearch(query string) {
	s.SearchHistory = append(s.SearchHistory, query)
}

// RecentSearches returns up to n of the latest searches, oldest first.
func (s *Session) RecentSearches(n int) []string {
	h := s.SearchHistory
	if len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]string, len(h))
	copy(out, h)
	return out
}
