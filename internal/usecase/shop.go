package usecase

import (
	"fmt"
	"sort"
	"strings"

	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/shopspring/decimal"
)

const (
	suggestionCount = 3
	recommendCount  = 3
	historyWindow   = 5
)

// Shop is the cart calculator. It owns no state: every operation works on the
// session it is handed and reports through a tagged result.
type Shop struct {
	catalog *domain.Catalog
	pricing domain.Pricing
}

func NewShop(catalog *domain.Catalog, pricing domain.Pricing) *Shop {
	return &Shop{catalog: catalog, pricing: pricing}
}

func (s *Shop) Catalog() *domain.Catalog { return s.catalog }
func (s *Shop) Pricing() domain.Pricing  { return s.pricing }

func (s *Shop) SearchProduct(sess *domain.Session, name string) *SearchResult {
	sess.RecordSearch(name)

	p, ok := s.catalog.Find(name)
	if !ok {
		return &SearchResult{
			Outcome:     notFound(fmt.Sprintf("❌ Couldn't find '%s'.", name)),
			Suggestions: s.suggestions(),
		}
	}
	view := productView(p)
	return &SearchResult{
		Outcome: success(fmt.Sprintf("✅ Product '%s' found.", p.Name)),
		Product: &view,
	}
}

func (s *Shop) AddToCart(sess *domain.Session, product string, quantity int) *AddResult {
	if quantity <= 0 {
		return &AddResult{Outcome: failure(msgQuantityNotPositive)}
	}
	p, ok := s.catalog.Find(product)
	if !ok {
		return &AddResult{
			Outcome:     failure(fmt.Sprintf("❌ Couldn't find product '%s'. Use 'search_product' to see options.", product)),
			Suggestions: s.suggestions(),
		}
	}

	inCart := sess.Cart.QuantityOf(p.ID)
	if inCart+quantity > p.Stock {
		available := p.Stock - inCart
		stock := p.Stock
		return &AddResult{
			Outcome:      failure(fmt.Sprintf("❌ Insufficient stock. Only %d units available for '%s'.", available, p.Name)),
			CurrentStock: &stock,
			InCart:       &inCart,
			Available:    &available,
		}
	}

	sess.Cart.Add(p, quantity)
	subtotal := sess.Cart.Subtotal()
	return &AddResult{
		Outcome: success(fmt.Sprintf("✅ Added %dx '%s' to cart.", quantity, p.Name)),
		AddedProduct: &LineView{
			Name:      p.Name,
			Quantity:  quantity,
			UnitPrice: domain.FormatPrice(p.Price),
			Subtotal:  domain.FormatPrice(p.Price.Mul(decimal.NewFromInt(int64(quantity)))),
		},
		CartSummary: &CartSummary{
			TotalItems:   sess.Cart.Units(),
			Subtotal:     domain.FormatPrice(subtotal),
			FreeShipping: subtotal.GreaterThanOrEqual(s.pricing.ShippingThreshold),
		},
	}
}

// RemoveFromCart drops the whole line when quantity is nil or covers it,
// otherwise decrements it.
func (s *Shop) RemoveFromCart(sess *domain.Session, product string, quantity *int) *RemoveResult {
	p, ok := s.catalog.Find(product)
	if !ok {
		return &RemoveResult{Outcome: failure(fmt.Sprintf("❌ Product '%s' not found in cart.", product))}
	}
	item := sess.Cart.Item(p.ID)
	if item == nil {
		return &RemoveResult{Outcome: failure(fmt.Sprintf("❌ '%s' is not in the cart.", p.Name))}
	}

	switch {
	case quantity == nil || *quantity >= item.Quantity:
		removed := item.Quantity
		sess.Cart.Remove(p.ID)
		return &RemoveResult{
			Outcome:         success(fmt.Sprintf("✅ Completely removed '%s' from cart.", p.Name)),
			RemovedProduct:  p.Name,
			RemovedQuantity: removed,
		}
	case *quantity > 0:
		item.SetQuantity(item.Quantity - *quantity)
		remaining := item.Quantity
		return &RemoveResult{
			Outcome:           success(fmt.Sprintf("✅ Removed %d units of '%s'.", *quantity, p.Name)),
			RemovedQuantity:   *quantity,
			RemainingQuantity: &remaining,
		}
	default:
		return &RemoveResult{Outcome: failure("❌ Quantity must be greater than zero.")}
	}
}

func (s *Shop) ApplyDiscount(sess *domain.Session, code string) *DiscountResult {
	if sess.Cart.IsEmpty() {
		return &DiscountResult{Outcome: failure("❌ Cart is empty. Add products before applying discounts.")}
	}
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return &DiscountResult{Outcome: failure("❌ Discount code cannot be empty.")}
	}
	rate, ok := s.pricing.DiscountRate(normalized)
	if !ok {
		return &DiscountResult{
			Outcome:        failure(fmt.Sprintf("❌ Code '%s' is not valid.", code)),
			AvailableCodes: s.pricing.Codes(),
		}
	}

	sess.Cart.DiscountCode = normalized
	t := sess.Cart.Totals(s.pricing)
	pct := domain.FormatPercent(rate)
	return &DiscountResult{
		Outcome: success(fmt.Sprintf("✅ Code '%s' applied: %s discount", normalized, pct)),
		Discount: &DiscountView{
			Percentage:        pct,
			Amount:            domain.FormatPrice(t.Discount),
			OriginalSubtotal:  domain.FormatPrice(t.Subtotal),
			TotalWithDiscount: domain.FormatPrice(t.Total),
		},
	}
}

func (s *Shop) ViewCart(sess *domain.Session) *ViewCartResult {
	if sess.Cart.IsEmpty() {
		return &ViewCartResult{
			Outcome:    empty("🛒 Cart is empty."),
			Suggestion: "You can search for available products or ask for recommendations.",
		}
	}

	t := sess.Cart.Totals(s.pricing)
	calc := &Calculations{
		Subtotal:     domain.FormatPrice(t.Subtotal),
		Taxes:        domain.FormatPrice(t.Tax),
		Shipping:     domain.FormatPrice(t.Shipping),
		FreeShipping: t.FreeShipping(),
		Total:        domain.FormatPrice(t.Total),
	}
	if t.Discount.IsPositive() {
		d := domain.FormatPrice(t.Discount)
		calc.Discount = &d
	}
	if code := sess.Cart.DiscountCode; code != "" {
		calc.DiscountCode = &code
	}

	res := &ViewCartResult{
		Outcome:       Outcome{Status: StatusSuccess},
		Items:         lineViews(sess.Cart.Items),
		TotalProducts: len(sess.Cart.Items),
		TotalUnits:    sess.Cart.Units(),
		Calculations:  calc,
	}
	if t.Discount.IsPositive() {
		res.SavingsMessage = fmt.Sprintf("You're saving %s!", domain.FormatPrice(t.Discount))
	}
	if s.freeShipping(t) {
		res.ShippingMessage = "Free shipping included!"
	}
	return res
}

func (s *Shop) CalculateTotal(sess *domain.Session) *TotalResult {
	if sess.Cart.IsEmpty() {
		return &TotalResult{Outcome: empty("Cart is empty."), Total: domain.FormatPrice(decimal.Zero)}
	}

	t := sess.Cart.Totals(s.pricing)
	res := &TotalResult{
		Outcome:  success(fmt.Sprintf("💳 Total to pay: %s", domain.FormatPrice(t.Total))),
		Subtotal: domain.FormatPrice(t.Subtotal),
		Taxes: &TaxLine{
			Rate:   domain.FormatPercent(s.pricing.TaxRate),
			Amount: domain.FormatPrice(t.Tax),
		},
		Shipping: &ShippingLine{
			Cost:          domain.FormatPrice(t.Shipping),
			Free:          t.FreeShipping(),
			FreeThreshold: domain.FormatPrice(s.pricing.ShippingThreshold),
		},
		Total: domain.FormatPrice(t.Total),
	}
	for _, it := range sess.Cart.Items {
		res.ProductSummary = append(res.ProductSummary, ProductLine{
			Product:   it.Name,
			Quantity:  it.Quantity,
			UnitPrice: domain.FormatPrice(it.UnitPrice),
			Subtotal:  domain.FormatPrice(it.Subtotal),
		})
	}

	saved := decimal.Zero
	var items []string
	if t.Discount.IsPositive() {
		res.Discount = &DiscountLine{Code: sess.Cart.DiscountCode, Amount: domain.FormatPrice(t.Discount)}
		items = append(items, "Discount: "+domain.FormatPrice(t.Discount))
		saved = saved.Add(t.Discount)
	}
	if s.freeShipping(t) {
		items = append(items, "Free shipping: "+domain.FormatPrice(s.pricing.ShippingFee))
		saved = saved.Add(s.pricing.ShippingFee)
	}
	if len(items) > 0 {
		res.TotalSavings = &Savings{Items: items, Total: domain.FormatPrice(saved)}
	}
	return res
}

// Recommend ranks by rating then review count, both descending; equal keys
// keep catalog order.
func (s *Shop) Recommend(category string) *RecommendResult {
	products := s.catalog.Products()
	category = strings.TrimSpace(category)
	if category != "" {
		filtered := products[:0]
		for _, p := range products {
			if strings.EqualFold(p.Category, category) {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			return &RecommendResult{
				Outcome:             failure(fmt.Sprintf("No products in category '%s'.", category)),
				AvailableCategories: s.catalog.Categories(),
			}
		}
		products = filtered
	}

	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Rating != products[j].Rating {
			return products[i].Rating > products[j].Rating
		}
		return products[i].Reviews > products[j].Reviews
	})
	if len(products) > recommendCount {
		products = products[:recommendCount]
	}

	recs := make([]Recommendation, 0, len(products))
	for _, p := range products {
		recs = append(recs, Recommendation{
			Name:        p.Name,
			Price:       domain.FormatPrice(p.Price),
			Rating:      fmt.Sprintf("⭐ %s/5.0", formatRating(p.Rating)),
			Category:    p.Category,
			Description: p.Description,
			Available:   p.Available(),
		})
	}
	label := category
	if label == "" {
		label = "All"
	}
	return &RecommendResult{
		Outcome:         success(fmt.Sprintf("🌟 Top %d recommended products", len(recs))),
		Category:        label,
		Recommendations: recs,
	}
}

func (s *Shop) ClearCart(sess *domain.Session) *ClearResult {
	products, units := sess.Cart.Clear()
	return &ClearResult{
		Outcome:         success("🧹 Cart cleared successfully."),
		RemovedProducts: products,
		RemovedUnits:    units,
	}
}

func (s *Shop) ShowHistory(sess *domain.Session) *HistoryResult {
	if len(sess.SearchHistory) == 0 {
		return &HistoryResult{Outcome: empty("No recent searches.")}
	}
	return &HistoryResult{
		Outcome:       Outcome{Status: StatusSuccess},
		History:       sess.RecentSearches(historyWindow),
		TotalSearches: len(sess.SearchHistory),
	}
}

func (s *Shop) freeShipping(t domain.Totals) bool {
	return t.FreeShipping() && t.Subtotal.GreaterThanOrEqual(s.pricing.ShippingThreshold)
}

func (s *Shop) suggestions() []string {
	products := s.catalog.Products()
	if len(products) > suggestionCount {
		products = products[:suggestionCount]
	}
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, fmt.Sprintf("• %s (%s)", p.Name, domain.FormatPrice(p.Price)))
	}
	return out
}

const msgQuantityNotPositive = "❌ Quantity must be a positive integer."

func productView(p domain.Product) ProductView {
	return ProductView{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price.InexactFloat64(),
		FormattedPrice: domain.FormatPrice(p.Price),
		Stock:          p.Stock,
		Features:       p.Features,
		Category:       p.Category,
		Description:    p.Description,
		Rating:         p.Rating,
		Reviews:        p.Reviews,
		Available:      p.Available(),
	}
}

func lineViews(items []domain.CartItem) []LineView {
	out := make([]LineView, 0, len(items))
	for _, it := range items {
		out = append(out, LineView{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: domain.FormatPrice(it.UnitPrice),
			Subtotal:  domain.FormatPrice(it.Subtotal),
		})
	}
	return out
}

// formatRating prints 4.8 as "4.8" and 5 as "5.0".
func formatRating(r float64) string {
	s := decimal.NewFromFloat(r).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
