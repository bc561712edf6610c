package usecase

// Status tags every tool result; callers branch on it, not on Go errors.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusEmpty    Status = "empty"
	StatusNotFound Status = "not_found"
)

// Result is implemented by every tool result record.
type Result interface {
	ResultStatus() Status
}

type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

func (o Outcome) ResultStatus() Status { return o.Status }

func success(msg string) Outcome  { return Outcome{Status: StatusSuccess, Message: msg} }
func failure(msg string) Outcome  { return Outcome{Status: StatusError, Message: msg} }
func empty(msg string) Outcome    { return Outcome{Status: StatusEmpty, Message: msg} }
func notFound(msg string) Outcome { return Outcome{Status: StatusNotFound, Message: msg} }

// ErrorResult is a bare validation or lookup failure.
type ErrorResult struct {
	Outcome
}

// FailureResult is returned when a tool blew up unexpectedly.
type FailureResult struct {
	Error string `json:"error"`
}

func (FailureResult) ResultStatus() Status { return StatusError }

type ProductView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	FormattedPrice string   `json:"formatted_price"`
	Stock          int      `json:"stock"`
	Features       []string `json:"features"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Rating         float64  `json:"rating"`
	Reviews        int      `json:"reviews"`
	Available      bool     `json:"available"`
}

type SearchResult struct {
	Outcome
	Product     *ProductView `json:"product,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

type LineView struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type CartSummary struct {
	TotalItems   int    `json:"total_items"`
	Subtotal     string `json:"subtotal"`
	FreeShipping bool   `json:"free_shipping"`
}

type AddResult struct {
	Outcome
	AddedProduct *LineView    `json:"added_product,omitempty"`
	CartSummary  *CartSummary `json:"cart_summary,omitempty"`
	CurrentStock *int         `json:"current_stock,omitempty"`
	InCart       *int         `json:"in_cart,omitempty"`
	Available    *int         `json:"available,omitempty"`
	Suggestions  []string     `json:"suggestions,omitempty"`
}

type RemoveResult struct {
	Outcome
	RemovedProduct    string `json:"removed_product,omitempty"`
	RemovedQuantity   int    `json:"removed_quantity,omitempty"`
	RemainingQuantity *int   `json:"remaining_quantity,omitempty"`
}

type DiscountView struct {
	Percentage        string `json:"percentage"`
	Amount            string `json:"amount"`
	OriginalSubtotal  string `json:"original_subtotal"`
	TotalWithDiscount string `json:"total_with_discount"`
}

type DiscountResult struct {
	Outcome
	Discount       *DiscountView `json:"discount,omitempty"`
	AvailableCodes []string      `json:"available_codes,omitempty"`
}

type Calculations struct {
	Subtotal     string  `json:"subtotal"`
	Discount     *string `json:"discount"`
	DiscountCode *string `json:"discount_code"`
	Taxes        string  `json:"taxes"`
	Shipping     string  `json:"shipping"`
	FreeShipping bool    `json:"free_shipping"`
	Total        string  `json:"total"`
}

type ViewCartResult struct {
	Outcome
	Suggestion      string        `json:"suggestion,omitempty"`
	Items           []LineView    `json:"items,omitempty"`
	TotalProducts   int           `json:"total_products,omitempty"`
	TotalUnits      int           `json:"total_units,omitempty"`
	Calculations    *Calculations `json:"calculations,omitempty"`
	SavingsMessage  string        `json:"savings_message,omitempty"`
	ShippingMessage string        `json:"shipping_message,omitempty"`
}

type ProductLine struct {
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type DiscountLine struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type TaxLine struct {
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type ShippingLine struct {
	Cost          string `json:"cost"`
	Free          bool   `json:"free"`
	FreeThreshold string `json:"free_threshold"`
}

type Savings struct {
	Items []string `json:"items"`
	Total string   `json:"total"`
}

type TotalResult struct {
	Outcome
	ProductSummary []ProductLine `json:"product_summary,omitempty"`
	Subtotal       string        `json:"subtotal,omitempty"`
	Discount       *DiscountLine `json:"discount,omitempty"`
	Taxes          *TaxLine      `json:"taxes,omitempty"`
	Shipping       *ShippingLine `json:"shipping,omitempty"`
	Total          string        `json:"total"`
	TotalSavings   *Savings      `json:"total_savings,omitempty"`
}

type Recommendation struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Rating      string `json:"rating"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

type RecommendResult struct {
	Outcome
	Category            string           `json:"category,omitempty"`
	Recommendations     []Recommendation `json:"recommendations,omitempty"`
	AvailableCategories []string         `json:"available_categories,omitempty"`
}

type ClearResult struct {
	Outcome
	RemovedProducts int `json:"removed_products"`
	RemovedUnits    int `json:"removed_units"`
}

type HistoryResult struct {
	Outcome
	History       []string `json:"history,omitempty"`
	TotalSearches int      `json:"total_searches,omitempty"`
}
