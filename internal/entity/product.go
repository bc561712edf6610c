package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is immutable catalog reference data.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Stock       int
	Features    []string
	Category    string
	Description string
	Rating      float64
	Reviews     int
}

func (p Product) Available() bool { return p.Stock > 0 }

// Catalog keeps products keyed by their lower-case name in insertion order.
// Order matters: fuzzy lookup ties and suggestions follow it.
type Catalog struct {
	keys     []string
	products map[string]Product
}

func NewCatalog(products ...Product) *Catalog {
	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if _, dup := c.products[key]; !dup {
			c.keys = append(c.keys, key)
		}
		if p.Category == "" {
			p.Category = "General"
		}
		c.products[key] = p
	}
	return c
}

func (c *Catalog) Len() int { return len(c.keys) }

func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.products[k])
	}
	return out
}

func (c *Catalog) Get(key string) (Product, bool) {
	p, ok := c.products[key]
	return p, ok
}

func (c *Catalog) ByID(id string) (Product, bool) {
	for _, k := range c.keys {
		if p := c.products[k]; p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, k := range c.keys {
		cat := c.products[k].Category
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

func DefaultCatalog() *Catalog {
	return NewCatalog(
		Product{
			ID:          "LPG001",
			Name:        "Gaming Laptop Pro",
			Price:       decimal.NewFromInt(1500),
			Stock:       10,
			Features:    []string{"RTX 4070", "32GB RAM", "1TB SSD", "144Hz Display"},
			Category:    "Computers",
			Description: "High-end gaming laptop for the most demanding games",
			Rating:      4.8,
			Reviews:     127,
		},
		Product{
			ID:          "TEC005",
			Name:        "Mechanical Keyboard RGB",
			Price:       decimal.NewFromInt(120),
			Stock:       25,
			Features:    []string{"Cherry MX Switches", "Customizable RGB", "TKL", "USB-C"},
			Category:    "Peripherals",
			Description: "Premium mechanical keyboard with full RGB lighting",
			Rating:      4.6,
			Reviews:     89,
		},
		Product{
			ID:          "MON003",
			Name:        "4K HDR Monitor",
			Price:       decimal.NewFromInt(400),
			Stock:       5,
			Features:    []string{"27 inches", "144Hz", "HDR10", "G-Sync Compatible"},
			Category:    "Monitors",
			Description: "4K gaming monitor with HDR for immersive visual experience",
			Rating:      4.9,
			Reviews:     203,
		},
		Product{
			ID:          "MOU002",
			Name:        "Gaming Mouse Pro",
			Price:       decimal.NewFromInt(80),
			Stock:       15,
			Features:    []string{"16000 DPI", "RGB", "8 programmable buttons", "Wireless"},
			Category:    "Peripherals",
			Description: "Professional gaming mouse with high-precision sensor",
			Rating:      4.7,
			Reviews:     156,
		},
		Product{
			ID:          "AUR004",
			Name:        "Gaming Headset 7.1",
			Price:       decimal.NewFromInt(150),
			Stock:       8,
			Features:    []string{"7.1 Surround Sound", "Retractable Microphone", "RGB", "Noise Cancellation"},
			Category:    "Audio",
			Description: "Gaming headset with surround sound for maximum immersion",
			Rating:      4.5,
			Reviews:     94,
		},
	)
}
