package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders an amount as "$1,234.50".
func FormatPrice(amount decimal.Decimal) string {
	return pricePrinter.Sprintf("$%.2f", amount.Round(2).InexactFloat64())
}

// FormatPercent renders a fractional rate as a whole percentage, e.g. 0.1 -> "10%".
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).Truncate(0).String() + "%"
}
