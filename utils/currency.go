package utils

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

var currencyLocales = map[string]language.Tag{
	"INR": language.MustParse("en-IN"),
	"USD": language.AmericanEnglish,
	"GBP": language.BritishEnglish,
}

// FormatCurrency renders amount for display with two fraction digits and
// locale grouping. Arithmetic must stay in decimal; this is for output only.
func FormatCurrency(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "INR"
	}

	tag, ok := currencyLocales[code]
	if !ok {
		tag = language.English
	}
	p := message.NewPrinter(tag)

	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	value, _ := rounded.Float64()
	formatted := p.Sprintf("%.2f", value)

	if symbol, ok := currencySymbols[code]; ok {
		return sign + symbol + formatted
	}
	return sign + code + " " + formatted
}
