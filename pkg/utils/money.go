package utils

import "github.com/shopspring/decimal"

// FormatCents renders an amount in cents as a two-decimal yuan string
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
