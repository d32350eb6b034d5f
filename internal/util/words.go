// Package util holds small pure helpers shared across layers.
package util

import (
	"strings"

	"github.com/shopspring/decimal"
)

var onesWords = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tensWords = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

var scaleWords = []string{"", " thousand", " million", " billion"}

// AmountInWords renders a monetary amount as English words, e.g.
// 1250000.50 -> "one million two hundred fifty thousand and 50/100".
// Negative amounts are prefixed with "minus". Cents render as a /100
// fraction only when non-zero.
func AmountInWords(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	if negative {
		amount = amount.Neg()
	}

	rounded := amount.Round(2)
	whole := rounded.IntPart()
	cents := rounded.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()

	words := integerInWords(whole)
	if cents > 0 {
		words += " and " + decimal.NewFromInt(cents).String() + "/100"
	}
	if negative {
		words = "minus " + words
	}
	return words
}

func integerInWords(n int64) string {
	if n == 0 {
		return onesWords[0]
	}

	// Split into groups of three digits, least significant first.
	var groups []int64
	for n > 0 {
		groups = append(groups, n%1000)
		n /= 1000
	}

	var parts []string
	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i] == 0 {
			continue
		}
		parts = append(parts, groupInWords(groups[i])+scaleWords[i])
	}
	return strings.Join(parts, " ")
}

func groupInWords(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, onesWords[n/100]+" hundred")
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		parts = append(parts, onesWords[n])
	default:
		word := tensWords[n/10]
		if n%10 > 0 {
			word += "-" + onesWords[n%10]
		}
		parts = append(parts, word)
	}
	return strings.Join(parts, " ")
}
