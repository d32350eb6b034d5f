package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAmountInWords(t *testing.T) {
	cases := []struct {
		amount   string
		expected string
	}{
		{"0", "zero"},
		{"7", "seven"},
		{"13", "thirteen"},
		{"42", "forty-two"},
		{"100", "one hundred"},
		{"118", "one hundred eighteen"},
		{"1000", "one thousand"},
		{"50000", "fifty thousand"},
		{"200000", "two hundred thousand"},
		{"1000000", "one million"},
		{"1250000.50", "one million two hundred fifty thousand and 50/100"},
		{"999999999", "nine hundred ninety-nine million nine hundred ninety-nine thousand nine hundred ninety-nine"},
		{"-12.25", "minus twelve and 25/100"},
	}

	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		require.NoError(t, err)
		require.Equal(t, tc.expected, AmountInWords(amount), "amount %s", tc.amount)
	}
}

func TestAmountInWords_RoundsToCents(t *testing.T) {
	amount, err := decimal.NewFromString("10.005")
	require.NoError(t, err)
	require.Equal(t, "ten and 1/100", AmountInWords(amount))
}
