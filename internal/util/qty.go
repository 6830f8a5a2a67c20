package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	reCurrency       = regexp.MustCompile(`(?i)^(NZ\$|AU\$|US\$|\$|NZD|AUD|USD)`)
)

// ParseNumber reads a spreadsheet cell such as "1,000", "1 000.50",
// "$12.50" or "(5)". Empty or unparseable cells report ok=false.
func ParseNumber(cell string) (float64, bool) {
	d, ok := ParseDecimal(cell)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func ParseDecimal(cell string) (decimal.Decimal, bool) {
	token := strings.TrimSpace(strings.ReplaceAll(cell, "\u00A0", " "))
	if token == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(token, "(") && strings.HasSuffix(token, ")") {
		negative = true
		token = strings.TrimSuffix(strings.TrimPrefix(token, "("), ")")
	}
	if strings.HasPrefix(token, "-") {
		negative = !negative
		token = strings.TrimPrefix(token, "-")
	}
	token = strings.TrimSpace(reCurrency.ReplaceAllString(strings.TrimSpace(token), ""))

	norm := normalizeNumericToken(token)
	if _, err := strconv.ParseFloat(norm, 64); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reThousandsComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
