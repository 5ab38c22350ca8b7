package service

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
	printer  = message.NewPrinter(language.English)
)

// PercentChange изменение previous → current: "+12.5%", "-20.0%".
// Нулевая или отрицательная база даёт "+100%" при росте и "0%" иначе.
func PercentChange(current, previous decimal.Decimal) string {
	if !previous.IsPositive() {
		if current.IsPositive() {
			return "+100%"
		}
		return "0%"
	}

	// знак по неокруглённому значению: -0.04 даёт "-0.0%"
	delta := current.Sub(previous).Div(previous).Mul(hundred)
	sign := "+"
	if delta.IsNegative() {
		sign = "-"
	}
	return sign + delta.Abs().StringFixed(1) + "%"
}

// CAC spend / signups; 0 без регистраций
func CAC(spend decimal.Decimal, signups int64) decimal.Decimal {
	if signups <= 0 {
		return decimal.Zero
	}
	return spend.Div(decimal.NewFromInt(signups))
}

// ROAS revenue / spend как "2.00x"; "n/a" без расходов
func ROAS(revenue, spend decimal.Decimal) string {
	if !spend.IsPositive() {
		return "n/a"
	}
	return revenue.Div(spend).StringFixed(2) + "x"
}

// FormatCurrency целые доллары с разделителями: "$12,340"
func FormatCurrency(value decimal.Decimal) string {
	rounded := value.Round(0)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	return printer.Sprintf("%s$%d", sign, rounded.IntPart())
}

// FormatCompact короткая запись счётчика: 999, 1.2K, 12.3K, 4.5M
func FormatCompact(value int64) string {
	if value < 1000 && value > -1000 {
		return printer.Sprintf("%d", value)
	}

	d := decimal.NewFromInt(value)
	suffixes := []string{"K", "M", "B", "T"}
	suffix := ""
	for _, s := range suffixes {
		if d.Abs().LessThan(thousand) {
			break
		}
		d = d.Div(thousand)
		suffix = s
	}

	// 999.96K округляется до 1000K; переносим в следующий разряд
	d = d.Round(1)
	if d.Abs().GreaterThanOrEqual(thousand) && suffix != "T" {
		d = d.Div(thousand).Round(1)
		for i, s := range suffixes {
			if s == suffix {
				suffix = suffixes[i+1]
				break
			}
		}
	}

	text := d.StringFixed(1)
	text = strings.TrimSuffix(text, ".0")
	return text + suffix
}
