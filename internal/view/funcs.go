package view

import (
	"html/template"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount as US dollars with grouping, e.g. $1,234.50.
func Money(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": Money,
		"moneyp": func(v *float64) string {
			if v == nil {
				return ""
			}
			return Money(*v)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"pct": func(v *float64) string {
			if v == nil || *v <= 0 {
				return ""
			}
			return printer.Sprintf("-%d%%", int(math.Round(*v)))
		},
		"rating": func(v *float64) string {
			if v == nil {
				return ""
			}
			return printer.Sprintf("%.1f", *v)
		},
		"lines": func(s []string) string { return strings.Join(s, "\n") },
	}
}
