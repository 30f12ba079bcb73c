// Package web holds the server-rendered HTML for the trip form.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strings"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"join":     strings.Join,
	"contains": func(list []string, s string) bool { return slices.Contains(list, s) },
	"add":      func(a, b int) int { return a + b },
	"money": func(currency string, v any) string {
		return fmt.Sprintf("%s %.2f", currency, v)
	},
	"clock": func(at string) string {
		if len(at) >= 16 {
			return strings.Replace(at[:16], "T", " ", 1)
		}
		return at
	},
	"sortLabel": func(order string) string {
		switch order {
		case "price":
			return "Price (low to high)"
		case "-price":
			return "Price (high to low)"
		case "duration":
			return "Duration (shortest)"
		case "departure":
			return "Departure time"
		}
		return "Provider order"
	},
}

// Templates parses the embedded templates. It panics on a malformed
// template, which can only happen at build time.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/*.html"))
}
