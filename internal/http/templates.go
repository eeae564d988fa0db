package http

import (
	"encoding/json"
	"html/template"
)

var templateFuncs = template.FuncMap{
	// json renders chart data for data-* attributes; the page script parses it.
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
	"exportURL": func(query string) template.URL {
		if query == "" {
			return "/export.csv"
		}
		return template.URL("/export.csv?" + query)
	},
}
